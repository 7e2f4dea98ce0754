package entitlement

import "time"

const TrialLength = 7 * 24 * time.Hour

// neverGrantedMarker is how a NeverGranted window is written to the
// trial_ends_at column and to API responses. Older rows and the browser client
// both rely on this exact instant meaning "expired, never granted".
var neverGrantedMarker = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type trialKind uint8

const (
	trialUnlimited trialKind = iota
	trialExpiresAt
	trialNeverGranted
)

// TrialWindow is the trial boundary of an entitlement. The zero value is
// Unlimited, which is what a NULL trial_ends_at decodes to.
type TrialWindow struct {
	kind trialKind
	ends time.Time
}

func TrialUnlimited() TrialWindow {
	return TrialWindow{kind: trialUnlimited}
}

func TrialExpiresAt(t time.Time) TrialWindow {
	return TrialWindow{kind: trialExpiresAt, ends: t.UTC()}
}

func TrialNeverGranted() TrialWindow {
	return TrialWindow{kind: trialNeverGranted}
}

func (w TrialWindow) IsUnlimited() bool    { return w.kind == trialUnlimited }
func (w TrialWindow) IsNeverGranted() bool { return w.kind == trialNeverGranted }

// EndsAt returns the trial end for an ExpiresAt window.
func (w TrialWindow) EndsAt() (time.Time, bool) {
	if w.kind != trialExpiresAt {
		return time.Time{}, false
	}
	return w.ends, true
}

// ActiveAt reports whether the window is still open at now. The boundary
// instant itself is already expired.
func (w TrialWindow) ActiveAt(now time.Time) bool {
	switch w.kind {
	case trialUnlimited:
		return true
	case trialExpiresAt:
		return w.ends.After(now)
	default:
		return false
	}
}

// Start returns when the trial began, derived from its end.
func (w TrialWindow) Start() *time.Time {
	if w.kind != trialExpiresAt {
		return nil
	}
	start := w.ends.Add(-TrialLength)
	return &start
}

func (w TrialWindow) Equal(o TrialWindow) bool {
	if w.kind != o.kind {
		return false
	}
	return w.kind != trialExpiresAt || w.ends.Equal(o.ends)
}

// Column encodes the window for the nullable trial_ends_at column.
func (w TrialWindow) Column() *time.Time {
	switch w.kind {
	case trialExpiresAt:
		t := w.ends
		return &t
	case trialNeverGranted:
		t := neverGrantedMarker
		return &t
	default:
		return nil
	}
}

// TrialWindowFromColumn decodes a trial_ends_at value.
func TrialWindowFromColumn(t *time.Time) TrialWindow {
	if t == nil {
		return TrialUnlimited()
	}
	if t.Equal(neverGrantedMarker) {
		return TrialNeverGranted()
	}
	return TrialExpiresAt(*t)
}

// grantTrial returns the window a fresh trial starts with, or NeverGranted
// when the promotion was already redeemed.
func grantTrial(eligible bool, now time.Time) TrialWindow {
	if eligible {
		return TrialExpiresAt(now.Add(TrialLength))
	}
	return TrialNeverGranted()
}
