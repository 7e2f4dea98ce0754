// Package entitlement decides what a user may do in one application: which
// plan they are on, whether their trial or subscription is still valid and how
// many generations the current period allows. Everything here is pure; callers
// load state, pass it in together with the billing lookup result and persist
// whatever comes back.
package entitlement

import "time"

// Entitlement is the stored plan state of one user in one application.
type Entitlement struct {
	UserID             string
	AppID              string
	Plan               Plan
	Status             Status
	ExpiresAt          *time.Time
	Trial              TrialWindow
	BillingReferenceID string
	ExternalCustomerID string
}

// NewEntitlement builds the row created on a user's first plan check. grant
// is true when the caller must record the trial redemption.
func NewEntitlement(userID, appID string, eligible bool, now time.Time) (e Entitlement, grant bool) {
	e = Entitlement{
		UserID: userID,
		AppID:  appID,
	}
	grant = applyTrialFlow(&e, eligible, now)
	return e, grant
}

// applyTrialFlow puts e on the trial plan, active with a fresh window when
// eligible and inactive with a NeverGranted window otherwise.
func applyTrialFlow(e *Entitlement, eligible bool, now time.Time) bool {
	e.Plan = PlanTrial
	e.Trial = grantTrial(eligible, now)
	if eligible {
		e.Status = StatusActive
	} else {
		e.Status = StatusInactive
	}
	return eligible
}

// Equal compares every persisted field.
func (e Entitlement) Equal(o Entitlement) bool {
	return e.UserID == o.UserID &&
		e.AppID == o.AppID &&
		e.Plan == o.Plan &&
		e.Status == o.Status &&
		timePtrEqual(e.ExpiresAt, o.ExpiresAt) &&
		e.Trial.Equal(o.Trial) &&
		e.BillingReferenceID == o.BillingReferenceID &&
		e.ExternalCustomerID == o.ExternalCustomerID
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
