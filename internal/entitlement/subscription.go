package entitlement

import (
	"strings"
	"time"
)

// MetadataAppID is the subscription metadata key naming the application a
// checkout was started from.
const MetadataAppID = "app_id"

// Subscription is the billing system's view of a customer's subscription.
type Subscription struct {
	ID                 string
	Status             Status
	PriceID            string
	AppID              string
	CancelAt           *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	StartDate          *time.Time
	Created            *time.Time
	TrialEnd           *time.Time
}

// BelongsTo reports whether the subscription may drive plan state for appID.
// Untagged subscriptions are accepted.
func (s Subscription) BelongsTo(appID string) bool {
	return s.AppID == "" || s.AppID == appID
}

// ExpiresAt is the scheduled cancellation if any, else the end of the paid
// period.
func (s Subscription) ExpiresAt() *time.Time {
	if s.CancelAt != nil {
		return s.CancelAt
	}
	return s.CurrentPeriodEnd
}

// QuotaWindowStart is the latest of the period start, the subscription start
// and its creation, so an upgrade mid-trial gets a fresh quota.
func (s Subscription) QuotaWindowStart() *time.Time {
	var latest *time.Time
	for _, t := range []*time.Time{s.CurrentPeriodStart, s.StartDate, s.Created} {
		if t != nil && (latest == nil || t.After(*latest)) {
			latest = t
		}
	}
	return latest
}

// LooksLikeSubscriptionID reports whether a stored billing reference names a
// subscription that can be fetched.
func LooksLikeSubscriptionID(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), "sub_")
}

type lookupKind uint8

const (
	lookupNotAttempted lookupKind = iota
	lookupFound
	lookupNoSubscription
	lookupCustomerMissing
	lookupFailed
)

// BillingLookup is the outcome of asking the billing system for a customer's
// most recent subscription. The zero value is NotAttempted.
type BillingLookup struct {
	kind lookupKind
	sub  Subscription
	err  error
}

func LookupNotAttempted() BillingLookup { return BillingLookup{} }

func LookupFound(sub Subscription) BillingLookup {
	return BillingLookup{kind: lookupFound, sub: sub}
}

func LookupNoSubscription() BillingLookup {
	return BillingLookup{kind: lookupNoSubscription}
}

// LookupCustomerMissing means the billing system no longer knows the stored
// customer id.
func LookupCustomerMissing() BillingLookup {
	return BillingLookup{kind: lookupCustomerMissing}
}

// LookupFailed is a transient failure; plan state is left untouched.
func LookupFailed(err error) BillingLookup {
	return BillingLookup{kind: lookupFailed, err: err}
}

func (l BillingLookup) Subscription() (Subscription, bool) {
	return l.sub, l.kind == lookupFound
}

func (l BillingLookup) Err() error {
	return l.err
}

// Result names the outcome for logs and metrics.
func (l BillingLookup) Result() string {
	switch l.kind {
	case lookupFound:
		return "found"
	case lookupNoSubscription:
		return "no_subscription"
	case lookupCustomerMissing:
		return "customer_missing"
	case lookupFailed:
		return "failed"
	default:
		return "not_attempted"
	}
}
