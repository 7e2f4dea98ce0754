package entitlement

import "strings"

type Plan string

const (
	PlanTrial        Plan = "trial"
	PlanEntry        Plan = "entry"
	PlanStandard     Plan = "standard"
	PlanProfessional Plan = "professional"

	// PlanLegacyFree is the retired free tier. Rows still carrying it are
	// converted to the trial flow on the next plan check.
	PlanLegacyFree Plan = "free"
)

type Status string

const (
	StatusActive            Status = "active"
	StatusInactive          Status = "inactive"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

const (
	TrialPromoKey      = "7-day trial"
	TrialDailyLimit    = 5
	UsagePeriodDaily   = "daily"
	UsagePeriodMonthly = "monthly"
)

// ParsePlan lower-cases and trims a stored plan value. Unknown values are
// returned as-is so healing can see them.
func ParsePlan(raw string) Plan {
	return Plan(strings.ToLower(strings.TrimSpace(raw)))
}

func ParseStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// MonthlyQuota returns the number of generations a paid plan allows per
// billing period. Trial and unknown plans have no monthly quota.
func MonthlyQuota(p Plan) int {
	switch p {
	case PlanEntry:
		return 50
	case PlanStandard:
		return 150
	case PlanProfessional:
		return 300
	default:
		return 0
	}
}

func (p Plan) IsPaid() bool {
	return MonthlyQuota(p) > 0
}

// grantsPaidAccess reports whether a subscription in this status lets a paid
// plan use the app.
func (s Status) grantsPaidAccess() bool {
	return s == StatusActive || s == StatusTrialing
}

// countsTowardMonthlyQuota reports whether usage should be metered against
// the paid monthly quota. past_due keeps the monthly window so a failed
// renewal does not reset the user to trial limits.
func (s Status) countsTowardMonthlyQuota() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	default:
		return false
	}
}

// PriceCatalog maps billing price identifiers to plans.
type PriceCatalog map[string]Plan

func (c PriceCatalog) PlanFor(priceID string) (Plan, bool) {
	p, ok := c[strings.TrimSpace(priceID)]
	if !ok || !p.IsPaid() {
		return "", false
	}
	return p, true
}
