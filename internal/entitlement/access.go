package entitlement

import "time"

type Access struct {
	TrialActive bool
	PaidActive  bool
}

func (a Access) CanUseApp() bool {
	return a.TrialActive || a.PaidActive
}

func ComputeAccess(e Entitlement, now time.Time) Access {
	return Access{
		TrialActive: e.Plan == PlanTrial && e.Status == StatusActive && e.Trial.ActiveAt(now),
		PaidActive: e.Plan != PlanTrial && e.Status.grantsPaidAccess() &&
			(e.ExpiresAt == nil || e.ExpiresAt.After(now)),
	}
}

// Quota is the generation allowance for the current usage period.
type Quota struct {
	Period string
	Limit  int
	// WindowStart is the first instant counted; nil counts everything.
	WindowStart *time.Time
	IsPro       bool
}

// MeteredMonthly reports whether usage is counted against the paid monthly
// quota rather than the daily trial limit.
func MeteredMonthly(e Entitlement) bool {
	return MonthlyQuota(e.Plan) > 0 && e.Status.countsTowardMonthlyQuota()
}

// SelectQuota picks the usage period and limit for e. billingStart is the
// subscription's quota window start when it could be fetched; without it a
// monthly quota starts at the beginning of the calendar month.
func SelectQuota(e Entitlement, billingStart *time.Time, now time.Time) Quota {
	monthly := MonthlyQuota(e.Plan)
	q := Quota{IsPro: monthly > 0}
	if MeteredMonthly(e) {
		q.Period = UsagePeriodMonthly
		q.Limit = monthly
		if billingStart != nil {
			start := billingStart.UTC()
			q.WindowStart = &start
		} else {
			q.WindowStart = monthStart(now)
		}
		return q
	}
	q.Period = UsagePeriodDaily
	q.Limit = TrialDailyLimit
	q.WindowStart = e.Trial.Start()
	return q
}

func monthStart(now time.Time) *time.Time {
	n := now.UTC()
	t := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
	return &t
}
