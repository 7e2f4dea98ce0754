package entitlement

import "time"

// Step names one healing pass that changed the entitlement.
type Step string

const (
	StepLegacyPlan      Step = "legacy_plan"
	StepTrialBackfill   Step = "trial_backfill"
	StepBillingSync     Step = "billing_sync"
	StepBillingRevert   Step = "billing_revert"
	StepCustomerMissing Step = "customer_missing"
	StepForeignApp      Step = "foreign_app"
	StepUnmappedPrice   Step = "unmapped_price"
)

type Inputs struct {
	// Eligible is true when the trial promotion has not been redeemed yet.
	Eligible bool
	Billing  BillingLookup
	Prices   PriceCatalog
}

type Result struct {
	Entitlement Entitlement
	// GrantTrial is set when a fresh trial window was handed out and the
	// redemption has to be recorded.
	GrantTrial bool
	Changed    bool
	Steps      []Step
}

// Reconcile runs the healing passes over current in order: retired plan
// values, missing trial expiry, then the billing system's view. At most one
// trial is granted per call.
func Reconcile(current Entitlement, in Inputs, now time.Time) Result {
	next := current
	eligible := in.Eligible
	res := Result{}

	grant := func(ok bool) {
		if ok {
			res.GrantTrial = true
			eligible = false
		}
	}

	if next.Plan == PlanLegacyFree {
		grant(applyTrialFlow(&next, eligible, now))
		res.Steps = append(res.Steps, StepLegacyPlan)
	}

	if next.Plan == PlanTrial && next.Trial.IsUnlimited() {
		next.Trial = grantTrial(eligible, now)
		grant(eligible)
		res.Steps = append(res.Steps, StepTrialBackfill)
	}

	switch in.Billing.kind {
	case lookupFound:
		sub := in.Billing.sub
		if !sub.BelongsTo(next.AppID) {
			res.Steps = append(res.Steps, StepForeignApp)
			break
		}
		plan, ok := in.Prices.PlanFor(sub.PriceID)
		if !ok {
			res.Steps = append(res.Steps, StepUnmappedPrice)
			break
		}
		if next.Plan != plan || next.Status != sub.Status || next.BillingReferenceID == "" {
			next.Plan = plan
			next.Status = sub.Status
			next.ExpiresAt = sub.ExpiresAt()
			if sub.TrialEnd != nil {
				next.Trial = TrialExpiresAt(*sub.TrialEnd)
			} else {
				next.Trial = TrialUnlimited()
			}
			next.BillingReferenceID = sub.ID
			res.Steps = append(res.Steps, StepBillingSync)
		}

	case lookupNoSubscription:
		grant(revertToTrial(&next, eligible, now))
		res.Steps = append(res.Steps, StepBillingRevert)

	case lookupCustomerMissing:
		next.ExternalCustomerID = ""
		next.BillingReferenceID = ""
		if next.Plan != PlanTrial {
			grant(revertToTrial(&next, eligible, now))
		}
		res.Steps = append(res.Steps, StepCustomerMissing)
	}

	res.Entitlement = next
	res.Changed = !next.Equal(current)
	return res
}

// revertToTrial drops a paid plan the billing system no longer backs. A
// stored trial window is kept; only a missing one is computed.
func revertToTrial(e *Entitlement, eligible bool, now time.Time) bool {
	e.Plan = PlanTrial
	e.Status = StatusActive
	e.BillingReferenceID = ""
	if !e.Trial.IsUnlimited() {
		return false
	}
	e.Trial = grantTrial(eligible, now)
	return eligible
}
