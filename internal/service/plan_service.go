package service

import (
	"context"
	"fmt"
	"time"

	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/metrics"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	"github.com/rs/zerolog/log"
)

// DemoOverride short-circuits a plan check with a synthetic professional
// plan. It is decided by the caller, never read from ambient state.
type DemoOverride bool

// DemoUsageLimit is the allowance reported for demo sessions.
const DemoUsageLimit = 9999

type PlanService interface {
	// GetPlan resolves the caller's plan, healing stored state against the
	// billing system, and reports access and usage.
	GetPlan(ctx context.Context, userID string, demo DemoOverride) (*transfer.PlanResponse, error)
	// Reconcile runs the same healing without computing usage.
	Reconcile(ctx context.Context, userID string) (*entitlement.Entitlement, error)
	// LinkCustomer attaches a billing customer to the user's entitlement. A
	// user without one gets a row that carries no trial.
	LinkCustomer(ctx context.Context, userID, customerID string) error
}

type planService struct {
	appID       string
	profiles    repository.ProfileRepository
	ents        repository.EntitlementRepository
	redemptions repository.TrialRedemptionRepository
	usage       repository.UsageEventRepository
	billing     BillingService
	now         func() time.Time
}

func NewPlanService(
	cfg config.Config,
	profiles repository.ProfileRepository,
	ents repository.EntitlementRepository,
	redemptions repository.TrialRedemptionRepository,
	usage repository.UsageEventRepository,
	billing BillingService) PlanService {
	return &planService{
		appID:       cfg.AppID,
		profiles:    profiles,
		ents:        ents,
		redemptions: redemptions,
		usage:       usage,
		billing:     billing,
		now:         defaultNow,
	}
}

// Postgres keeps microseconds; truncating keeps compare-and-swap writes
// matching what was read back.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type resolvedPlan struct {
	ent      entitlement.Entitlement
	eligible bool
	lookup   entitlement.BillingLookup
}

func (s *planService) GetPlan(ctx context.Context, userID string, demo DemoOverride) (*transfer.PlanResponse, error) {
	start := time.Now()
	defer func() { metrics.PlanCheckDuration.Observe(time.Since(start).Seconds()) }()

	if demo {
		metrics.PlanChecks.WithLabelValues("demo").Inc()
		return demoPlan(), nil
	}

	now := s.now()
	rp, err := s.resolve(ctx, userID, now)
	if err != nil {
		metrics.PlanChecks.WithLabelValues("error").Inc()
		return nil, err
	}

	access := entitlement.ComputeAccess(rp.ent, now)
	quota := entitlement.SelectQuota(rp.ent, s.billingWindowStart(ctx, rp), now)

	used, err := s.usage.CountSince(ctx, userID, s.appID, models.EventTypeGeneration, quota.WindowStart)
	if err != nil {
		metrics.PlanChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("count usage: %w", err)
	}

	metrics.PlanChecks.WithLabelValues("ok").Inc()
	return &transfer.PlanResponse{
		Plan:             string(rp.ent.Plan),
		Status:           string(rp.ent.Status),
		ExpiresAt:        rp.ent.ExpiresAt,
		TrialEndsAt:      rp.ent.Trial.Column(),
		CanUseApp:        access.CanUseApp(),
		IsPro:            quota.IsPro,
		EligibleForTrial: rp.eligible,
		Limit:            quota.Limit,
		Usage:            used,
		UsagePeriod:      quota.Period,
	}, nil
}

func (s *planService) Reconcile(ctx context.Context, userID string) (*entitlement.Entitlement, error) {
	rp, err := s.resolve(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &rp.ent, nil
}

func (s *planService) LinkCustomer(ctx context.Context, userID, customerID string) error {
	linked, err := s.ents.LinkCustomer(ctx, userID, s.appID, customerID)
	if err != nil {
		return fmt.Errorf("link customer: %w", err)
	}
	if linked {
		return nil
	}

	if err := s.profiles.EnsureProfile(ctx, userID); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	if err := s.profiles.EnsureApp(ctx, userID, s.appID); err != nil {
		return fmt.Errorf("ensure app registration: %w", err)
	}
	fresh, _ := entitlement.NewEntitlement(userID, s.appID, false, s.now())
	fresh.ExternalCustomerID = customerID
	_, created, err := s.ents.Insert(ctx, fresh)
	if err != nil {
		return fmt.Errorf("create entitlement: %w", err)
	}
	if created {
		log.Info().Str("user_id", userID).Str("app_id", s.appID).Msg("created entitlement for billing customer")
		return nil
	}

	// A plan check created the row in the meantime.
	metrics.WriteConflicts.WithLabelValues("entitlement_insert").Inc()
	if _, err := s.ents.LinkCustomer(ctx, userID, s.appID, customerID); err != nil {
		return fmt.Errorf("link customer: %w", err)
	}
	return nil
}

// maxHealAttempts bounds the retries of a request that holds an unwritten
// trial redemption and keeps losing the compare-and-swap.
const maxHealAttempts = 3

func (s *planService) resolve(ctx context.Context, userID string, now time.Time) (*resolvedPlan, error) {
	logger := log.With().Str("user_id", userID).Str("app_id", s.appID).Logger()

	if err := s.profiles.EnsureProfile(ctx, userID); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	if err := s.profiles.EnsureApp(ctx, userID, s.appID); err != nil {
		return nil, fmt.Errorf("ensure app registration: %w", err)
	}

	// The row is read before eligibility: trial windows are only written after
	// their redemption, so a window seen here is never reported as claimable.
	current, found, err := s.ents.Get(ctx, userID, s.appID)
	if err != nil {
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	eligible, err := s.trialEligible(ctx, userID)
	if err != nil {
		return nil, err
	}
	// held is true while this request owns a trial redemption that is not yet
	// written into the entitlement.
	held := false

	if !found {
		if eligible {
			if held, err = s.claimTrial(ctx, userID); err != nil {
				return nil, err
			}
			eligible = false
		}
		fresh, _ := entitlement.NewEntitlement(userID, s.appID, held, now)
		stored, created, err := s.ents.Insert(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("create entitlement: %w", err)
		}
		switch {
		case created && held:
			held = false
			logger.Info().Msg("created entitlement with trial")
		case created:
			logger.Info().Msg("created entitlement without trial")
		default:
			metrics.WriteConflicts.WithLabelValues("entitlement_insert").Inc()
		}
		current = stored
	}

	lookup := entitlement.LookupNotAttempted()
	if current.ExternalCustomerID != "" {
		lookup = s.billing.LatestSubscription(ctx, current.ExternalCustomerID)
		metrics.BillingLookups.WithLabelValues(lookup.Result()).Inc()
		if lookup.Err() != nil {
			logger.Warn().Err(lookup.Err()).Str("customer_id", current.ExternalCustomerID).
				Msg("billing lookup failed, using stored entitlement")
		}
	}

	rp := &resolvedPlan{ent: *current, lookup: lookup}
	for attempt := 1; ; attempt++ {
		res := s.heal(*current, eligible || held, held, lookup, now)
		if res.GrantTrial && !held {
			claimed, err := s.claimTrial(ctx, userID)
			if err != nil {
				return nil, err
			}
			eligible, held = false, claimed
			if !claimed {
				res = s.heal(*current, false, false, lookup, now)
			}
		}
		for _, step := range res.Steps {
			metrics.HealSteps.WithLabelValues(string(step)).Inc()
		}
		if !res.Changed {
			rp.ent = *current
			break
		}

		swapped, err := s.ents.CompareAndSwap(ctx, *current, res.Entitlement)
		if err != nil {
			return nil, fmt.Errorf("update entitlement: %w", err)
		}
		if swapped {
			if res.GrantTrial {
				held = false
			}
			logger.Info().
				Strs("steps", stepNames(res.Steps)).
				Str("plan", string(res.Entitlement.Plan)).
				Str("status", string(res.Entitlement.Status)).
				Msg("healed entitlement")
			rp.ent = res.Entitlement
			break
		}

		// Another request healed the row first; its write stands.
		metrics.WriteConflicts.WithLabelValues("entitlement_update").Inc()
		latest, found, err := s.ents.Get(ctx, userID, s.appID)
		if err != nil {
			return nil, fmt.Errorf("reload entitlement: %w", err)
		}
		if !found {
			return nil, fmt.Errorf("entitlement for %s vanished during update", userID)
		}
		current = latest
		if !held {
			if eligible, err = s.trialEligible(ctx, userID); err != nil {
				return nil, err
			}
		}
		if !held || attempt == maxHealAttempts {
			rp.ent = *latest
			break
		}
	}

	if held {
		logger.Warn().Msg("trial redemption claimed but no trial window written")
	}
	rp.eligible = eligible
	return rp, nil
}

// heal runs the reconciler over current. A request holding an unwritten
// redemption may also hand the trial to a row that a concurrent first check
// created without one.
func (s *planService) heal(current entitlement.Entitlement, eligible, held bool, lookup entitlement.BillingLookup, now time.Time) entitlement.Result {
	in := entitlement.Inputs{Eligible: eligible, Billing: lookup, Prices: s.billing.Prices()}
	if held {
		if bare, _ := entitlement.NewEntitlement(current.UserID, current.AppID, false, now); current.Equal(bare) {
			granted, _ := entitlement.NewEntitlement(current.UserID, current.AppID, true, now)
			in.Eligible = false
			res := entitlement.Reconcile(granted, in, now)
			res.Steps = append([]entitlement.Step{entitlement.StepTrialBackfill}, res.Steps...)
			res.GrantTrial = true
			res.Changed = !res.Entitlement.Equal(current)
			return res
		}
	}
	return entitlement.Reconcile(current, in, now)
}

func (s *planService) trialEligible(ctx context.Context, userID string) (bool, error) {
	redeemed, err := s.redemptions.Exists(ctx, s.appID, userID, entitlement.TrialPromoKey)
	if err != nil {
		return false, fmt.Errorf("check trial redemption: %w", err)
	}
	return !redeemed, nil
}

// claimTrial consumes the trial redemption. It must succeed before any trial
// window is written; claimed is false when another request holds it.
func (s *planService) claimTrial(ctx context.Context, userID string) (bool, error) {
	claimed, err := s.redemptions.Claim(ctx, s.appID, userID, entitlement.TrialPromoKey)
	if err != nil {
		return false, fmt.Errorf("record trial redemption: %w", err)
	}
	if !claimed {
		metrics.WriteConflicts.WithLabelValues("trial_redemption").Inc()
		log.Debug().Str("user_id", userID).Str("app_id", s.appID).Msg("trial redemption already recorded")
		return false, nil
	}
	metrics.TrialGrants.Inc()
	return true, nil
}

// billingWindowStart returns when the paid quota window opened, reusing the
// subscription fetched during healing when it is the one on record.
func (s *planService) billingWindowStart(ctx context.Context, rp *resolvedPlan) *time.Time {
	ref := rp.ent.BillingReferenceID
	if !entitlement.MeteredMonthly(rp.ent) || !entitlement.LooksLikeSubscriptionID(ref) {
		return nil
	}
	if sub, ok := rp.lookup.Subscription(); ok && sub.ID == ref {
		return sub.QuotaWindowStart()
	}
	sub, err := s.billing.GetSubscription(ctx, ref)
	if err != nil {
		log.Warn().Err(err).Str("user_id", rp.ent.UserID).Str("subscription_id", ref).
			Msg("subscription lookup for quota window failed, using calendar month")
		return nil
	}
	return sub.QuotaWindowStart()
}

func demoPlan() *transfer.PlanResponse {
	return &transfer.PlanResponse{
		Plan:        string(entitlement.PlanProfessional),
		Status:      string(entitlement.StatusActive),
		CanUseApp:   true,
		IsPro:       true,
		Limit:       DemoUsageLimit,
		UsagePeriod: entitlement.UsagePeriodMonthly,
	}
}

func stepNames(steps []entitlement.Step) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = string(st)
	}
	return out
}
