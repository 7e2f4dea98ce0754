package entitlement

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	testPrices = PriceCatalog{
		"price_entry":        PlanEntry,
		"price_standard":     PlanStandard,
		"price_professional": PlanProfessional,
	}
)

func tp(t time.Time) *time.Time { return &t }

func TestNewEntitlement(t *testing.T) {
	t.Run("eligible user gets a seven day trial", func(t *testing.T) {
		e, grant := NewEntitlement("u1", "misepo", true, testNow)
		assert.True(t, grant)
		assert.Equal(t, PlanTrial, e.Plan)
		assert.Equal(t, StatusActive, e.Status)
		ends, ok := e.Trial.EndsAt()
		require.True(t, ok)
		assert.Equal(t, testNow.Add(7*24*time.Hour), ends)
	})

	t.Run("ineligible user is created expired", func(t *testing.T) {
		e, grant := NewEntitlement("u1", "misepo", false, testNow)
		assert.False(t, grant)
		assert.Equal(t, PlanTrial, e.Plan)
		assert.Equal(t, StatusInactive, e.Status)
		assert.True(t, e.Trial.IsNeverGranted())
		require.NotNil(t, e.Trial.Column())
		assert.Equal(t, "2024-01-01T00:00:00Z", e.Trial.Column().Format(time.RFC3339))
		assert.False(t, ComputeAccess(e, testNow).CanUseApp())
	})
}

func TestReconcileLegacyPlan(t *testing.T) {
	legacy := Entitlement{UserID: "u1", AppID: "misepo", Plan: PlanLegacyFree, Status: StatusActive}

	t.Run("eligible", func(t *testing.T) {
		res := Reconcile(legacy, Inputs{Eligible: true, Prices: testPrices}, testNow)
		assert.True(t, res.Changed)
		assert.True(t, res.GrantTrial)
		assert.Equal(t, PlanTrial, res.Entitlement.Plan)
		assert.Equal(t, StatusActive, res.Entitlement.Status)
		ends, ok := res.Entitlement.Trial.EndsAt()
		require.True(t, ok)
		assert.Equal(t, testNow.Add(TrialLength), ends)
		assert.Equal(t, []Step{StepLegacyPlan}, res.Steps)
	})

	t.Run("ineligible", func(t *testing.T) {
		res := Reconcile(legacy, Inputs{Eligible: false, Prices: testPrices}, testNow)
		assert.False(t, res.GrantTrial)
		assert.Equal(t, PlanTrial, res.Entitlement.Plan)
		assert.Equal(t, StatusInactive, res.Entitlement.Status)
		assert.True(t, res.Entitlement.Trial.IsNeverGranted())
	})
}

func TestReconcileTrialBackfill(t *testing.T) {
	e := Entitlement{UserID: "u1", AppID: "misepo", Plan: PlanTrial, Status: StatusActive}

	res := Reconcile(e, Inputs{Eligible: true}, testNow)
	assert.True(t, res.GrantTrial)
	assert.Equal(t, []Step{StepTrialBackfill}, res.Steps)
	_, ok := res.Entitlement.Trial.EndsAt()
	assert.True(t, ok)

	res = Reconcile(e, Inputs{Eligible: false}, testNow)
	assert.False(t, res.GrantTrial)
	assert.True(t, res.Entitlement.Trial.IsNeverGranted())
}

func TestReconcileGrantsAtMostOnce(t *testing.T) {
	legacy := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanLegacyFree,
		ExternalCustomerID: "cus_1",
	}
	res := Reconcile(legacy, Inputs{Eligible: true, Billing: LookupNoSubscription(), Prices: testPrices}, testNow)
	assert.True(t, res.GrantTrial)
	assert.Equal(t, []Step{StepLegacyPlan, StepBillingRevert}, res.Steps)
	ends, ok := res.Entitlement.Trial.EndsAt()
	require.True(t, ok)
	assert.Equal(t, testNow.Add(TrialLength), ends)
}

func TestReconcileBillingPrecedence(t *testing.T) {
	e := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanTrial,
		Status:             StatusActive,
		Trial:              TrialExpiresAt(testNow.Add(48 * time.Hour)),
		ExternalCustomerID: "cus_1",
	}
	periodEnd := testNow.Add(30 * 24 * time.Hour)
	sub := Subscription{
		ID:               "sub_123",
		Status:           StatusActive,
		PriceID:          "price_standard",
		AppID:            "misepo",
		CurrentPeriodEnd: &periodEnd,
	}

	res := Reconcile(e, Inputs{Eligible: false, Billing: LookupFound(sub), Prices: testPrices}, testNow)
	assert.True(t, res.Changed)
	assert.False(t, res.GrantTrial)
	got := res.Entitlement
	assert.Equal(t, PlanStandard, got.Plan)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "sub_123", got.BillingReferenceID)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, periodEnd, *got.ExpiresAt)
	assert.True(t, got.Trial.IsUnlimited())
	assert.Equal(t, "cus_1", got.ExternalCustomerID)

	again := Reconcile(got, Inputs{Billing: LookupFound(sub), Prices: testPrices}, testNow)
	assert.False(t, again.Changed)
}

func TestReconcileBillingUsesCancelAtAndTrialEnd(t *testing.T) {
	cancelAt := testNow.Add(10 * 24 * time.Hour)
	trialEnd := testNow.Add(3 * 24 * time.Hour)
	periodEnd := testNow.Add(30 * 24 * time.Hour)
	sub := Subscription{
		ID:               "sub_9",
		Status:           StatusTrialing,
		PriceID:          "price_professional",
		CancelAt:         &cancelAt,
		CurrentPeriodEnd: &periodEnd,
		TrialEnd:         &trialEnd,
	}
	e := Entitlement{UserID: "u1", AppID: "misepo", Plan: PlanTrial, Status: StatusActive, Trial: TrialNeverGranted()}

	got := Reconcile(e, Inputs{Billing: LookupFound(sub), Prices: testPrices}, testNow).Entitlement
	assert.Equal(t, PlanProfessional, got.Plan)
	assert.Equal(t, StatusTrialing, got.Status)
	assert.Equal(t, cancelAt, *got.ExpiresAt)
	ends, ok := got.Trial.EndsAt()
	require.True(t, ok)
	assert.Equal(t, trialEnd, ends)
}

func TestReconcileIgnoresForeignApplication(t *testing.T) {
	e := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanTrial,
		Status:             StatusActive,
		Trial:              TrialExpiresAt(testNow.Add(time.Hour)),
		ExternalCustomerID: "cus_1",
	}
	sub := Subscription{ID: "sub_other", Status: StatusActive, PriceID: "price_professional", AppID: "misepo-staging"}

	res := Reconcile(e, Inputs{Billing: LookupFound(sub), Prices: testPrices}, testNow)
	assert.False(t, res.Changed)
	assert.True(t, res.Entitlement.Equal(e))
	assert.Equal(t, []Step{StepForeignApp}, res.Steps)
}

func TestReconcileIgnoresUnmappedPrice(t *testing.T) {
	e := Entitlement{UserID: "u1", AppID: "misepo", Plan: PlanEntry, Status: StatusActive, BillingReferenceID: "sub_1"}
	sub := Subscription{ID: "sub_1", Status: StatusCanceled, PriceID: "price_legacy"}

	res := Reconcile(e, Inputs{Billing: LookupFound(sub), Prices: testPrices}, testNow)
	assert.False(t, res.Changed)
	assert.Equal(t, []Step{StepUnmappedPrice}, res.Steps)
}

func TestReconcileRevertsWithoutSubscription(t *testing.T) {
	trialEnds := testNow.Add(-20 * 24 * time.Hour)
	e := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanStandard,
		Status:             StatusActive,
		Trial:              TrialExpiresAt(trialEnds),
		BillingReferenceID: "sub_old",
		ExternalCustomerID: "cus_1",
	}

	res := Reconcile(e, Inputs{Eligible: true, Billing: LookupNoSubscription(), Prices: testPrices}, testNow)
	got := res.Entitlement
	assert.False(t, res.GrantTrial)
	assert.Equal(t, PlanTrial, got.Plan)
	assert.Equal(t, StatusActive, got.Status)
	assert.Empty(t, got.BillingReferenceID)
	assert.Equal(t, "cus_1", got.ExternalCustomerID)
	ends, ok := got.Trial.EndsAt()
	require.True(t, ok)
	assert.Equal(t, trialEnds, ends)

	again := Reconcile(got, Inputs{Billing: LookupNoSubscription(), Prices: testPrices}, testNow)
	assert.False(t, again.Changed)
}

func TestReconcileRevertComputesMissingWindow(t *testing.T) {
	e := Entitlement{UserID: "u1", AppID: "misepo", Plan: PlanEntry, Status: StatusActive, BillingReferenceID: "sub_1"}

	res := Reconcile(e, Inputs{Eligible: true, Billing: LookupNoSubscription()}, testNow)
	assert.True(t, res.GrantTrial)
	_, ok := res.Entitlement.Trial.EndsAt()
	assert.True(t, ok)

	res = Reconcile(e, Inputs{Eligible: false, Billing: LookupNoSubscription()}, testNow)
	assert.False(t, res.GrantTrial)
	assert.True(t, res.Entitlement.Trial.IsNeverGranted())
}

func TestReconcileCustomerMissing(t *testing.T) {
	paid := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanProfessional,
		Status:             StatusActive,
		Trial:              TrialNeverGranted(),
		BillingReferenceID: "sub_1",
		ExternalCustomerID: "cus_gone",
	}
	got := Reconcile(paid, Inputs{Billing: LookupCustomerMissing()}, testNow).Entitlement
	assert.Empty(t, got.ExternalCustomerID)
	assert.Empty(t, got.BillingReferenceID)
	assert.Equal(t, PlanTrial, got.Plan)
	assert.True(t, got.Trial.IsNeverGranted())

	trial := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanTrial,
		Status:             StatusActive,
		Trial:              TrialExpiresAt(testNow.Add(time.Hour)),
		ExternalCustomerID: "cus_gone",
	}
	got = Reconcile(trial, Inputs{Billing: LookupCustomerMissing()}, testNow).Entitlement
	assert.Empty(t, got.ExternalCustomerID)
	assert.Equal(t, PlanTrial, got.Plan)
	assert.True(t, got.Trial.Equal(trial.Trial))
}

func TestReconcileKeepsStateOnTransientFailure(t *testing.T) {
	e := Entitlement{
		UserID:             "u1",
		AppID:              "misepo",
		Plan:               PlanStandard,
		Status:             StatusActive,
		BillingReferenceID: "sub_1",
		ExternalCustomerID: "cus_1",
	}
	res := Reconcile(e, Inputs{Billing: LookupFailed(errors.New("timeout")), Prices: testPrices}, testNow)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Steps)
}
