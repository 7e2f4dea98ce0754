package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/stripe/stripe-go/v82"
)

const testAppID = "misepo"

var (
	testNow    = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	testPrices = entitlement.PriceCatalog{
		"price_entry":        entitlement.PlanEntry,
		"price_standard":     entitlement.PlanStandard,
		"price_professional": entitlement.PlanProfessional,
	}
	errStorage = errors.New("storage unavailable")
)

func tp(t time.Time) *time.Time { return &t }

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]bool
	apps     map[string]bool
	calls    int
	err      error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]bool{}, apps: map[string]bool{}}
}

func (f *fakeProfiles) EnsureProfile(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.profiles[userID] = true
	return nil
}

func (f *fakeProfiles) EnsureApp(_ context.Context, userID, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.apps[userID+"/"+appID] = true
	return nil
}

type fakeEntitlements struct {
	mu     sync.Mutex
	rows   map[string]entitlement.Entitlement
	writes int
	// beforeSwap runs ahead of each compare-and-swap with the lock released,
	// standing in for a concurrent request.
	beforeSwap func()
	// onInsert, when set, runs before Insert checks for an existing row.
	onInsert func()
	getErr   error
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{rows: map[string]entitlement.Entitlement{}}
}

func entKey(userID, appID string) string { return userID + "/" + appID }

func (f *fakeEntitlements) put(e entitlement.Entitlement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[entKey(e.UserID, e.AppID)] = e
}

func (f *fakeEntitlements) stored(userID string) (entitlement.Entitlement, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[entKey(userID, testAppID)]
	return e, ok
}

func (f *fakeEntitlements) Get(_ context.Context, userID, appID string) (*entitlement.Entitlement, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.rows[entKey(userID, appID)]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (f *fakeEntitlements) GetByCustomerID(_ context.Context, appID, customerID string) (*entitlement.Entitlement, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.AppID == appID && e.ExternalCustomerID == customerID {
			out := e
			return &out, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeEntitlements) Insert(_ context.Context, e entitlement.Entitlement) (*entitlement.Entitlement, bool, error) {
	if f.onInsert != nil {
		f.onInsert()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := entKey(e.UserID, e.AppID)
	if existing, ok := f.rows[k]; ok {
		return &existing, false, nil
	}
	f.rows[k] = e
	f.writes++
	return &e, true, nil
}

func (f *fakeEntitlements) CompareAndSwap(_ context.Context, prev, next entitlement.Entitlement) (bool, error) {
	if f.beforeSwap != nil {
		hook := f.beforeSwap
		f.beforeSwap = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := entKey(prev.UserID, prev.AppID)
	cur, ok := f.rows[k]
	if !ok || !cur.Equal(prev) {
		return false, nil
	}
	f.rows[k] = next
	f.writes++
	return true, nil
}

func (f *fakeEntitlements) LinkCustomer(_ context.Context, userID, appID, customerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := entKey(userID, appID)
	e, ok := f.rows[k]
	if !ok {
		return false, nil
	}
	e.ExternalCustomerID = customerID
	f.rows[k] = e
	return true, nil
}

func (f *fakeEntitlements) ListLinked(_ context.Context, appID, afterUserID string, limit int) ([]entitlement.Entitlement, error) {
	return nil, errors.New("not used")
}

type fakeRedemptions struct {
	mu      sync.Mutex
	claimed map[string]bool
	// claimErr fails the next Claim once.
	claimErr error
	// beforeClaim runs once ahead of the next Claim, standing in for a
	// concurrent request.
	beforeClaim func()
}

func newFakeRedemptions() *fakeRedemptions {
	return &fakeRedemptions{claimed: map[string]bool{}}
}

func (f *fakeRedemptions) Exists(_ context.Context, appID, userID, promoKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed[appID+"/"+userID+"/"+promoKey], nil
}

func (f *fakeRedemptions) Claim(_ context.Context, appID, userID, promoKey string) (bool, error) {
	f.mu.Lock()
	hook := f.beforeClaim
	f.beforeClaim = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claimErr; err != nil {
		f.claimErr = nil
		return false, err
	}
	k := appID + "/" + userID + "/" + promoKey
	if f.claimed[k] {
		return false, nil
	}
	f.claimed[k] = true
	return true, nil
}

func (f *fakeRedemptions) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[testAppID+"/"+userID+"/"+entitlement.TrialPromoKey] {
		return 1
	}
	return 0
}

type fakeUsage struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

func (f *fakeUsage) Create(_ context.Context, ev *models.UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeUsage) CountSince(_ context.Context, userID, appID, eventType string, since *time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.UserID != userID || ev.AppID != appID || ev.EventType != eventType {
			continue
		}
		if since != nil && ev.CreatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeUsage) add(userID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, models.UsageEvent{
		ID: at.String(), UserID: userID, AppID: testAppID,
		EventType: models.EventTypeGeneration, CreatedAt: at,
	})
}

type fakeBilling struct {
	mu       sync.Mutex
	lookup   entitlement.BillingLookup
	lookups  int
	subs     map[string]entitlement.Subscription
	gets     int
	event    stripe.Event
	eventErr error
}

func (f *fakeBilling) LatestSubscription(_ context.Context, _ string) entitlement.BillingLookup {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.lookup
}

func (f *fakeBilling) GetSubscription(_ context.Context, id string) (*entitlement.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	sub, ok := f.subs[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return &sub, nil
}

func (f *fakeBilling) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return f.event, f.eventErr
}

func (f *fakeBilling) Prices() entitlement.PriceCatalog {
	return testPrices
}

type fakeWebhookEvents struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.WebhookEvent
}

func newFakeWebhookEvents() *fakeWebhookEvents {
	return &fakeWebhookEvents{rows: map[string]*models.WebhookEvent{}}
}

func (f *fakeWebhookEvents) Record(_ context.Context, eventID, eventType string) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.rows[eventID]; ok {
		out := *ev
		return &out, nil
	}
	f.nextID++
	ev := &models.WebhookEvent{ID: f.nextID, EventID: eventID, EventType: eventType}
	f.rows[eventID] = ev
	out := *ev
	return &out, nil
}

func (f *fakeWebhookEvents) MarkProcessed(_ context.Context, id int64, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.rows {
		if ev.ID == id {
			now := testNow
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

type planFixture struct {
	profiles    *fakeProfiles
	ents        *fakeEntitlements
	redemptions *fakeRedemptions
	usage       *fakeUsage
	billing     *fakeBilling
	svc         *planService
}

func newPlanFixture() *planFixture {
	f := &planFixture{
		profiles:    newFakeProfiles(),
		ents:        newFakeEntitlements(),
		redemptions: newFakeRedemptions(),
		usage:       &fakeUsage{},
		billing:     &fakeBilling{subs: map[string]entitlement.Subscription{}},
	}
	f.svc = &planService{
		appID:       testAppID,
		profiles:    f.profiles,
		ents:        f.ents,
		redemptions: f.redemptions,
		usage:       f.usage,
		billing:     f.billing,
		now:         func() time.Time { return testNow },
	}
	return f
}

var (
	_ repository.ProfileRepository         = (*fakeProfiles)(nil)
	_ repository.EntitlementRepository     = (*fakeEntitlements)(nil)
	_ repository.TrialRedemptionRepository = (*fakeRedemptions)(nil)
	_ repository.UsageEventRepository      = (*fakeUsage)(nil)
	_ repository.WebhookEventRepository    = (*fakeWebhookEvents)(nil)
	_ BillingService                       = (*fakeBilling)(nil)
)
