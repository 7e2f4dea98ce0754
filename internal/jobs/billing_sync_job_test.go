package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/service"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinked struct {
	users []string
	err   error
}

func (f *fakeLinked) ListLinked(_ context.Context, _ string, after string, limit int) ([]entitlement.Entitlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []entitlement.Entitlement
	for _, u := range f.users {
		if u > after && len(out) < limit {
			out = append(out, entitlement.Entitlement{UserID: u, ExternalCustomerID: "cus_" + u})
		}
	}
	return out, nil
}

type recordingPlans struct {
	mu      sync.Mutex
	seen    []string
	failFor map[string]bool
}

func (p *recordingPlans) GetPlan(context.Context, string, service.DemoOverride) (*transfer.PlanResponse, error) {
	return nil, errors.New("not used")
}

func (p *recordingPlans) Reconcile(_ context.Context, userID string) (*entitlement.Entitlement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, userID)
	if p.failFor[userID] {
		return nil, errors.New("reconcile failed")
	}
	return &entitlement.Entitlement{UserID: userID}, nil
}

func (*recordingPlans) LinkCustomer(context.Context, string, string) error {
	return errors.New("not used")
}

func TestBillingSyncVisitsEveryPage(t *testing.T) {
	var users []string
	for i := 0; i < syncPageSize*2+7; i++ {
		users = append(users, fmt.Sprintf("user-%04d", i))
	}
	plans := &recordingPlans{failFor: map[string]bool{"user-0003": true}}
	job := NewBillingSyncJob("misepo", &fakeLinked{users: users}, plans)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(users)-1), res.Reconciled)
	assert.Equal(t, int64(1), res.Failed)

	sort.Strings(plans.seen)
	assert.Equal(t, users, plans.seen)
}

func TestBillingSyncListFailure(t *testing.T) {
	job := NewBillingSyncJob("misepo", &fakeLinked{err: errors.New("db down")}, &recordingPlans{})

	_, err := job.Run(context.Background())
	assert.Error(t, err)
}

func TestBillingSyncSkipsOverlappingRuns(t *testing.T) {
	plans := &recordingPlans{}
	job := NewBillingSyncJob("misepo", &fakeLinked{users: []string{"a"}}, plans)
	job.running.Store(true)

	job.SyncEntitlements()
	assert.Empty(t, plans.seen)
}
