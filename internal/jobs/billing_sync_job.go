package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	syncPageSize         = 200
	syncConcurrencyLimit = 10
	syncReconcileTimeout = 30 * time.Second
)

// LinkedEntitlements lists entitlements that carry a billing customer id.
type LinkedEntitlements interface {
	ListLinked(ctx context.Context, appID, afterUserID string, limit int) ([]entitlement.Entitlement, error)
}

// BillingSyncJob reconciles every billing-linked entitlement so that plan
// changes made outside a webhook still reach stored state.
type BillingSyncJob struct {
	appID   string
	ents    LinkedEntitlements
	plans   service.PlanService
	running atomic.Bool
}

func NewBillingSyncJob(appID string, ents LinkedEntitlements, plans service.PlanService) *BillingSyncJob {
	return &BillingSyncJob{
		appID: appID,
		ents:  ents,
		plans: plans,
	}
}

// SyncResult summarises one sweep.
type SyncResult struct {
	Reconciled int64
	Failed     int64
}

// SyncEntitlements is the cron entry point.
func (j *BillingSyncJob) SyncEntitlements() {
	if !j.running.CompareAndSwap(false, true) {
		log.Warn().Msg("billing sync still running, skipping this tick")
		return
	}
	defer j.running.Store(false)

	start := time.Now()
	res, err := j.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("billing sync aborted")
	}
	log.Info().
		Int64("reconciled", res.Reconciled).
		Int64("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("billing sync finished")
}

// Run pages through linked entitlements and reconciles each one.
func (j *BillingSyncJob) Run(ctx context.Context) (SyncResult, error) {
	var (
		wg         sync.WaitGroup
		reconciled atomic.Int64
		failed     atomic.Int64
	)
	semaphore := make(chan struct{}, syncConcurrencyLimit)

	after := ""
	for {
		page, err := j.ents.ListLinked(ctx, j.appID, after, syncPageSize)
		if err != nil {
			wg.Wait()
			return SyncResult{Reconciled: reconciled.Load(), Failed: failed.Load()}, err
		}

		for _, ent := range page {
			wg.Add(1)
			semaphore <- struct{}{}

			go func(userID string) {
				defer wg.Done()
				defer func() { <-semaphore }()

				rctx, cancel := context.WithTimeout(ctx, syncReconcileTimeout)
				defer cancel()
				if _, err := j.plans.Reconcile(rctx, userID); err != nil {
					failed.Add(1)
					log.Warn().Err(err).Str("user_id", userID).Msg("billing sync reconcile failed")
					return
				}
				reconciled.Add(1)
			}(ent.UserID)
		}

		if len(page) < syncPageSize {
			break
		}
		after = page[len(page)-1].UserID
	}

	wg.Wait()
	return SyncResult{Reconciled: reconciled.Load(), Failed: failed.Load()}, nil
}
