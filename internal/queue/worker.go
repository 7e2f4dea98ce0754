package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

func (q *Queue) HandleReconcileTask(ctx context.Context, task *asynq.Task) error {
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return fmt.Errorf("reconcile payload without user id: %w", asynq.SkipRetry)
	}

	ent, err := q.plans.Reconcile(ctx, payload.UserID)
	if err != nil {
		return err
	}

	log.Info().
		Str("user_id", payload.UserID).
		Str("plan", string(ent.Plan)).
		Str("status", string(ent.Status)).
		Msg("entitlement reconciled")
	return nil
}
