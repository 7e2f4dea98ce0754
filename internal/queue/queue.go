package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Reconciles for the same user within this window collapse into one task.
const reconcileDedupWindow = 30 * time.Second

func NewReconcileTask(userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReconcileEntitlement, payload,
		asynq.Unique(reconcileDedupWindow),
		asynq.MaxRetry(5),
	), nil
}

// EnqueueReconcile schedules a reconcile for userID. A task already pending
// for the same user counts as scheduled.
func (q *Queue) EnqueueReconcile(ctx context.Context, userID string) error {
	task, err := NewReconcileTask(userID)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		log.Debug().Str("user_id", userID).Msg("reconcile already queued")
		return nil
	}
	if err != nil {
		return err
	}

	log.Debug().Str("user_id", userID).Str("task_id", info.ID).Str("queue", info.Queue).Msg("reconcile queued")
	return nil
}
