package queue

import (
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/misepo-api/internal/service"
)

type Queue struct {
	client *asynq.Client
	plans  service.PlanService
}

func NewQueue(client *asynq.Client, plans service.PlanService) *Queue {
	return &Queue{
		client: client,
		plans:  plans,
	}
}

const TaskTypeReconcileEntitlement = "entitlement:reconcile"

type ReconcilePayload struct {
	UserID string `json:"user_id"`
}
