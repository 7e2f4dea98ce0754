package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/metrics"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
)

var ErrInvalidSignature = errors.New("invalid billing webhook signature")

// Enqueuer schedules an asynchronous entitlement reconcile.
type Enqueuer interface {
	EnqueueReconcile(ctx context.Context, userID string) error
}

// SubscriptionService takes billing webhooks. It only links customer ids and
// schedules reconciles; plan state is written by PlanService alone.
type SubscriptionService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type subscriptionService struct {
	appID   string
	billing BillingService
	ents    repository.EntitlementRepository
	events  repository.WebhookEventRepository
	plans   PlanService
	queue   Enqueuer
}

func NewSubscriptionService(
	cfg config.Config,
	billing BillingService,
	ents repository.EntitlementRepository,
	events repository.WebhookEventRepository,
	plans PlanService,
	queue Enqueuer) SubscriptionService {
	return &subscriptionService{
		appID:   cfg.AppID,
		billing: billing,
		ents:    ents,
		events:  events,
		plans:   plans,
		queue:   queue,
	}
}

func (s *subscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.billing.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrBillingNotConfigured) {
			return err
		}
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		log.Warn().Err(err).Msg("billing webhook rejected")
		return ErrInvalidSignature
	}
	eventType := string(event.Type)
	logger := log.With().Str("event_id", event.ID).Str("type", eventType).Logger()

	record, err := s.events.Record(ctx, event.ID, eventType)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("record webhook event: %w", err)
	}
	if record.ProcessedAt != nil && record.ProcessingError == "" {
		metrics.WebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		logger.Info().Msg("billing webhook already processed")
		return nil
	}

	handleErr := s.dispatch(ctx, event)
	errMsg := ""
	if handleErr != nil {
		errMsg = handleErr.Error()
	}
	if err := s.events.MarkProcessed(ctx, record.ID, errMsg); err != nil {
		logger.Error().Err(err).Msg("mark webhook event processed")
	}
	if handleErr != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		logger.Error().Err(handleErr).Msg("billing webhook processing failed")
		return handleErr
	}
	metrics.WebhookEvents.WithLabelValues(eventType, "ok").Inc()
	return nil
}

func (s *subscriptionService) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session transfer.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.handleCheckout(ctx, session)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub transfer.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionChange(ctx, sub)

	default:
		log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("billing webhook ignored")
		return nil
	}
}

func (s *subscriptionService) handleCheckout(ctx context.Context, session transfer.CheckoutSession) error {
	userID := strings.TrimSpace(session.ClientReferenceID)
	if userID == "" {
		userID = strings.TrimSpace(session.Metadata["user_id"])
	}
	customerID := strings.TrimSpace(session.Customer)
	if appID := strings.TrimSpace(session.Metadata[entitlement.MetadataAppID]); appID != "" && appID != s.appID {
		log.Info().Str("session_id", session.ID).Str("app_id", appID).Msg("checkout for another app ignored")
		return nil
	}
	if _, err := uuid.Parse(userID); err != nil || customerID == "" {
		log.Warn().Str("session_id", session.ID).Msg("checkout session without user reference or customer")
		return nil
	}

	if err := s.plans.LinkCustomer(ctx, userID, customerID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Str("customer_id", customerID).Msg("billing customer linked")
	return s.schedule(ctx, userID)
}

func (s *subscriptionService) handleSubscriptionChange(ctx context.Context, sub transfer.SubscriptionEvent) error {
	if appID := strings.TrimSpace(sub.Metadata[entitlement.MetadataAppID]); appID != "" && appID != s.appID {
		return nil
	}
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return nil
	}
	ent, found, err := s.ents.GetByCustomerID(ctx, s.appID, customerID)
	if err != nil {
		return fmt.Errorf("lookup entitlement by customer: %w", err)
	}
	if !found {
		log.Info().Str("customer_id", customerID).Str("subscription_id", sub.ID).Msg("subscription event for unlinked customer")
		return nil
	}
	return s.schedule(ctx, ent.UserID)
}

// schedule queues a reconcile, running it inline when the queue is
// unavailable.
func (s *subscriptionService) schedule(ctx context.Context, userID string) error {
	if s.queue != nil {
		err := s.queue.EnqueueReconcile(ctx, userID)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("enqueue reconcile failed, reconciling inline")
	}
	if _, err := s.plans.Reconcile(ctx, userID); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}
