package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/rs/zerolog/log"
)

type WebhookEventRepository interface {
	// Record stores the event id once and returns the stored row, including
	// whether an earlier delivery already finished processing.
	Record(ctx context.Context, eventID, eventType string) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id int64, processingError string) error
}

type webhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Record(ctx context.Context, eventID, eventType string) (*models.WebhookEvent, error) {
	insert := `
		INSERT INTO billing_webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, eventID, eventType); err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("insert webhook event")
		return nil, err
	}

	query := `
		SELECT id, event_id, event_type, processed_at, processing_error, created_at
		FROM billing_webhook_events WHERE event_id = $1
	`
	var ev models.WebhookEvent
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(&ev.ID, &ev.EventID, &ev.EventType, &ev.ProcessedAt, &ev.ProcessingError, &ev.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("select webhook event")
		return nil, err
	}
	return &ev, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id int64, processingError string) error {
	query := `
		UPDATE billing_webhook_events
		SET processed_at = NOW(),
			processing_error = $1
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, processingError, id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("mark webhook event processed")
		return err
	}
	return nil
}
