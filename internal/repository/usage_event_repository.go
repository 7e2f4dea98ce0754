package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/rs/zerolog/log"
)

type UsageEventRepository interface {
	Create(ctx context.Context, ev *models.UsageEvent) error
	// CountSince counts events of eventType at or after since. A nil since
	// counts every event.
	CountSince(ctx context.Context, userID, appID, eventType string, since *time.Time) (int, error)
}

type usageEventRepository struct {
	db *sql.DB
}

func NewUsageEventRepository(db *sql.DB) UsageEventRepository {
	return &usageEventRepository{db: db}
}

func (r *usageEventRepository) Create(ctx context.Context, ev *models.UsageEvent) error {
	query := `
		INSERT INTO usage_events (id, user_id, app_id, event_type, platform, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, ev.ID, ev.UserID, ev.AppID, ev.EventType, ev.Platform, ev.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("insert usage event")
		return err
	}
	return nil
}

func (r *usageEventRepository) CountSince(ctx context.Context, userID, appID, eventType string, since *time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM usage_events
		WHERE user_id = $1 AND app_id = $2 AND event_type = $3
			AND ($4::timestamptz IS NULL OR created_at >= $4::timestamptz)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, appID, eventType, since).Scan(&count); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("count usage events")
		return 0, err
	}
	return count, nil
}
