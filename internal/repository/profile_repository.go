package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

// ProfileRepository keeps the rows every per-user table references.
type ProfileRepository interface {
	EnsureProfile(ctx context.Context, userID string) error
	EnsureApp(ctx context.Context, userID, appID string) error
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) EnsureProfile(ctx context.Context, userID string) error {
	query := `INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("ensure profile")
		return err
	}
	return nil
}

func (r *profileRepository) EnsureApp(ctx context.Context, userID, appID string) error {
	query := `INSERT INTO user_apps (user_id, app_id) VALUES ($1, $2) ON CONFLICT (user_id, app_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, appID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("app_id", appID).Msg("ensure app registration")
		return err
	}
	return nil
}
