package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
)

type TrialRedemptionRepository interface {
	Exists(ctx context.Context, appID, userID, promoKey string) (bool, error)
	// Claim records the redemption. claimed is false when it was already
	// recorded, by this or a concurrent request.
	Claim(ctx context.Context, appID, userID, promoKey string) (claimed bool, err error)
}

type trialRedemptionRepository struct {
	db *sql.DB
}

func NewTrialRedemptionRepository(db *sql.DB) TrialRedemptionRepository {
	return &trialRedemptionRepository{db: db}
}

func (r *trialRedemptionRepository) Exists(ctx context.Context, appID, userID, promoKey string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM trial_redemptions WHERE app_id = $1 AND user_id = $2 AND promo_key = $3)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, appID, userID, promoKey).Scan(&exists); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("app_id", appID).Msg("select trial redemption")
		return false, err
	}
	return exists, nil
}

func (r *trialRedemptionRepository) Claim(ctx context.Context, appID, userID, promoKey string) (bool, error) {
	query := `
		INSERT INTO trial_redemptions (app_id, user_id, promo_key)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT trial_redemptions_app_user_promo_key DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, appID, userID, promoKey).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Error().Err(err).Str("user_id", userID).Str("app_id", appID).Msg("insert trial redemption")
		return false, err
	}
	return true, nil
}
