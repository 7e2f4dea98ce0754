package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maheshrc27/misepo-api/internal/entitlement"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/rs/zerolog/log"
)

type EntitlementRepository interface {
	Get(ctx context.Context, userID, appID string) (*entitlement.Entitlement, bool, error)
	GetByCustomerID(ctx context.Context, appID, customerID string) (*entitlement.Entitlement, bool, error)
	// Insert creates the row unless one already exists for the user and app.
	// created is false when another writer got there first.
	Insert(ctx context.Context, e entitlement.Entitlement) (stored *entitlement.Entitlement, created bool, err error)
	// CompareAndSwap writes next only if the row still holds prev. Plan and
	// status are matched the way they are parsed on read.
	CompareAndSwap(ctx context.Context, prev, next entitlement.Entitlement) (bool, error)
	LinkCustomer(ctx context.Context, userID, appID, customerID string) (bool, error)
	ListLinked(ctx context.Context, appID, afterUserID string, limit int) ([]entitlement.Entitlement, error)
}

type entitlementRepository struct {
	db *sql.DB
}

func NewEntitlementRepository(db *sql.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

const entitlementColumns = `id, user_id, app_id, plan, status, expires_at, trial_ends_at,
	COALESCE(billing_reference_id, ''), COALESCE(external_customer_id, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntitlement(row rowScanner) (*models.Entitlement, error) {
	var e models.Entitlement
	err := row.Scan(&e.ID, &e.UserID, &e.AppID, &e.Plan, &e.Status, &e.ExpiresAt, &e.TrialEndsAt,
		&e.BillingReferenceID, &e.ExternalCustomerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entitlementRepository) Get(ctx context.Context, userID, appID string) (*entitlement.Entitlement, bool, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE user_id = $1 AND app_id = $2`
	row, err := scanEntitlement(r.db.QueryRowContext(ctx, query, userID, appID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Error().Err(err).Str("user_id", userID).Str("app_id", appID).Msg("select entitlement")
		return nil, false, err
	}
	e := row.Domain()
	return &e, true, nil
}

func (r *entitlementRepository) GetByCustomerID(ctx context.Context, appID, customerID string) (*entitlement.Entitlement, bool, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE app_id = $1 AND external_customer_id = $2 LIMIT 1`
	row, err := scanEntitlement(r.db.QueryRowContext(ctx, query, appID, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Error().Err(err).Str("customer_id", customerID).Msg("select entitlement by customer")
		return nil, false, err
	}
	e := row.Domain()
	return &e, true, nil
}

func (r *entitlementRepository) Insert(ctx context.Context, e entitlement.Entitlement) (*entitlement.Entitlement, bool, error) {
	m := models.EntitlementFromDomain(e)
	query := `
		INSERT INTO entitlements (user_id, app_id, plan, status, expires_at, trial_ends_at, billing_reference_id, external_customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
		ON CONFLICT ON CONSTRAINT entitlements_user_app_key DO NOTHING
		RETURNING ` + entitlementColumns

	row, err := scanEntitlement(r.db.QueryRowContext(ctx, query, m.UserID, m.AppID, m.Plan, m.Status,
		m.ExpiresAt, m.TrialEndsAt, m.BillingReferenceID, m.ExternalCustomerID))
	if err == nil {
		stored := row.Domain()
		return &stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Str("user_id", e.UserID).Str("app_id", e.AppID).Msg("insert entitlement")
		return nil, false, err
	}

	// Lost the race: read back the row the other writer created.
	existing, found, err := r.Get(ctx, e.UserID, e.AppID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, errors.New("entitlement conflict reported but row not found")
	}
	return existing, false, nil
}

func (r *entitlementRepository) CompareAndSwap(ctx context.Context, prev, next entitlement.Entitlement) (bool, error) {
	p := models.EntitlementFromDomain(prev)
	n := models.EntitlementFromDomain(next)
	query := `
		UPDATE entitlements
		SET plan = $1,
			status = $2,
			expires_at = $3,
			trial_ends_at = $4,
			billing_reference_id = NULLIF($5, ''),
			external_customer_id = NULLIF($6, ''),
			updated_at = NOW()
		WHERE user_id = $7 AND app_id = $8
			AND LOWER(TRIM(plan)) = $9
			AND LOWER(TRIM(status)) = $10
			AND expires_at IS NOT DISTINCT FROM $11::timestamptz
			AND trial_ends_at IS NOT DISTINCT FROM $12::timestamptz
			AND COALESCE(billing_reference_id, '') = $13
			AND COALESCE(external_customer_id, '') = $14
	`
	res, err := r.db.ExecContext(ctx, query,
		n.Plan, n.Status, n.ExpiresAt, n.TrialEndsAt, n.BillingReferenceID, n.ExternalCustomerID,
		p.UserID, p.AppID,
		p.Plan, p.Status, p.ExpiresAt, p.TrialEndsAt, p.BillingReferenceID, p.ExternalCustomerID,
	)
	if err != nil {
		log.Error().Err(err).Str("user_id", prev.UserID).Str("app_id", prev.AppID).Msg("update entitlement")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *entitlementRepository) LinkCustomer(ctx context.Context, userID, appID, customerID string) (bool, error) {
	query := `
		UPDATE entitlements
		SET external_customer_id = $1,
			updated_at = NOW()
		WHERE user_id = $2 AND app_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, customerID, userID, appID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("customer_id", customerID).Msg("link billing customer")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListLinked pages through entitlements that carry a billing customer id,
// ordered by user id.
func (r *entitlementRepository) ListLinked(ctx context.Context, appID, afterUserID string, limit int) ([]entitlement.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + `
		FROM entitlements
		WHERE app_id = $1 AND external_customer_id IS NOT NULL AND user_id::text > $2
		ORDER BY user_id::text
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, appID, afterUserID, limit)
	if err != nil {
		log.Error().Err(err).Str("app_id", appID).Msg("list linked entitlements")
		return nil, err
	}
	defer rows.Close()

	var out []entitlement.Entitlement
	for rows.Next() {
		row, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row.Domain())
	}
	return out, rows.Err()
}
