package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/rs/zerolog/log"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.User, bool, error)
	Create(ctx context.Context, user *models.User) (string, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, bool, error) {
	var user models.User
	query := "SELECT id, google_id, email, name, profile_picture, created_at FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.ProfilePicture, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Error().Err(err).Str("user_id", id).Msg("select user by id")
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	var user models.User
	query := "SELECT id, google_id, email, name, profile_picture, created_at FROM users WHERE email = $1"
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.ProfilePicture, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Error().Err(err).Msg("select user by email")
		return nil, false, err
	}
	return &user, true, nil
}

// Create inserts a user with a fresh id. ErrDuplicate is returned when the
// email is already registered.
func (r *userRepository) Create(ctx context.Context, user *models.User) (string, error) {
	query := "INSERT INTO users (id, google_id, email, name, profile_picture) VALUES ($1, $2, $3, $4, $5)"

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, query, id, user.GoogleID, user.Email, user.Name, user.ProfilePicture)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		log.Error().Err(err).Msg("insert user")
		return "", err
	}
	return id, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET google_id = $1,
			name = $2,
			profile_picture = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, user.GoogleID, user.Name, user.ProfilePicture, time.Now(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("update user")
		return err
	}

	return nil
}
