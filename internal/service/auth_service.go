package service

import (
	"context"
	"errors"
	"fmt"

	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type AuthService interface {
	AuthURL(state string) string
	// LoginCallback exchanges a Google authorization code and returns the
	// signed-in user's id, registering the user on first login.
	LoginCallback(ctx context.Context, code string) (userID string, err error)
}

type authService struct {
	oauth    *oauth2.Config
	users    repository.UserRepository
	profiles repository.ProfileRepository
	identify func(ctx context.Context, code string) (*transfer.GoogleUserInfo, error)
}

func NewAuthService(cfg config.Config, users repository.UserRepository, profiles repository.ProfileRepository) AuthService {
	s := &authService{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{googleoauth.UserinfoEmailScope, googleoauth.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
		users:    users,
		profiles: profiles,
	}
	s.identify = s.googleUserInfo
	return s
}

func (s *authService) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (s *authService) LoginCallback(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("authorization code is empty")
	}

	info, err := s.identify(ctx, code)
	if err != nil {
		return "", err
	}
	if info.Email == "" {
		return "", errors.New("google account has no email")
	}

	userID, err := s.upsertUser(ctx, info)
	if err != nil {
		return "", err
	}
	if err := s.profiles.EnsureProfile(ctx, userID); err != nil {
		return "", fmt.Errorf("ensure profile: %w", err)
	}
	return userID, nil
}

func (s *authService) upsertUser(ctx context.Context, info *transfer.GoogleUserInfo) (string, error) {
	user, found, err := s.users.GetByEmail(ctx, info.Email)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if found {
		if user.GoogleID != info.ID || user.Name != info.Name || user.ProfilePicture != info.Picture {
			user.GoogleID = info.ID
			user.Name = info.Name
			user.ProfilePicture = info.Picture
			if err := s.users.Update(ctx, user); err != nil {
				return "", fmt.Errorf("update user: %w", err)
			}
		}
		return user.ID, nil
	}

	userID, err := s.users.Create(ctx, &models.User{
		GoogleID:       info.ID,
		Email:          info.Email,
		Name:           info.Name,
		ProfilePicture: info.Picture,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Concurrent first login for the same account.
		user, found, err := s.users.GetByEmail(ctx, info.Email)
		if err != nil {
			return "", fmt.Errorf("lookup user: %w", err)
		}
		if !found {
			return "", fmt.Errorf("user %s reported duplicate but not found", info.Email)
		}
		return user.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	log.Info().Str("user_id", userID).Msg("registered user")
	return userID, nil
}

func (s *authService) googleUserInfo(ctx context.Context, code string) (*transfer.GoogleUserInfo, error) {
	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" || s.oauth.RedirectURL == "" {
		return nil, errors.New("oauth2 configuration is incomplete")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("google code exchange failed")
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	svc, err := googleoauth.NewService(ctx, option.WithHTTPClient(s.oauth.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	return &transfer.GoogleUserInfo{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
