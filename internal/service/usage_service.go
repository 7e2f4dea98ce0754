package service

import (
	"context"
	"fmt"
	"time"

	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/metrics"
	"github.com/maheshrc27/misepo-api/internal/models"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

type UsageService interface {
	// RecordGeneration consumes one generation credit for userID.
	RecordGeneration(ctx context.Context, userID, platform string, demo DemoOverride) (*transfer.GenerationResponse, error)
}

type usageService struct {
	appID string
	plans PlanService
	usage repository.UsageEventRepository
	now   func() time.Time
}

func NewUsageService(cfg config.Config, plans PlanService, usage repository.UsageEventRepository) UsageService {
	return &usageService{
		appID: cfg.AppID,
		plans: plans,
		usage: usage,
		now:   defaultNow,
	}
}

var supportedPlatforms = map[string]bool{
	models.PlatformInstagram:  true,
	models.PlatformX:          true,
	models.PlatformGoogleMaps: true,
}

func (s *usageService) RecordGeneration(ctx context.Context, userID, platform string, demo DemoOverride) (*transfer.GenerationResponse, error) {
	if !supportedPlatforms[platform] {
		return nil, ErrInvalidPlatform
	}

	plan, err := s.plans.GetPlan(ctx, userID, demo)
	if err != nil {
		metrics.Generations.WithLabelValues("error").Inc()
		return nil, err
	}
	if !plan.CanUseApp {
		metrics.Generations.WithLabelValues("denied").Inc()
		return nil, ErrAccessDenied
	}
	if plan.Usage >= plan.Limit {
		metrics.Generations.WithLabelValues("quota_exceeded").Inc()
		return nil, ErrQuotaExceeded
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate usage event id: %w", err)
	}

	// Demo sessions are not metered.
	if !demo {
		ev := &models.UsageEvent{
			ID:        id,
			UserID:    userID,
			AppID:     s.appID,
			EventType: models.EventTypeGeneration,
			Platform:  platform,
			CreatedAt: s.now(),
		}
		if err := s.usage.Create(ctx, ev); err != nil {
			metrics.Generations.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("record generation: %w", err)
		}
	}

	metrics.Generations.WithLabelValues("ok").Inc()
	log.Debug().Str("user_id", userID).Str("platform", platform).Msg("generation recorded")

	plan.Usage++
	return &transfer.GenerationResponse{
		ID:          id,
		Usage:       plan.Usage,
		Limit:       plan.Limit,
		Remaining:   plan.Remaining(),
		UsagePeriod: plan.UsagePeriod,
	}, nil
}
