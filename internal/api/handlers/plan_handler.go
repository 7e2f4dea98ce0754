package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/service"
	"github.com/maheshrc27/misepo-api/internal/transfer"
	"github.com/rs/zerolog/log"
)

type PlanHandler struct {
	plans service.PlanService
	usage service.UsageService
	cfg   config.Config
}

func NewPlanHandler(cfg config.Config, plans service.PlanService, usage service.UsageService) *PlanHandler {
	return &PlanHandler{plans: plans, usage: usage, cfg: cfg}
}

func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	userID := GetUserID(c)
	if userID == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "not signed in")
	}

	plan, err := h.plans.GetPlan(c.UserContext(), userID, demoOverride(c, h.cfg))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("plan check failed")
		return errorJSON(c, fiber.StatusInternalServerError, "unable to load plan")
	}

	return c.Status(fiber.StatusOK).JSON(plan)
}

func (h *PlanHandler) CreateGeneration(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	userID := GetUserID(c)
	if userID == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "not signed in")
	}

	var req transfer.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "unable to parse json")
	}

	res, err := h.usage.RecordGeneration(c.UserContext(), userID, req.Platform, demoOverride(c, h.cfg))
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(res)
	case errors.Is(err, service.ErrInvalidPlatform):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		return errorJSON(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		return errorJSON(c, fiber.StatusPaymentRequired, err.Error())
	default:
		log.Error().Err(err).Str("user_id", userID).Msg("record generation failed")
		return errorJSON(c, fiber.StatusInternalServerError, "unable to record generation")
	}
}
