package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/misepo-api/internal/service"
)

type PaymentHandler struct {
	s service.SubscriptionService
}

func NewPaymentHandler(service service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{s: service}
}

func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	signature := c.Get("Stripe-Signature")
	if strings.TrimSpace(signature) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "missing signature")
	}

	err := h.s.HandleWebhook(c.UserContext(), c.Body(), signature)
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	case errors.Is(err, service.ErrInvalidSignature):
		return errorJSON(c, fiber.StatusBadRequest, "invalid signature")
	case errors.Is(err, service.ErrBillingNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, "billing not configured")
	default:
		return errorJSON(c, fiber.StatusInternalServerError, "processing failed")
	}
}
