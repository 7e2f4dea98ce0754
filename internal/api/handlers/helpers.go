package handlers

import (
	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/service"
)

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// demoOverride honours the demo marker cookie only on deployments that
// enable demo mode.
func demoOverride(c *fiber.Ctx, cfg config.Config) service.DemoOverride {
	if !cfg.DemoModeEnabled || cfg.DemoCookieName == "" {
		return false
	}
	return service.DemoOverride(c.Cookies(cfg.DemoCookieName) != "")
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
