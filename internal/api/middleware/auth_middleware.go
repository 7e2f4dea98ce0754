package middleware

import (
	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/pkg/utils"
	"github.com/rs/zerolog/log"
)

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// AuthMiddleware resolves the session cookie to a user id. Requests without
// a valid session stop here with 401, uncached like the responses behind it.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		if tokenString == "" {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not signed in",
			})
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil || claims.UserID == "" {
			c.Cookie(&fiber.Cookie{
				Name:   m.cfg.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1, // Delete cookie
			})

			log.Debug().Err(err).Msg("session token rejected")
			c.Set(fiber.HeaderCacheControl, "no-store")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}
