package handlers

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/service"
	"github.com/maheshrc27/misepo-api/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	oauthStateCookie = "misepo_oauth_state"
	sessionDuration  = 24 * time.Hour
)

type AuthHandler struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService) *AuthHandler {
	return &AuthHandler{s: service, cfg: cfg}
}

func (h *AuthHandler) secureCookies() bool {
	return strings.HasPrefix(h.cfg.FrontendURL, "https://")
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := utils.GenerateRandomKey(32)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "something went wrong")
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		HTTPOnly: true,
		Secure:   h.secureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/login",
		Expires:  time.Now().Add(10 * time.Minute),
	})

	return c.Redirect(h.s.AuthURL(state), fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) LoginCallbackHandler(c *fiber.Ctx) error {
	state := c.Query("state")
	expected := c.Cookies(oauthStateCookie)
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		return errorJSON(c, fiber.StatusBadRequest, "invalid login state")
	}
	c.Cookie(&fiber.Cookie{Name: oauthStateCookie, Value: "", Path: "/login", MaxAge: -1})

	userID, err := h.s.LoginCallback(c.UserContext(), c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Msg("login callback failed")
		return errorJSON(c, fiber.StatusBadRequest, "something went wrong")
	}

	token, err := utils.GenerateToken(h.cfg.SecretKey, userID, sessionDuration)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "something went wrong")
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   h.secureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(sessionDuration),
	})

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return c.SendStatus(fiber.StatusNoContent)
}
