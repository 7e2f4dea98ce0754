package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/misepo-api/internal/service"
)

type UserHandler struct {
	s service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{s: service}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userId := GetUserID(c)

	userInfo, err := h.s.GetUserInfo(c.UserContext(), userId)
	if errors.Is(err, service.ErrUserNotFound) {
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "unable to load user")
	}

	return c.JSON(userInfo)
}
