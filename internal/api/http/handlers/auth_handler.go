package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokengate/auth-service/internal/api/dto"
	"github.com/tokengate/auth-service/internal/service"
	apperrors "github.com/tokengate/auth-service/pkg/util/errorutil"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.auth.Register(c.UserContext(), req.Username, req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: service.MsgUserRegistered})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{Token: token, Message: service.MsgLoginSuccessful})
}
