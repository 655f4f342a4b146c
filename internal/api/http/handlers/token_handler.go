package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokengate/auth-service/internal/api/dto"
	"github.com/tokengate/auth-service/internal/service"
	apperrors "github.com/tokengate/auth-service/pkg/util/errorutil"
)

// TokenHandler exposes the refresh and validate exchanges.
type TokenHandler struct {
	tokens *service.TokenService
}

// NewTokenHandler constructs handler.
func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokenService}
}

// Refresh handles POST /api/v1/token/refresh-token.
func (h *TokenHandler) Refresh(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res := h.tokens.Refresh(c.UserContext(), req.Token, req.Type)
	return c.Status(res.Status).JSON(dto.TokenResponse{Token: res.Token, Message: res.Message})
}

// Validate handles POST /api/v1/token/validate-token.
func (h *TokenHandler) Validate(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res := h.tokens.Validate(c.UserContext(), req.Token)
	return c.Status(res.Status).JSON(dto.ValidateTokenResponse{Valid: res.Valid, Message: res.Message})
}
