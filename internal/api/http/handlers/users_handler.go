package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokengate/auth-service/internal/api/dto"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/service"
	apperrors "github.com/tokengate/auth-service/pkg/util/errorutil"
)

// UsersHandler exposes the user directory.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/v1/user?role=.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var role *domain.UserRole
	if raw := c.Query("role"); raw != "" {
		r := domain.UserRole(raw)
		role = &r
	}

	users, err := h.users.List(c.UserContext(), role)
	if err != nil {
		return err
	}

	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return c.JSON(out)
}

// GetByID handles GET /api/v1/user/id/:id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	return h.respond(c)(h.users.GetByID(c.UserContext(), c.Params("id")))
}

// GetByUsername handles GET /api/v1/user/username/:username.
func (h *UsersHandler) GetByUsername(c *fiber.Ctx) error {
	return h.respond(c)(h.users.GetByUsername(c.UserContext(), c.Params("username")))
}

// GetByEmail handles GET /api/v1/user/email/:email.
func (h *UsersHandler) GetByEmail(c *fiber.Ctx) error {
	return h.respond(c)(h.users.GetByEmail(c.UserContext(), c.Params("email")))
}

func (h *UsersHandler) respond(c *fiber.Ctx) func(*domain.User, error) error {
	return func(user *domain.User, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(dto.NewUserResponse(user))
	}
}

// Update handles PATCH /api/v1/user/update/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	err := h.users.Update(c.UserContext(), c.Params("id"), service.UserUpdate{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: service.MsgUserUpdated})
}
