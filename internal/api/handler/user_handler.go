package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/core/ports"
)

type UserHandler struct {
	admin ports.AdminService
}

func NewUserHandler(admin ports.AdminService) *UserHandler {
	return &UserHandler{admin: admin}
}

type userRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

// ListUsers returns every account ordered by id.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.User
// @Failure      403  {object}  errorResponse
// @Router       /api/auth/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.admin.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser returns one account.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorResponse
// @Router       /api/auth/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.admin.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// SetUserRole moves a user to another role. The bootstrap admin is pinned.
//
// @Summary      Change user role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int              true  "User ID"
// @Param        body  body      userRoleRequest  true  "New role"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/auth/users/{id} [patch]
func (h *UserHandler) SetUserRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req userRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.admin.SetUserRole(ctx, id, req.RoleID); err != nil {
		return err
	}
	user, err := h.admin.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
