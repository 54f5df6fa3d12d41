package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/core/ports"
	"github.com/lazyrag/authplane/internal/infrastructure/clients"
)

// RoleHandler serves the permission-model endpoints. auth-core and the
// permission store mount the same handler under their own prefixes.
type RoleHandler struct {
	permissions ports.PermissionService
}

func NewRoleHandler(permissions ports.PermissionService) *RoleHandler {
	return &RoleHandler{permissions: permissions}
}

type createRoleRequest struct {
	Name             string   `json:"name" validate:"required,max=64"`
	PermissionGroups []string `json:"permission_groups"`
}

type rolePermissionsRequest struct {
	PermissionGroups []string `json:"permission_groups" validate:"required"`
}

type rolePermissionsResponse struct {
	RoleID           int64    `json:"role_id"`
	PermissionGroups []string `json:"permission_groups"`
}

// ListPermissionGroups returns every permission group, sorted by name.
//
// @Summary      List permission groups
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.PermissionGroup
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/permission/permission-groups [get]
func (h *RoleHandler) ListPermissionGroups(c echo.Context) error {
	groups, err := h.permissions.ListPermissionGroups(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, groups)
}

// ListRoles returns every role with its granted groups.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Role
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/permission/roles [get]
func (h *RoleHandler) ListRoles(c echo.Context) error {
	roles, err := h.permissions.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// CreateRole adds a non built-in role.
//
// @Summary      Create role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createRoleRequest  true  "Role"
// @Success      201   {object}  domain.Role
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/permission/roles [post]
func (h *RoleHandler) CreateRole(c echo.Context) error {
	var req createRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	role, err := h.permissions.CreateRole(c.Request().Context(), strings.TrimSpace(req.Name), req.PermissionGroups)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

// DeleteRole removes a role no user holds. Built-in roles cannot be deleted.
//
// @Summary      Delete role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Role ID"
// @Success      200  {object}  okResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /api/permission/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.permissions.DeleteRole(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// RolePermissions returns the groups granted to a role.
//
// @Summary      Get role permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Role ID"
// @Success      200  {object}  rolePermissionsResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/permission/roles/{id}/permissions [get]
func (h *RoleHandler) RolePermissions(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	groups, err := h.permissions.RolePermissions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rolePermissionsResponse{RoleID: id, PermissionGroups: groups})
}

// SetRolePermissions replaces a role's groups. Unknown names are ignored.
//
// @Summary      Replace role permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                     true  "Role ID"
// @Param        body  body      rolePermissionsRequest  true  "Groups"
// @Success      200   {object}  okResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/permission/roles/{id}/permissions [put]
func (h *RoleHandler) SetRolePermissions(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req rolePermissionsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.permissions.SetRolePermissions(c.Request().Context(), id, req.PermissionGroups); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// PermissionsByRole is the service-to-service lookup used by the
// authorization middleware. Unknown roles yield an empty list.
//
// @Summary      Permissions of a role by name
// @Tags         roles
// @Produce      json
// @Param        role_name  path      string  true  "Role name"
// @Success      200        {object}  clients.RolePermissionsResponse
// @Router       /api/permission/permissions-by-role/{role_name} [get]
func (h *RoleHandler) PermissionsByRole(c echo.Context) error {
	name := c.Param("role_name")
	perms, err := h.permissions.PermissionsForRole(c.Request().Context(), name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clients.RolePermissionsResponse{Role: name, Permissions: perms})
}
