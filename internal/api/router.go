package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/api/handler"
	"github.com/lazyrag/authplane/internal/api/middleware"
	"github.com/lazyrag/authplane/internal/api/routes"
	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
	httpserver "github.com/lazyrag/authplane/internal/infrastructure/http"
)

const (
	AuthCorePrefix        = "/api/auth"
	PermissionStorePrefix = "/api/permission"
)

// AuthCoreDeps are the collaborators of the auth-core HTTP surface.
type AuthCoreDeps struct {
	Auth        ports.AuthService
	Admin       ports.AdminService
	Permissions ports.PermissionService
	// Validator resolves bearers for the admin routes. In auth-core this is
	// the auth service itself.
	Validator ports.IdentityValidator
	Timeout   time.Duration
}

// PermissionStoreDeps are the collaborators of the permission-store surface.
type PermissionStoreDeps struct {
	Permissions ports.PermissionService
	// Validator checks admin bearers against auth-core.
	Validator ports.IdentityValidator
	// Resolver is optional; nil trusts the permissions reported by Validator.
	Resolver ports.PermissionResolver
	Timeout  time.Duration
}

// roleRoutes are the permission-model endpoints shared by both services.
// Mutations need user.write, reads user.read, and both need the admin role.
func roleRoutes(r *routes.Registry, h *handler.RoleHandler) {
	admin := middleware.RequireRole(domain.RoleAdmin)

	r.Handle(http.MethodGet, "/permission-groups", h.ListPermissionGroups, "user.read").Use(admin)
	r.Handle(http.MethodGet, "/roles", h.ListRoles, "user.read").Use(admin)
	r.Handle(http.MethodPost, "/roles", h.CreateRole, "user.write").Use(admin)
	r.Handle(http.MethodDelete, "/roles/{id}", h.DeleteRole, "user.write").Use(admin)
	r.Handle(http.MethodGet, "/roles/{id}/permissions", h.RolePermissions, "user.read").Use(admin)
	r.Handle(http.MethodPut, "/roles/{id}/permissions", h.SetRolePermissions, "user.write").Use(admin)
}

// AuthCoreRoutes declares the auth-core surface under /api/auth.
func AuthCoreRoutes(d AuthCoreDeps, health echo.HandlerFunc) *routes.Registry {
	auth := handler.NewAuthHandler(d.Auth)
	users := handler.NewUserHandler(d.Admin)
	admin := middleware.RequireRole(domain.RoleAdmin)

	r := routes.New(AuthCorePrefix)
	if health != nil {
		r.Handle(http.MethodGet, "/health", health)
	}
	r.Handle(http.MethodPost, "/register", auth.Register).
		Handle(http.MethodPost, "/login", auth.Login).
		Handle(http.MethodPost, "/validate", auth.Validate).
		Handle(http.MethodPost, "/authorize", auth.Authorize).
		Handle(http.MethodPost, "/refresh", auth.Refresh).
		Handle(http.MethodPost, "/logout", auth.Logout)

	roleRoutes(r, handler.NewRoleHandler(d.Permissions))

	r.Handle(http.MethodGet, "/users", users.ListUsers, "user.read").Use(admin)
	r.Handle(http.MethodGet, "/users/{id}", users.GetUser, "user.read").Use(admin)
	r.Handle(http.MethodPatch, "/users/{id}", users.SetUserRole, "user.write").Use(admin)
	return r
}

// PermissionStoreRoutes declares the permission-store surface under
// /api/permission. The by-role lookups are public: services call them
// without a user token.
func PermissionStoreRoutes(d PermissionStoreDeps) *routes.Registry {
	roles := handler.NewRoleHandler(d.Permissions)

	r := routes.New(PermissionStorePrefix)
	roleRoutes(r, roles)
	r.Handle(http.MethodGet, "/permissions-by-role/{role_name}", roles.PermissionsByRole).
		Handle(http.MethodGet, "/roles/by-name/{role_name}/permissions", roles.PermissionsByRole)
	return r
}

// NewAuthCoreRouter builds the auth-core Echo instance with all routes registered.
func NewAuthCoreRouter(opts httpserver.ServerOptions, d AuthCoreDeps) (*echo.Echo, error) {
	e, err := newServer(opts)
	if err != nil {
		return nil, err
	}

	var health echo.HandlerFunc
	if opts.Health != nil {
		health = opts.Health.Liveness
	}
	AuthCoreRoutes(d, health).Mount(e, middleware.Config{
		Validator:   d.Validator,
		Permissions: d.Permissions,
		Timeout:     d.Timeout,
		Logger:      opts.Logger,
	})
	return e, nil
}

// NewPermissionStoreRouter builds the permission-store Echo instance.
func NewPermissionStoreRouter(opts httpserver.ServerOptions, d PermissionStoreDeps) (*echo.Echo, error) {
	e, err := newServer(opts)
	if err != nil {
		return nil, err
	}

	PermissionStoreRoutes(d).Mount(e, middleware.Config{
		Validator:   d.Validator,
		Permissions: d.Resolver,
		Timeout:     d.Timeout,
		Logger:      opts.Logger,
	})
	return e, nil
}

func newServer(opts httpserver.ServerOptions) (*echo.Echo, error) {
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = NewHTTPErrorHandler(opts.Logger)
	}
	if opts.Validator == nil {
		opts.Validator = handler.NewValidator()
	}
	return httpserver.NewServer(opts)
}
