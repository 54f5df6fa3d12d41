package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/api/authctx"
	"github.com/lazyrag/authplane/internal/api/routes"
)

type messageResponse struct {
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

func message(text string) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := messageResponse{Message: text}
		if id := authctx.FromEcho(c); id != nil {
			resp.User = id.Username
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// serviceRoutes is this service's surface. The Permissions fields are read
// by permextract to build api_permissions.json; at runtime the manifest
// decides, so editing a requirement here needs a manifest rebuild.
func serviceRoutes() *routes.Registry {
	r := routes.New("/")
	r.Routes = []routes.Route{
		{Method: http.MethodGet, Path: "/hello", Handler: message("Hello from Backend")},
		{Method: http.MethodGet, Path: "/admin", Handler: message("Admin only area")},
		{Method: http.MethodGet, Path: "/api/hello", Permissions: []string{"user.read"}, Handler: message("Hello from Backend")},
		{Method: http.MethodGet, Path: "/api/admin", Permissions: []string{"document.write"}, Handler: message("Admin only area")},
	}
	return r
}
