// Package routes declares a service's HTTP surface as data. Each route names
// the permission groups it requires next to its handler, so the same table
// mounts the echo routes and exports the permission manifest.
package routes

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/api/middleware"
	"github.com/lazyrag/authplane/internal/manifest"
)

// Route describes one endpoint. Path uses {param} placeholders.
type Route struct {
	Method      string
	Path        string
	Permissions []string
	Handler     echo.HandlerFunc
	// Middleware runs after authorization, e.g. middleware.RequireRole.
	Middleware []echo.MiddlewareFunc
}

// Registry is an ordered set of routes under a common prefix.
type Registry struct {
	Prefix string
	Routes []Route
}

func New(prefix string) *Registry {
	return &Registry{Prefix: manifest.NormalizePath(prefix)}
}

// Handle appends a route and returns the registry for chaining.
func (r *Registry) Handle(method, path string, h echo.HandlerFunc, permissions ...string) *Registry {
	r.Routes = append(r.Routes, Route{Method: method, Path: path, Permissions: permissions, Handler: h})
	return r
}

// Use attaches extra middleware to the most recently added route.
func (r *Registry) Use(mw ...echo.MiddlewareFunc) *Registry {
	if n := len(r.Routes); n > 0 {
		r.Routes[n-1].Middleware = append(r.Routes[n-1].Middleware, mw...)
	}
	return r
}

// Mount registers every route on e. Routes that declare permissions are
// wrapped in the authorization middleware built from authz with a Static
// requirement; the rest are mounted as-is.
func (r *Registry) Mount(e *echo.Echo, authz middleware.Config) {
	g := e.Group(strings.TrimSuffix(r.Prefix, "/"))
	for _, rt := range r.Routes {
		var mws []echo.MiddlewareFunc
		if len(rt.Permissions) > 0 {
			cfg := authz
			cfg.Requirements = middleware.Static(rt.Permissions)
			mws = append(mws, middleware.Authorization(cfg))
		}
		mws = append(mws, rt.Middleware...)
		g.Add(rt.Method, EchoPath(rt.Path), rt.Handler, mws...)
	}
}

// MountGuarded registers every route behind one authorization middleware
// whose requirements come from authz.Requirements, typically a manifest
// store. Route-level Permissions are ignored here.
func (r *Registry) MountGuarded(e *echo.Echo, authz middleware.Config) {
	g := e.Group(strings.TrimSuffix(r.Prefix, "/"), middleware.Authorization(authz))
	for _, rt := range r.Routes {
		g.Add(rt.Method, EchoPath(rt.Path), rt.Handler, rt.Middleware...)
	}
}

// Manifest exports the protected routes as manifest entries with the prefix applied.
func (r *Registry) Manifest() []manifest.Entry {
	var entries []manifest.Entry
	for _, rt := range r.Routes {
		if len(rt.Permissions) == 0 {
			continue
		}
		entries = append(entries, manifest.Entry{
			Method:      rt.Method,
			Path:        r.join(rt.Path),
			Permissions: rt.Permissions,
		})
	}
	return manifest.Canonicalize(entries)
}

func (r *Registry) join(path string) string {
	if r.Prefix == "/" {
		return manifest.NormalizePath(path)
	}
	return manifest.NormalizePath(r.Prefix + "/" + strings.TrimLeft(path, "/"))
}

// EchoPath rewrites {param} segments to echo's :param form.
func EchoPath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' && !strings.ContainsAny(s[1:len(s)-1], "{}") {
			segs[i] = ":" + s[1:len(s)-1]
		}
	}
	return strings.Join(segs, "/")
}
