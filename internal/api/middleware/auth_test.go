package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/api/authctx"
	"github.com/lazyrag/authplane/internal/core/domain"
)

type stubValidator struct {
	identity *domain.Identity
	err      error
	calls    int
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (*domain.Identity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if token != "good" {
		return nil, fmt.Errorf("%w: bad token", domain.ErrUnauthorized)
	}
	c := *s.identity
	return &c, nil
}

type stubResolver struct {
	perms map[string][]string
	err   error
	calls int
}

func (s *stubResolver) PermissionsForRole(_ context.Context, role string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[role], nil
}

type routeTable map[string][]string

func (r routeTable) Required(method, path string) ([]string, bool) {
	p, ok := r[method+" "+path]
	return p, ok
}

var table = routeTable{
	"GET /docs":   {"document.read"},
	"POST /docs":  {"document.write"},
	"GET /listed": {},
}

// serve runs one request through Authorization and reports the status and
// whether the wrapped handler ran.
func serve(t *testing.T, cfg Config, method, path, authz string) (int, *domain.Identity) {
	t.Helper()
	if cfg.Requirements == nil {
		cfg.Requirements = table
	}
	cfg.Logger = zerolog.Nop()

	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *domain.Identity
	handler := Authorization(cfg)(func(c echo.Context) error {
		seen = authctx.FromContext(c.Request().Context())
		if seen == nil {
			seen = &domain.Identity{}
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec.Code, seen
}

func TestAuthorization_PublicRouteSkipsValidator(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{UserID: 1, Role: "user"}}

	for _, path := range []string{"/health", "/listed"} {
		code, seen := serve(t, Config{Validator: v}, http.MethodGet, path, "")
		if code != http.StatusOK || seen == nil {
			t.Fatalf("%s: expected pass-through, got %d", path, code)
		}
	}
	if v.calls != 0 {
		t.Fatalf("validator called %d times for public routes", v.calls)
	}
}

func TestAuthorization_MissingTokenNeverCallsOut(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{UserID: 1, Role: "user"}}

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		code, seen := serve(t, Config{Validator: v}, http.MethodGet, "/docs", header)
		if code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, code)
		}
		if seen != nil {
			t.Fatalf("header %q: handler must not run", header)
		}
	}
	if v.calls != 0 {
		t.Fatalf("validator called %d times", v.calls)
	}
}

func TestAuthorization_Decisions(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{UserID: 7, Role: "reader", Permissions: []string{"document.read"}}}

	code, seen := serve(t, Config{Validator: v}, http.MethodGet, "/docs", "Bearer good")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.UserID != 7 || seen.Role != "reader" {
		t.Fatalf("identity not attached: %+v", seen)
	}

	code, seen = serve(t, Config{Validator: v}, http.MethodPost, "/docs", "Bearer good")
	if code != http.StatusForbidden || seen != nil {
		t.Fatalf("expected 403 without handler, got %d", code)
	}

	code, _ = serve(t, Config{Validator: v}, http.MethodGet, "/docs", "Bearer bad")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected token, got %d", code)
	}
}

func TestAuthorization_ResolverOverridesPermissions(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{UserID: 7, Role: "reader", Permissions: []string{"document.write"}}}
	r := &stubResolver{perms: map[string][]string{"reader": {"document.read"}}}

	code, _ := serve(t, Config{Validator: v, Permissions: r}, http.MethodPost, "/docs", "Bearer good")
	if code != http.StatusForbidden {
		t.Fatalf("expected resolver permissions to win, got %d", code)
	}
	code, _ = serve(t, Config{Validator: v, Permissions: r}, http.MethodGet, "/docs", "Bearer good")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if r.calls != 2 {
		t.Fatalf("expected 2 resolver calls, got %d", r.calls)
	}
}

func TestAuthorization_AdminSkipsResolver(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{UserID: 1, Role: domain.RoleAdmin, AllPermissions: true}}
	r := &stubResolver{err: errors.New("must not be called")}

	code, _ := serve(t, Config{Validator: v, Permissions: r}, http.MethodPost, "/docs", "Bearer good")
	if code != http.StatusOK {
		t.Fatalf("expected admin to pass, got %d", code)
	}
	if r.calls != 0 {
		t.Fatalf("resolver called for admin")
	}
}

func TestAuthorization_UpstreamFailureIsNeverAllow(t *testing.T) {
	down := fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)

	v := &stubValidator{err: down}
	code, seen := serve(t, Config{Validator: v}, http.MethodGet, "/docs", "Bearer good")
	if code != http.StatusServiceUnavailable || seen != nil {
		t.Fatalf("expected 503 from validator outage, got %d", code)
	}

	v = &stubValidator{identity: &domain.Identity{UserID: 7, Role: "reader"}}
	r := &stubResolver{err: down}
	code, seen = serve(t, Config{Validator: v, Permissions: r}, http.MethodGet, "/docs", "Bearer good")
	if code != http.StatusServiceUnavailable || seen != nil {
		t.Fatalf("expected 503 from resolver outage, got %d", code)
	}
}

func TestStatic(t *testing.T) {
	if _, ok := Static(nil).Required(http.MethodGet, "/"); ok {
		t.Fatalf("empty Static must not declare a requirement")
	}
	perms, ok := Static{"user.read"}.Required(http.MethodGet, "/")
	if !ok || len(perms) != 1 || perms[0] != "user.read" {
		t.Fatalf("unexpected requirement %v %v", perms, ok)
	}
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("bearer abc.def")
	if err != nil || tok != "abc.def" {
		t.Fatalf("got %q, %v", tok, err)
	}
	if _, err := BearerToken("Token abc"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
