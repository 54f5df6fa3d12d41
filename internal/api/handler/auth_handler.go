package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/api/middleware"
	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
	"github.com/lazyrag/authplane/internal/infrastructure/clients"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authorizeRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Register creates a new account holding the default user role.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Credentials"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{ID: user.ID, Username: user.Username, Role: user.RoleName})
}

// Login verifies credentials and issues an access/refresh token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  domain.TokenPair
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	pair, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued.
//
// @Summary      Rotate refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  domain.TokenPair
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		metrics.RefreshRotationsTotal.WithLabelValues("rejected").Inc()
		return domain.ErrInvalidRefreshToken
	}

	pair, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.RefreshRotationsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.RefreshRotationsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.RefreshRotationsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, pair)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
//
// @Summary      Revoke refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  errorResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// Validate resolves the bearer token to the caller's current role and
// permission groups. Admin reports permissions as "all".
//
// @Summary      Validate access token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  clients.ValidateResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/auth/validate [post]
func (h *AuthHandler) Validate(c echo.Context) error {
	token, err := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}

	id, err := h.authService.Validate(c.Request().Context(), token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clients.NewValidateResponse(id))
}

// Authorize decides whether the bearer may call method+path according to the
// loaded permission manifest.
//
// @Summary      Authorize a request
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      authorizeRequest  true  "Target request"
// @Success      200   {object}  domain.Decision
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  domain.Decision
// @Router       /api/auth/authorize [post]
func (h *AuthHandler) Authorize(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Path == "" {
		req.Path = "/"
	}

	// a missing header only matters when the route turns out to be protected
	token, _ := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))

	decision, err := h.authService.Authorize(c.Request().Context(), token, req.Method, req.Path)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.AuthzDecisionsTotal.WithLabelValues("unauthorized").Inc()
		}
		return err
	}
	if !decision.Allowed {
		metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
		return c.JSON(http.StatusForbidden, decision)
	}
	metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
	return c.JSON(http.StatusOK, decision)
}
