package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

var statusByClass = []struct {
	class  error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
}

// StatusFor maps a domain error to its HTTP status and client-facing message.
// ok is false for errors outside the domain taxonomy.
func StatusFor(err error) (status int, msg string, ok bool) {
	for _, m := range statusByClass {
		if !errors.Is(err, m.class) {
			continue
		}
		if m.status == http.StatusServiceUnavailable {
			return m.status, m.class.Error(), true
		}
		// "unauthorized: invalid token" → "invalid token". Anything wrapped
		// with context in front of the class only shows the class.
		detail, found := strings.CutPrefix(err.Error(), m.class.Error()+": ")
		if !found || detail == "" {
			return m.status, m.class.Error(), true
		}
		return m.status, detail, true
	}
	return http.StatusInternalServerError, "internal server error", false
}
