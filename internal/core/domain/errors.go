package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the core wraps exactly one of these
// so transports can map it to a status with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

var (
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or expired refresh_token", ErrUnauthorized)
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", ErrUnauthorized)

	ErrUserExists = fmt.Errorf("%w: username already exists", ErrConflict)
	ErrRoleExists = fmt.Errorf("%w: role name already exists", ErrConflict)
	ErrRoleInUse  = fmt.Errorf("%w: role is assigned to users", ErrConflict)

	ErrUserNotFound = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrRoleNotFound = fmt.Errorf("%w: role not found", ErrNotFound)

	ErrBuiltInRole             = fmt.Errorf("%w: cannot delete built-in role", ErrForbidden)
	ErrAdminRoleImmutable      = fmt.Errorf("%w: cannot change admin role permissions", ErrForbidden)
	ErrBootstrapAdminImmutable = fmt.Errorf("%w: bootstrap admin account role cannot be changed", ErrInvalidInput)
)
