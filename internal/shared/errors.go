package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Grant and exchange errors
	ErrProtocol = fmt.Errorf("protocol error")
	ErrExchange = fmt.Errorf("token exchange rejected")
	ErrNetwork  = fmt.Errorf("network error")

	// API and export errors
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrPagination      = fmt.Errorf("pagination made no progress")
	ErrUnknownResource = fmt.Errorf("unknown resource")
	ErrPartialExport   = fmt.Errorf("export completed with failures")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ResourceError ties a failure to the library resource being exported.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// IsAuthError reports whether err should abort the whole command rather than a single resource.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrRefreshFailed)
}
