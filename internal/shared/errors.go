package shared

import "fmt"

var (
	// Core error taxonomy. Every failure surfaced by the playlist,
	// session, and download layers wraps one of these so callers can
	// branch with errors.Is instead of matching message strings.
	ErrNotFound          = fmt.Errorf("not found")
	ErrValidation        = fmt.Errorf("validation failed")
	ErrUniqueViolation   = fmt.Errorf("duplicate record")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrUpstream          = fmt.Errorf("upstream request failed")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
