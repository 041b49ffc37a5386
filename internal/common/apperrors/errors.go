// Package apperrors holds the error taxonomy shared by the service
// layer and the HTTP controllers.
package apperrors

import "errors"

// ErrNotFound is returned when a listing is missing, inactive, soft
// deleted, or owned by a different organisation.
var ErrNotFound = errors.New("listing not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
