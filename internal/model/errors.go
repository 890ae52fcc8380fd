package model

import (
	"errors"
	"strings"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrNotFound             = errors.New("not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrEmailTaken           = errors.New("email is already taken")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError lists the form fields that were rejected.
type ValidationError struct {
	Fields []string
	Reason string
}

// NewValidationError builds a ValidationError for the given fields.
func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error: " + e.Reason
	}
	return "validation error: " + strings.Join(e.Fields, ", ") + ": " + e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Message turns an operation error into text that can be shown to staff.
func Message(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		if len(ve.Fields) > 0 {
			return "Please check " + strings.Join(ve.Fields, ", ") + ": " + ve.Reason + "."
		}
		return "Invalid input: " + ve.Reason + "."
	case errors.Is(err, ErrInsufficientStock):
		return "Cannot sell more than the available quantity."
	case errors.Is(err, ErrNotFound):
		return "The item no longer exists. Refresh and try again."
	case errors.Is(err, ErrStoreUnavailable):
		return "The inventory store is unavailable. Please try again later."
	case errors.Is(err, ErrEmailTaken):
		return "An account with this email already exists."
	case errors.Is(err, ErrUnauthorized):
		return "Please sign in again."
	case errors.Is(err, ErrConfirmationRequired):
		return "Please confirm the deletion."
	default:
		return "Something went wrong. Please try again."
	}
}
