package services

import (
	"errors"
	"fmt"
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// LogicConflictError reports a well formed request that breaks a business rule.
type LogicConflictError struct {
	Code    string
	Message string
}

func (e *LogicConflictError) Error() string {
	return e.Message
}

var (
	// ErrInvalidRefreshToken is returned when a revoked or expired refresh
	// token is presented. The client must log in again.
	ErrInvalidRefreshToken error = &LogicConflictError{Code: "auth_validation_token_invalid", Message: "Invalid token"}

	ErrRefreshTokenRequired = newValidationError("refreshToken", "auth_validation_token_required", "Token required")
	ErrRefreshTokenNotFound = newValidationError("refreshToken", "auth_validation_token_no_exist", "Token does not exist")

	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrUserNotFound             = errors.New("user not found")
	ErrTpubNotFound       error = &LogicConflictError{Code: "deposits_tpub_not_exists", Message: "Tpub does not exist"}
)
