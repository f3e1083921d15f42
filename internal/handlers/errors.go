package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/pkg/logger"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindError converts a gin binding failure into a 400 with per-field errors.
func bindError(err error) *response.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]response.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, response.FieldError{
				Field:   fieldName(fe),
				Code:    fe.Tag(),
				Message: fieldMessage(fe),
			})
		}
		return response.NewValidation("validation failed", fields...)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return response.NewBadRequest("malformed request body")
	}
	return response.NewBadRequest(err.Error())
}

// fieldName turns the struct field into its snake_case wire name.
func fieldName(fe validator.FieldError) string {
	var b strings.Builder
	for i, r := range fe.Field() {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// translate maps service errors onto HTTP errors.
func translate(err error) *response.AppError {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return response.NewValidation(verr.Message, response.FieldError{
			Field:   verr.Field,
			Code:    verr.Code,
			Message: verr.Message,
		}).WithErrorCode(verr.Code)
	}

	var conflict *services.LogicConflictError
	if errors.As(err, &conflict) {
		return response.NewLogicConflict(conflict.Code, conflict.Message)
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return response.NewUnauthorized("invalid email or password")
	case errors.Is(err, services.ErrUserNotFound):
		return response.NewNotFound("user not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return response.NewGatewayTimeout("request timed out")
	}
	return nil
}

// respondError writes err as a JSON error response. Unexpected errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	if appErr := translate(err); appErr != nil {
		response.Error(c, appErr)
		return
	}

	logger.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString(logger.RequestIDKey)).
		Msg("request failed")
	response.Error(c, response.NewServerError("internal server error"))
}
