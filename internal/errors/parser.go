package errors

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo describes how a storage-level error should reach the client
type ErrorInfo struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

// ParseError turns database errors into client-safe responses. Driver detail
// never leaks; unknown errors become a generic internal error.
// context names the resource being handled, e.g. "address".
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return internal(context)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrorInfo{
			Status:  http.StatusNotFound,
			Code:    ResourceNotFound,
			Message: notFoundMessage(context),
		}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflict(context)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ValidationInvalidInput,
			Message: "Referenced data does not exist or is still in use",
		}
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ValidationInvalidInput,
			Message: "Value is out of the allowed range",
		}
	}

	// Untranslated driver errors
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "duplicate key") || strings.Contains(lower, "unique constraint"):
		return conflict(context)
	case strings.Contains(lower, "deadlock detected") ||
		strings.Contains(lower, "could not serialize") ||
		strings.Contains(lower, "database is locked"):
		return ErrorInfo{
			Status:    http.StatusConflict,
			Code:      ResourceConflict,
			Message:   "The request collided with a concurrent update. Please retry",
			Retryable: true,
		}
	case strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "timeout"):
		return ErrorInfo{
			Status:    http.StatusServiceUnavailable,
			Code:      InternalExternalAPI,
			Message:   "A backing service is unavailable. Please try again shortly",
			Retryable: true,
		}
	}

	return internal(context)
}

func conflict(context string) ErrorInfo {
	msg := "The resource was modified concurrently. Please retry"
	if context == "user" {
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    AuthEmailAlreadyExists,
			Message: "Email is already registered",
		}
	}
	if context == "address" {
		return ErrorInfo{
			Status:    http.StatusConflict,
			Code:      AddressDefaultConflict,
			Message:   msg,
			Retryable: true,
		}
	}
	return ErrorInfo{
		Status:    http.StatusConflict,
		Code:      ResourceConflict,
		Message:   msg,
		Retryable: true,
	}
}

func internal(context string) ErrorInfo {
	msg := "Something went wrong. Please try again later"
	if context != "" {
		msg = "Failed to process " + context + ". Please try again later"
	}
	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: msg,
	}
}

func notFoundMessage(context string) string {
	if context == "" {
		return "Resource not found"
	}
	return strings.ToUpper(context[:1]) + context[1:] + " not found"
}
