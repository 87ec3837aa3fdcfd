package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes rendered in the "code" field of an ErrorResponse.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeUnprocessable     = "UNPROCESSABLE"
	CodeInvalidCharacters = "INVALID_CHARACTERS"
	CodeInternal          = "INTERNAL_ERROR"
)

// ExposeErrorDetails controls whether wrapped error text is rendered in the
// "details" field. The server turns it off in production.
var ExposeErrorDetails = true

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMessage replaces the client-facing message and returns e.
func (e *AppError) WithMessage(message string) *AppError {
	e.Message = message
	return e
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewReadError collapses a failed read into the generic 404 clients already
// handle for missing records.
func NewReadError(err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: "Something went wrong, try again!",
		Err:     err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewUnprocessableError(message string) *AppError {
	return &AppError{
		Code:    CodeUnprocessable,
		Message: message,
	}
}

func NewInvalidCharactersError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidCharacters,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error returned by a service to its HTTP status.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeUnprocessable:
		return fiber.StatusUnprocessableEntity
	case CodeInvalidCharacters:
		return fiber.StatusLocked
	default:
		return fiber.StatusInternalServerError
	}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && ExposeErrorDetails {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
		if status >= fiber.StatusInternalServerError && !ExposeErrorDetails {
			response.Error = "Internal server error"
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError renders err with the status its code maps to.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}
