package api

import (
	"errors"
	"fmt"

	"docsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ErrorHandler turns classified pipeline errors and API errors into JSON
// responses with the right status code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if pe, ok := types.AsPipelineError(err); ok {
		body := fiber.Map{
			"code":  pe.Code,
			"error": pe.Message,
			"stage": pe.Stage,
		}
		if pe.Retryable() {
			body["retryable"] = true
		}
		return c.Status(statusFor(pe.Code)).JSON(body)
	}

	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(Error{Code: fiberErr.Code, Message: fiberErr.Message})
	}

	logrus.WithError(err).Error("unhandled request error")
	return c.Status(fiber.StatusInternalServerError).JSON(Error{
		Code:    fiber.StatusInternalServerError,
		Message: "internal error",
	})
}

func statusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrCodeValidation:
		return fiber.StatusBadRequest
	case types.ErrCodeUnsupportedFormat:
		return fiber.StatusUnsupportedMediaType
	case types.ErrCodeParseFailure:
		return fiber.StatusUnprocessableEntity
	case types.ErrCodeEmbedding, types.ErrCodeStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string { return e.Message }

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest() Error {
	return Error{Code: fiber.StatusBadRequest, Message: "invalid request"}
}

func ErrInvalidID() Error {
	return Error{Code: fiber.StatusBadRequest, Message: "invalid id given"}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string { return "validation failed" }

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}
