package http

import (
	"errors"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// RateLimitedMessage is the body message of 429 responses.
const RateLimitedMessage = "Too many requests, slow down."

type SuccessResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(SuccessResponse{Status: fiber.StatusOK, Message: "ok", Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessResponse{Status: fiber.StatusCreated, Message: "ok", Data: data})
}

func fail(c *fiber.Ctx, status int, message, detail string) error {
	return c.Status(status).JSON(ErrorResponse{Status: status, Message: message, Error: detail})
}

// statusFor maps service errors to a status code and a client-safe message.
// The boolean is false for errors whose detail must not leave the server.
func statusFor(err error) (int, string, bool) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message, true
	case errors.Is(err, common.ErrorValidation):
		return fiber.StatusBadRequest, "validation failed", true
	case errors.Is(err, ratelimit.ErrRateLimited):
		return fiber.StatusTooManyRequests, RateLimitedMessage, true
	case errors.Is(err, common.ErrInvalidRefreshToken):
		return fiber.StatusUnauthorized, "invalid refresh token", true
	case errors.Is(err, common.ErrInvalidResetToken):
		return fiber.StatusUnauthorized, "invalid or expired reset token", true
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return fiber.StatusUnauthorized, "unauthorized", true
	case errors.Is(err, common.ErrorForbidden):
		return fiber.StatusForbidden, "forbidden", true
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, "not found", true
	case errors.Is(err, common.ErrorAlreadyExists):
		return fiber.StatusConflict, "already exists", true
	default:
		return fiber.StatusInternalServerError, "internal server error", false
	}
}

// errorHandler renders every error returned by a handler as an ErrorResponse.
func errorHandler(logger logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message, public := statusFor(err)

		detail := ""
		if public && errors.Is(err, common.ErrorValidation) {
			detail = err.Error()
		}
		if !public {
			logger.Error(c.UserContext(), "request failed",
				"method", c.Method(), "path", c.Path(), "request_id", requestID(c), "error", err)
		}
		return fail(c, status, message, detail)
	}
}
