package http

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/buddyauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

const requestIDKey = "requestid"

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

func requestLogger(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler has not run yet
			status, _, _ = statusFor(err)
		}
		logger.Info(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID(c),
		)
		return err
	}
}

// requireSession authenticates the bearer credential and stores the session
// in the request's user context.
func requireSession(a SessionAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.SetUserContext(services.WithSession(c.UserContext(), session))
		return c.Next()
	}
}

func requireAdmin(a SessionAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := a.AuthenticateAdmin(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.SetUserContext(services.WithSession(c.UserContext(), session))
		return c.Next()
	}
}

// rateLimit throttles by route and client IP. A limiter that cannot reach
// its backend lets the request through.
func rateLimit(l ratelimit.Limiter, logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := l.Allow(c.UserContext(), c.Path()+":"+c.IP())
		switch {
		case err == nil:
		case errors.Is(err, ratelimit.ErrRateLimited):
			return err
		default:
			logger.Warn(c.UserContext(), "rate limiter unavailable", "error", err)
		}
		return c.Next()
	}
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(c *fiber.Ctx) (*services.AuthSession, error) {
	s, ok := services.SessionFromContext(c.UserContext())
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	return s, nil
}
