// Package http is the public JSON API of the auth server, built on fiber.
// It maps service errors to status codes and wraps every response in the
// {status, message, data|error} envelope.
package http

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Options tune the middleware stack.
type Options struct {
	CORSOrigins []string
	// Production enables HSTS.
	Production bool
	// Limiter throttles the credential endpoints; nil disables throttling.
	Limiter      ratelimit.Limiter
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	address string
	app     *fiber.App
	logger  logging.Logger
}

func NewServer(address string, h *Handler, logger logging.Logger, opts Options) *Server {
	logger = logger.With("module", "http_server")

	app := fiber.New(fiber.Config{
		AppName:               "buddyauth",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
	})

	hsts := 0
	if opts.Production {
		hsts = 63072000
	}
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
	app.Use(requestLogger(logger))
	app.Use(helmet.New(helmet.Config{
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginOpenerPolicy:   "same-origin",
		HSTSMaxAge:                hsts,
		HSTSPreloadEnabled:        opts.Production,
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(opts.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	registerRoutes(app, h, rateLimit(limiter, logger))

	return &Server{address: address, app: app, logger: logger}
}

func registerRoutes(app *fiber.App, h *Handler, limited fiber.Handler) {
	app.Get("/health", h.Health)

	a := app.Group("/auth")
	a.Post("/signup", limited, h.Signup)
	a.Post("/login", limited, h.Login)
	a.Post("/refresh", h.Refresh)
	a.Post("/logout", h.Logout)
	a.Post("/forgot-password", limited, h.ForgotPassword)
	a.Post("/reset-password", h.ResetPassword)

	session := requireSession(h.auth)
	a.Post("/logout-all", session, h.LogoutAll)
	a.Get("/me", session, h.Me)
	a.Patch("/profile", session, h.UpdateProfile)
	a.Post("/profile/avatar", session, h.UploadAvatar)
	a.Get("/profile/avatar", session, h.Avatar)

	admin := app.Group("/admin", requireAdmin(h.auth))
	admin.Get("/users", h.ListUsers)
	admin.Patch("/users/:id/role", h.UpdateRole)
}

// App exposes the underlying fiber app, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error(context.Background(), "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	return s.app.Listen(s.address)
}
