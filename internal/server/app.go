// Package server wires configuration, storage, services and transports into
// a runnable auth server and manages its lifecycle.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/cryptox"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/auth"
	"github.com/dmitrijs2005/buddyauth/internal/server/config"
	"github.com/dmitrijs2005/buddyauth/internal/server/jobs"
	"github.com/dmitrijs2005/buddyauth/internal/server/mail"
	"github.com/dmitrijs2005/buddyauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/buddyauth/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/buddyauth/internal/server/grpc"
	hs "github.com/dmitrijs2005/buddyauth/internal/server/http"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      *redis.Client
	httpServer *hs.Server
	grpcServer *gs.GRPCServer
	scheduler  *jobs.Scheduler
}

// NewApp connects to the database (running migrations), optionally to Redis,
// and builds every service and server. Nothing is served until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	codec, err := auth.NewCodecFromConfig(c)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var limiter ratelimit.Limiter = ratelimit.Nop{}
	if c.RedisAddr != "" {
		client, err := ratelimit.NewClient(ctx, c.RedisAddr)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = client
		limiter = ratelimit.NewRedisLimiter(client, "ratelimit", c.RateLimitWindow, c.RateLimitMax)
	}

	refreshTokens := services.NewRefreshTokenService(m.RefreshTokens(db), codec,
		c.RefreshTokenValidityDuration, c.MaxActiveRefreshTokens, logger.With("module", "refresh_tokens"))

	userCfg := services.UserServiceConfig{PasswordResetValidity: c.PasswordResetValidity, PublicBaseURL: c.PublicBaseURL}
	if c.SignupPwnedChecks {
		userCfg.BreachChecker = cryptox.NewPwnedRangeChecker(&http.Client{Timeout: 3 * time.Second}, "")
	}
	users := services.NewUserService(db, m, refreshTokens, codec, codec, mail.NewLogMailer(logger), logger.With("module", "users"), userCfg)
	profiles := services.NewProfileService(db, m)
	avatars := services.NewAvatarService(db, m, c)
	authenticator := services.NewAuthenticator(codec, m.Profiles(db), c.AdminRole, c.AdminEmails, logger.With("module", "authenticator"))

	app.httpServer = hs.NewServer(c.HTTPAddr, hs.NewHandler(users, profiles, avatars, authenticator), logger, hs.Options{
		CORSOrigins:  c.CORSOrigins,
		Production:   c.IsProduction(),
		Limiter:      limiter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.grpcServer = gs.NewGRPCServer(c.GRPCAddr, logger)

	app.scheduler = jobs.NewScheduler(logger)
	app.scheduler.Add("cleanup", jobs.CleanupInterval, true,
		jobs.Cleanup(refreshTokens, m.PasswordResets(db), jobs.RevokedRetention, logger, time.Now))
	app.scheduler.Add("keepalive", jobs.KeepaliveInterval, false,
		jobs.Keepalive(db, app.grpcServer, logger))

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve runs fn and cancels the whole app if it fails.
func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "server", name, "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and gRPC and runs the maintenance jobs until a signal
// arrives or one of the servers fails. Connections are closed on return.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "grpc", app.grpcServer.Run)
	}()
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "http", app.httpServer.Run)
	}()
	go func() {
		defer wg.Done()
		app.scheduler.Run(ctx)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(context.Background(), "redis close", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
}
