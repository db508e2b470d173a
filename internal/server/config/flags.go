package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/flagx"
)

var knownFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t", "-r", "-m", "-env",
	"-admin-role", "-admin-emails", "-base-url", "-cors",
	"-u", "-p", "-b", "-g", "-e",
	"-redis", "-rate-limit", "-pwned-checks", "-log-level", "-log-format",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string             HTTP bind address (e.g. ":3000")
//	-grpc string          gRPC health bind address
//	-d string             PostgreSQL DSN
//	-s string             access token HMAC secret
//	-t int                access token validity, minutes
//	-r int                refresh token validity, minutes
//	-m int                max active refresh tokens per user
//	-env string           development | production
//	-admin-role string    profile role granting admin access
//	-admin-emails string  comma separated admin allowlist
//	-base-url string      public URL used in emailed links
//	-cors string          comma separated allowed origins
//	-u, -p, -b, -g, -e    S3 user, password, bucket, region, endpoint
//	-redis string         redis address for rate limiting ("" disables it)
//	-rate-limit int       requests per window on credential endpoints
//	-log-level string     debug | info | warn | error
//	-log-format string    json | text | console
//
// Only the flags above are considered; everything else in args is ignored so
// that other components can parse their own flags from the same list.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP API")
	fs.StringVar(&config.GRPCAddr, "grpc", config.GRPCAddr, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	fs.IntVar(&config.MaxActiveRefreshTokens, "m", config.MaxActiveRefreshTokens, "max active refresh tokens per user")
	fs.StringVar(&config.Environment, "env", config.Environment, "environment")
	fs.StringVar(&config.AdminRole, "admin-role", config.AdminRole, "admin role name")
	adminEmails := fs.String("admin-emails", strings.Join(config.AdminEmails, ","), "admin email allowlist")
	fs.StringVar(&config.PublicBaseURL, "base-url", config.PublicBaseURL, "public base URL")
	corsOrigins := fs.String("cors", strings.Join(config.CORSOrigins, ","), "allowed CORS origins")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.RateLimitMax, "rate-limit", config.RateLimitMax, "requests per rate limit window")
	fs.BoolVar(&config.SignupPwnedChecks, "pwned-checks", config.SignupPwnedChecks, "check new passwords against the breached-password range API")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	config.AdminEmails = flagx.SplitList(*adminEmails)
	config.CORSOrigins = flagx.SplitList(*corsOrigins)
	return nil
}
