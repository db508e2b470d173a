package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/buddyauth/internal/flagx"
	"github.com/dmitrijs2005/buddyauth/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Pointer and zero values
// leave the corresponding Config field untouched.
type JsonConfig struct {
	Environment                  string         `json:"environment"`
	HTTPAddr                     string         `json:"http_addr"`
	GRPCAddr                     string         `json:"grpc_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	TokenIssuer                  string         `json:"token_issuer"`
	TokenAudience                string         `json:"token_audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	MaxActiveRefreshTokens       int            `json:"max_active_refresh_tokens"`
	PasswordResetValidity        timex.Duration `json:"password_reset_validity"`
	AdminRole                    string         `json:"admin_role"`
	AdminEmails                  []string       `json:"admin_emails"`
	PublicBaseURL                string         `json:"public_base_url"`
	CORSOrigins                  []string       `json:"cors_origins"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	RedisAddr                    string         `json:"redis_addr"`
	RateLimitWindow              timex.Duration `json:"rate_limit_window"`
	RateLimitMax                 int            `json:"rate_limit_max"`
	SignupPwnedChecks            *bool          `json:"signup_pwned_checks"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Without the flag nothing is loaded. Fields absent from the file
// keep their current values.
func parseJson(config *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.Environment, c.Environment)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setString(&config.TokenAudience, c.TokenAudience)
	setString(&config.AdminRole, c.AdminRole)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.PasswordResetValidity.Duration > 0 {
		config.PasswordResetValidity = c.PasswordResetValidity.Duration
	}
	if c.RateLimitWindow.Duration > 0 {
		config.RateLimitWindow = c.RateLimitWindow.Duration
	}
	if c.MaxActiveRefreshTokens > 0 {
		config.MaxActiveRefreshTokens = c.MaxActiveRefreshTokens
	}
	if c.RateLimitMax > 0 {
		config.RateLimitMax = c.RateLimitMax
	}
	if c.SignupPwnedChecks != nil {
		config.SignupPwnedChecks = *c.SignupPwnedChecks
	}
	if c.AdminEmails != nil {
		config.AdminEmails = c.AdminEmails
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
