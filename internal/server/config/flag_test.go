package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected func() *Config
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8080", "-grpc", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-t", "5", "-r", "60", "-m", "3", "-env", "production",
				"-admin-role", "owner", "-admin-emails", "a@x.io, b@x.io", "-base-url", "https://auth.example.com",
				"-cors", "https://app.example.com",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-redis", "localhost:6379", "-rate-limit", "10", "-pwned-checks", "-log-level", "debug", "-log-format", "console",
			},
			expected: func() *Config {
				c := &Config{}
				c.LoadDefaults()
				c.HTTPAddr = "127.0.0.1:8080"
				c.GRPCAddr = "127.0.0.1:9090"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.AccessTokenValidityDuration = 5 * time.Minute
				c.RefreshTokenValidityDuration = time.Hour
				c.MaxActiveRefreshTokens = 3
				c.Environment = EnvProduction
				c.AdminRole = "owner"
				c.AdminEmails = []string{"a@x.io", "b@x.io"}
				c.PublicBaseURL = "https://auth.example.com"
				c.CORSOrigins = []string{"https://app.example.com"}
				c.S3RootUser = "user"
				c.S3RootPassword = "password"
				c.S3Bucket = "bucket"
				c.S3Region = "us-west-1"
				c.S3BaseEndpoint = "http://endpoint"
				c.RedisAddr = "localhost:6379"
				c.RateLimitMax = 10
				c.SignupPwnedChecks = true
				c.LogLevel = "debug"
				c.LogFormat = "console"
				return c
			},
		},
		{
			name: "unknown flags are ignored",
			args: []string{"-config", "x.json", "-zzz", "1", "-m", "7"},
			expected: func() *Config {
				c := &Config{}
				c.LoadDefaults()
				c.MaxActiveRefreshTokens = 7
				return c
			},
		},
		{
			name:    "bad integer",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			config.LoadDefaults()

			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected(), config))
		})
	}
}
