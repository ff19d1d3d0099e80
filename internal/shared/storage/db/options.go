package db

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"patent-backend/internal/shared/telemetry"
)

// Options controls pool sizing and startup connectivity.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// ConnectAttempts bounds how many times Connect tries to reach the
	// database before giving up. Zero means one attempt.
	ConnectAttempts int
}

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// DefaultLambdaOptions keeps each execution environment to a couple of
// connections, since Lambda scales by environment count.
func DefaultLambdaOptions() Options {
	return Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
		ConnectAttempts: 1,
	}
}

// DefaultServerOptions suits the long-running API and worker processes.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
		ConnectAttempts: 5,
	}
}

// DefaultMigrateOptions suits the one-shot migrate command.
func DefaultMigrateOptions() Options {
	opts := DefaultServerOptions()
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	return opts
}

type intOverride struct {
	key   string
	field func(*Options) *int
}

type durationOverride struct {
	key   string
	field func(*Options) *time.Duration
}

var (
	intOverrides = []intOverride{
		{"DB_MAX_OPEN_CONNS", func(o *Options) *int { return &o.MaxOpenConns }},
		{"DB_MAX_IDLE_CONNS", func(o *Options) *int { return &o.MaxIdleConns }},
		{"DB_CONNECT_ATTEMPTS", func(o *Options) *int { return &o.ConnectAttempts }},
	}
	durationOverrides = []durationOverride{
		{"DB_CONN_MAX_LIFETIME", func(o *Options) *time.Duration { return &o.ConnMaxLifetime }},
		{"DB_CONN_MAX_IDLE_TIME", func(o *Options) *time.Duration { return &o.ConnMaxIdleTime }},
		{"DB_PING_TIMEOUT", func(o *Options) *time.Duration { return &o.PingTimeout }},
	}
)

// OptionsFromEnv applies DB_* environment overrides on top of defaults.
// Malformed values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	v := viper.New()
	v.AutomaticEnv()

	opts := defaults
	for _, o := range intOverrides {
		raw := strings.TrimSpace(v.GetString(o.key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			telemetry.Warn("db.env.invalid", map[string]any{"key": o.key, "error": err.Error()})
			continue
		}
		*o.field(&opts) = n
	}
	for _, o := range durationOverrides {
		raw := strings.TrimSpace(v.GetString(o.key))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			telemetry.Warn("db.env.invalid", map[string]any{"key": o.key, "error": err.Error()})
			continue
		}
		*o.field(&opts) = d
	}
	return opts
}

// withPoolDefaults fills zero values so a partially populated Options is
// still usable.
func (o Options) withPoolDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 1
	}
	return o
}
