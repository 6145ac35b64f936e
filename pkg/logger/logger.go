// Package logger provides structured logging for the OpenWrap bridge
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// CallIDKey is the context key for inbound method call IDs
	CallIDKey ContextKey = "call_id"
	// AdIDKey is the context key for ad instance IDs
	AdIDKey ContextKey = "ad_id"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger = zerolog.Nop()
)

// Config holds logger configuration
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	TimeFormat string // time format for console output

	// Output is "stdout", "stderr" or a file path. File output is rotated.
	// The stdio channel transport owns stdout, so it forces stderr or a file.
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns sensible defaults for production
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
		Output:     getEnv("LOG_OUTPUT", "stdout"),
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 30,
	}
}

// Init initializes the global logger
func Init(cfg Config) {
	output := openOutput(cfg)

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "owbridge").
		Logger()
}

func openOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
}

// WithCallID adds an inbound call ID to the logger context
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, CallIDKey, callID)
}

// WithAdID adds an ad ID to the logger context
func WithAdID(ctx context.Context, adID int) context.Context {
	return context.WithValue(ctx, AdIDKey, adID)
}

// FromContext returns a logger with context values
func FromContext(ctx context.Context) zerolog.Logger {
	l := Log.With()

	if callID, ok := ctx.Value(CallIDKey).(string); ok {
		l = l.Str("call_id", callID)
	}

	if adID, ok := ctx.Value(AdIDKey).(int); ok {
		l = l.Int("ad_id", adID)
	}

	return l.Logger()
}

// Ad returns a logger for events of one ad instance
func Ad(adID int, format string) zerolog.Logger {
	return Log.With().Int("ad_id", adID).Str("format", format).Logger()
}

// Bridge returns a logger for the method channel dispatcher
func Bridge() zerolog.Logger {
	return Log.With().Str("component", "bridge").Logger()
}

// Channel returns a logger for channel transports
func Channel() zerolog.Logger {
	return Log.With().Str("component", "channel").Logger()
}

// SDK returns a logger for the OpenWrap SDK surface
func SDK() zerolog.Logger {
	return Log.With().Str("component", "openwrap").Logger()
}

// Storage returns a logger for profile storage
func Storage() zerolog.Logger {
	return Log.With().Str("component", "storage").Logger()
}

// getEnv returns environment variable or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
