// Package logging provides structured logging using zerolog.
//
// Library packages take the logger from the context:
//
//	log := logging.FromContext(ctx)
//	log.Warn().Str("catalogue", "wds").Int("line", n).Err(err).Msg("skipping line")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger zerolog.Logger

func init() {
	defaultLogger = NewLogger(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level" mapstructure:"level"`

	// Format is json, console or auto (console when stderr is a terminal)
	Format string `yaml:"format" mapstructure:"format"`

	// Output is written to instead of stderr when set
	Output io.Writer `yaml:"-" mapstructure:"-"`
}

// NewLogger creates a logger from configuration
func NewLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stderr
	if cfg.Output != nil {
		writer = cfg.Output
	}

	switch cfg.Format {
	case "json":
	case "console":
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen, NoColor: os.Getenv("NO_COLOR") != ""}
	default:
		if cfg.Output == nil && isatty() {
			writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen, NoColor: os.Getenv("NO_COLOR") != ""}
		}
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Configure replaces the default logger
func Configure(cfg Config) {
	defaultLogger = NewLogger(cfg)
}

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithCatalogue adds catalogue context to the logger.
func WithCatalogue(ctx context.Context, catalogue string) context.Context {
	logger := FromContext(ctx).With().Str("catalogue", catalogue).Logger()
	return WithLogger(ctx, &logger)
}

func isatty() bool {
	fileInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}
