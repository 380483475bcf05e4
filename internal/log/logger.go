// Package log configures the zerolog logger shared by the engine packages.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the base logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", ...)
	Format  string    // "json" (default) or "console"
	Output  io.Writer // defaults to os.Stderr
	Service string    // attached to every entry, defaults to "formproc"
}

var (
	mu         sync.RWMutex
	configured bool
	base       zerolog.Logger

	timeFormatOnce sync.Once
)

// Configure installs the base logger. Later calls replace the previous
// configuration so the CLI can apply flags after the config file was read.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	switch {
	case cfg.Level != "":
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	case os.Getenv("LOG_LEVEL") != "":
		if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			level = parsed
		}
	}
	// TimeFieldFormat is global to zerolog and read while logging.
	timeFormatOnce.Do(func() { zerolog.TimeFieldFormat = time.RFC3339 })

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	}

	service := cfg.Service
	if service == "" {
		service = "formproc"
	}

	logger := zerolog.New(writer).Level(level).With().
		Timestamp().
		Str(FieldService, service).
		Logger()

	mu.Lock()
	base = logger
	configured = true
	mu.Unlock()
}

func logger() zerolog.Logger {
	mu.RLock()
	if configured {
		l := base
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Configure(Config{})
	return Base()
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Nop returns a disabled logger, handy for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
