package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
)

// Logger is the structured logger handed to every pipeline stage.
//
// It embeds slog.Logger, so components log with Debug/Info/Warn/Error
// directly. Each stage derives its own child via With("component", ...)
// so a dropped record or a blocked command can be traced to the stage
// that logged it.
//
// Safe for concurrent use; a single Logger is shared across all
// ingestion and analysis goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the loaded configuration.
//
// Format selects the handler: "text" for local development, anything
// else gets JSON, which is what log shippers downstream of logwarden
// expect. Every line carries "service" and "version" fields so
// logwarden's own output is parseable by the same kind of pipeline it
// implements.
//
// Parameters:
//   - cfg: Logging section of the configuration
//   - version: Build version stamped onto every line
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "logwarden"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger carrying additional default attributes.
//
// Example:
//
//	gateLogger := logger.With("component", "output")
//	gateLogger.Warn("command blocked") // includes component=output
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default returns a stdout JSON logger at info level for use before the
// configuration is loaded, so config load failures themselves get a
// structured line.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
