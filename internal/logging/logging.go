// Package logging configures the global zerolog logger and carries request
// IDs through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

type ctxKey struct{}

var requestIDKey ctxKey

// Config controls logger initialization.
type Config struct {
	Format    string // "json", "console" or "auto"
	Level     string // trace, debug, info, warn, error, disabled
	Component string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	mu         sync.Mutex
	timeFormat = time.RFC3339
)

var isTerminalFn = term.IsTerminal

// Init replaces the global logger. It is called once at startup and again
// whenever a config reload changes LOG_LEVEL or LOG_FORMAT.
func Init(cfg Config) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	writer := selectWriter(cfg.Format, out)

	zerolog.TimeFieldFormat = timeFormat
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	builder := zerolog.New(writer).With().Timestamp()
	if component := strings.TrimSpace(cfg.Component); component != "" {
		builder = builder.Str("component", component)
	}

	log.Logger = builder.Logger()
	return log.Logger
}

// WithRequestID stores requestID on ctx, generating one when it is blank.
func WithRequestID(ctx context.Context, requestID string) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID), requestID
}

// RequestID returns the request ID stored on ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns the global logger tagged with the request ID, if any.
func FromContext(ctx context.Context) zerolog.Logger {
	logger := log.Logger
	if id := RequestID(ctx); id != "" {
		logger = logger.With().Str("request_id", id).Logger()
	}
	return logger
}

// parseLevel falls back to info for anything zerolog does not know.
func parseLevel(level string) zerolog.Level {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	}

	parsed, err := zerolog.ParseLevel(normalized)
	if err != nil || parsed == zerolog.NoLevel {
		fmt.Fprintf(os.Stderr, "logging: invalid level %q; using \"info\"\n", normalized)
		return zerolog.InfoLevel
	}
	return parsed
}

func selectWriter(format string, out io.Writer) io.Writer {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "console":
		return zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	case "json":
		return out
	case "", "auto":
		if file, ok := out.(*os.File); ok && isTerminalFn(int(file.Fd())) {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
		}
		return out
	default:
		fmt.Fprintf(os.Stderr, "logging: invalid format %q; using \"json\"\n", f)
		return out
	}
}
