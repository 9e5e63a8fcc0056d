package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/env"
	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger. Format falls back to
// PHONESHOP_LOG_FORMAT (or LOG_FORMAT) and then json.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger carries request scoped fields through context.Context so handlers,
// services and jobs share one log line shape.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.
		New(writerFor(opts)).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

func writerFor(opts Options) io.Writer {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = strings.ToLower(env.Get("LOG_FORMAT", FormatJSON))
	}
	if format != FormatConsole {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    env.Bool("LOG_NO_COLOR", false),
	}
}

func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := build(l.fromContext(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Fields(fields)
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", requestID)
	})
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", userID)
	})
}

func (l *Logger) WithOrderID(ctx context.Context, orderID int64) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Int64("order_id", orderID)
	})
}

// WithJob tags entries emitted by a background job run.
func (l *Logger) WithJob(ctx context.Context, name string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("job", name).Str("event", "cron.job")
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.fromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.fromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.fromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always records a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.fromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
