package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// Logger is the process-wide structured logger. It emits JSON on stdout and
// knows how to expand AppError details into log attributes.
type Logger struct {
	logger *slog.Logger
}

// NewLogger builds a logger at the given level.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// New builds a logger from a textual level (debug, info, warn, error).
func New(level string) (*Logger, error) {
	parsed, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return NewLogger(parsed), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", level)
}

// LogError logs err at error level. AppError kind, code, message and context
// become individual attributes; plain errors log their Error() text.
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		l.logger.Error(message, append([]any{"error", err.Error()}, args...)...)
		return
	}

	attrs := make([]any, 0, 6+2*len(appErr.Context)+len(args))
	attrs = append(attrs,
		"error_kind", appErr.Kind,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
	)
	for key, value := range appErr.Context {
		attrs = append(attrs, key, value)
	}
	l.logger.Error(message, append(attrs, args...)...)
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}
