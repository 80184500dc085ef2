package logger

import (
	"log/slog"
	"os"
)

type Logger interface {
	Info(msg string, keyvals ...interface{})

	Warn(msg string, keyvals ...interface{})

	Error(msg string, keyvals ...interface{})

	Debug(msg string, keyvals ...interface{})
}

func New() Logger {
	return newWithLevel(slog.LevelInfo)
}

// NewForEnv enables debug output for development builds only.
func NewForEnv(env string) Logger {
	switch env {
	case "development", "local":
		return newWithLevel(slog.LevelDebug)
	default:
		return newWithLevel(slog.LevelInfo)
	}
}

func newWithLevel(level slog.Level) Logger {
	opts := &slog.HandlerOptions{
		Level:     level, // minimum log level
		AddSource: true,  // include file + line number
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
