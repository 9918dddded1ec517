// Package logger adapts slog to the logging interfaces of third-party libraries.
package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	l *slog.Logger
}

// Cron returns a cron.Logger writing to l. Cron's routine info messages are
// logged at debug level.
func Cron(l *slog.Logger) cron.Logger {
	if l == nil {
		l = slog.Default()
	}
	return cronLogger{l: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
