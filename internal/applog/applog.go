// Package applog provides the process-wide structured logger. It keeps the
// same request-scoped, chainable shape the proxy has always used
// (WithField/WithModel/WithComponent) but backs it with logrus instead of
// the bare standard-library logger the shape was first written against.
package applog

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/requestid"
)

// Logger is the chainable logging interface used throughout the proxy.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithModel(model string) Logger
	WithComponent(component string) Logger
}

// ctxLogger implements Logger on top of a logrus.Entry.
type ctxLogger struct {
	entry *logrus.Entry
}

// New builds the process-wide *logrus.Logger from a level name such as
// "debug", "info", "warn" or "error". An unrecognized level falls back to
// info, matching the proxy's historical default.
func New(levelName string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// FromLogrus wraps an existing *logrus.Logger as a base Logger with no
// request context attached.
func FromLogrus(l *logrus.Logger) Logger {
	return &ctxLogger{entry: logrus.NewEntry(l)}
}

// WithContext attaches the request ID carried in ctx, if any, as a field.
func WithContext(ctx context.Context, base Logger) Logger {
	l, ok := base.(*ctxLogger)
	if !ok {
		return base
	}
	if id := requestid.FromContext(ctx); id != "" {
		return &ctxLogger{entry: l.entry.WithField("request_id", id)}
	}
	return l
}

func (l *ctxLogger) WithField(key string, value interface{}) Logger {
	return &ctxLogger{entry: l.entry.WithField(key, value)}
}

func (l *ctxLogger) WithModel(model string) Logger {
	return &ctxLogger{entry: l.entry.WithField("model", model)}
}

func (l *ctxLogger) WithComponent(component string) Logger {
	return &ctxLogger{entry: l.entry.WithField("component", component)}
}

func (l *ctxLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *ctxLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *ctxLogger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *ctxLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *ctxLogger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *ctxLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *ctxLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *ctxLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
