// Package logger wraps logrus with the field conventions used across the
// booking service: every booking, payment and ticket event carries its
// identifiers as structured fields so gate incidents can be reconstructed
// from the logs alone.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output string // stdout, stderr, file path
}

type ctxKey string

// RequestIDKey is the context key under which the request ID middleware
// stores the current request's correlation ID.
const RequestIDKey ctxKey = "request_id"

func New(cfg Config) (*Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	switch cfg.Output {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		l.SetOutput(f)
	}

	return &Logger{logger: l, fields: logrus.Fields{}}, nil
}

// NewWriter builds a JSON logger writing to w.  Tests use it with a buffer.
func NewWriter(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return &Logger{logger: l, fields: logrus.Fields{}}
}

// Nop discards everything.
func Nop() *Logger { return NewWriter(io.Discard) }

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{logger: l.logger, fields: merged}
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// WithContext attaches the request ID, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return l.WithField("request_id", id)
	}
	return l
}

func (l *Logger) Debug(msg string) { l.logger.WithFields(l.fields).Debug(msg) }
func (l *Logger) Info(msg string)  { l.logger.WithFields(l.fields).Info(msg) }
func (l *Logger) Warn(msg string)  { l.logger.WithFields(l.fields).Warn(msg) }
func (l *Logger) Error(msg string) { l.logger.WithFields(l.fields).Error(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

// LogBookingEvent records a booking lifecycle step.
func (l *Logger) LogBookingEvent(orderNumber string, event string, details map[string]interface{}) {
	fields := map[string]interface{}{
		"order_number": orderNumber,
		"event":        event,
		"type":         "booking_event",
	}
	for k, v := range details {
		fields[k] = v
	}
	l.WithFields(fields).Info("booking event")
}

// LogPaymentEvent records a payment status change.
func (l *Logger) LogPaymentEvent(orderNumber, event string, amount int64, channel string) {
	l.WithFields(map[string]interface{}{
		"order_number": orderNumber,
		"event":        event,
		"amount":       amount,
		"channel":      channel,
		"type":         "payment_event",
	}).Info("payment event")
}

// LogTicketEvent records a gate scan or redemption.
func (l *Logger) LogTicketEvent(ticketCode, event string, details map[string]interface{}) {
	fields := map[string]interface{}{
		"ticket_code": ticketCode,
		"event":       event,
		"type":        "ticket_event",
	}
	for k, v := range details {
		fields[k] = v
	}
	l.WithFields(fields).Info("ticket event")
}
