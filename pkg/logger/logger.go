package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance with the specified log level
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w
func NewWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	handler := slog.NewJSONHandler(w, opts)
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	return NewWithWriter("ERROR", io.Discard)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTxID returns a logger with PIX transaction ID context
func (l *Logger) WithTxID(txID string) *Logger {
	return &Logger{
		Logger: l.With("txid", txID),
	}
}

// WithShipmentID returns a logger with shipment context
func (l *Logger) WithShipmentID(id string) *Logger {
	return &Logger{
		Logger: l.With("shipment_id", id),
	}
}

// WithProvider returns a logger with payment provider context
func (l *Logger) WithProvider(provider string) *Logger {
	return &Logger{
		Logger: l.With("provider", provider),
	}
}

// WithRecipient returns a logger with recipient context
func (l *Logger) WithRecipient(recipientID string) *Logger {
	return &Logger{
		Logger: l.With("recipient_id", recipientID),
	}
}

// WithComponent returns a logger tagged with the owning component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.With("component", name),
	}
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err),
	}
}
