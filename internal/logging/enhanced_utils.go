package logging

import (
	"context"
	"time"

	"github.com/example/docindex/internal/apperrors"
)

// EnhancedLogger wraps the base Logger with operation-timing and
// error-aware helpers used throughout the sync engine and coordinator.
type EnhancedLogger struct {
	Logger
	component string
}

// NewEnhancedLogger creates an enhanced logger for a component.
func NewEnhancedLogger(component string) *EnhancedLogger {
	baseLogger := NewLogger(INFO)
	return &EnhancedLogger{
		Logger:    baseLogger.WithComponent(component),
		component: component,
	}
}

// WithContext creates a logger carrying the trace ID found in ctx.
func (l *EnhancedLogger) WithContext(ctx context.Context) *EnhancedLogger {
	traceID := getTraceIDFromContext(ctx)
	return &EnhancedLogger{
		Logger:    l.Logger.WithTraceID(traceID),
		component: l.component,
	}
}

// WithError logs an error, unpacking AppError's Kind when present.
func (l *EnhancedLogger) WithError(err error) *EnhancedLogger {
	if err == nil {
		return l
	}

	if appErr, ok := err.(*apperrors.AppError); ok {
		l.Error("error occurred",
			"error", appErr.Error(),
			"kind", string(appErr.Kind),
		)
	} else {
		l.Error("error occurred", "error", err.Error())
	}

	return l
}

// LogOperation logs the start and completion of an operation and returns
// fn's error unchanged.
func (l *EnhancedLogger) LogOperation(operation string, fn func() error) error {
	startTime := time.Now()
	l.Info("starting operation", "operation", operation)

	err := fn()
	duration := time.Since(startTime)

	if err != nil {
		l.Error("operation failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return err
	}

	l.Info("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// LogSlowOperation logs operations that exceed their expected duration.
func (l *EnhancedLogger) LogSlowOperation(operation string, duration, expected time.Duration) {
	l.Warn("slow operation detected",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"expected_ms", expected.Milliseconds(),
		"slowdown_factor", float64(duration)/float64(expected),
	)
}

func getTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetComponentLogger returns an enhanced logger for a specific component.
func GetComponentLogger(component string) *EnhancedLogger {
	return NewEnhancedLogger(component)
}
