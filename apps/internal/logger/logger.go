// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package logger wraps log/slog for the rest of the module. A nil *slog.Logger gets a
// logger that discards everything, so library code never needs a nil check.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type Level string

const (
	Info  Level = "info"
	Err   Level = "error"
	Warn  Level = "warn"
	Debug Level = "debug"
)

// LoggerInterface defines the methods that a logger should implement
type LoggerInterface interface {
	Log(ctx context.Context, level Level, message string, fields ...any)
}

type logger struct {
	logging *slog.Logger
}

// New creates a LoggerInterface writing to slogLogger.
func New(slogLogger *slog.Logger) (LoggerInterface, error) {
	if slogLogger == nil {
		return &logger{logging: slog.New(slog.NewTextHandler(io.Discard, nil))}, nil
	}
	return &logger{logging: slogLogger}, nil
}

// Log method with full support for structured logging and multiple log levels.
func (a *logger) Log(ctx context.Context, level Level, message string, fields ...any) {
	if a == nil || a.logging == nil {
		return
	}
	var slogLevel slog.Level
	switch level {
	case Info:
		slogLevel = slog.LevelInfo
	case Err:
		slogLevel = slog.LevelError
	case Warn:
		slogLevel = slog.LevelWarn
	case Debug:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	a.logging.Log(ctx, slogLevel, message, fields...)
}

// Field creates a slog field for any value
func Field(key string, value any) any {
	return slog.Any(key, value)
}
