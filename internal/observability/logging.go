// Copyright (c) Microsoft. All rights reserved.

// Package observability builds the process logger and tracer provider shared
// by the hosted agent samples.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables read by [ConfigFromEnv].
const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

// Config holds the configuration for the process logger.
type Config struct {
	Level   string
	Format  string
	Service string
	Output  io.Writer
}

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT.
func ConfigFromEnv(lookup func(string) (string, bool), service string) *Config {
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}
	return &Config{
		Level:   get(EnvLogLevel),
		Format:  get(EnvLogFormat),
		Service: service,
	}
}

// NewLogger creates a structured logger from cfg. Level defaults to info and
// format to json.
func NewLogger(cfg *Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %q (allowed: json, text)", cfg.Format)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With(slog.String("service.name", cfg.Service))
	}
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q (allowed: debug, info, warn, error)", s)
	}
}
