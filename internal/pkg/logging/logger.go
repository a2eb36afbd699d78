// Package logging builds the process zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// systemID marks log lines emitted outside any request or delivery trace.
const systemID = "system"

// Options describes the root logger. Level is one of debug, info, warn or error
// and defaults to info. File, when set, receives a copy of every entry.
type Options struct {
	Service string
	Env     string
	Level   string
	File    string
}

// NewLogger returns a JSON logger on stdout with service and env bound to
// every entry.
func NewLogger(opts Options) (*zap.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	sinks := []string{"stdout"}
	if opts.File != "" {
		if err := touch(opts.File); err != nil {
			return nil, fmt.Errorf("logging: prepare %s: %w", opts.File, err)
		}
		sinks = append(sinks, opts.File)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      sinks,
		ErrorOutputPaths: sinks,
		Sampling:         &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		InitialFields: map[string]any{
			"service": opts.Service,
			"env":     opts.Env,
		},
	}
	return cfg.Build()
}

// ParseLevel maps a configured level name to a zap level. An empty name means info.
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("logging: parse level %q: %w", level, err)
	}
	return lvl, nil
}

// System tags a logger used by background loops so their lines still carry
// trace_id and span_id keys.
func System(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("trace_id", systemID),
		zap.String("span_id", systemID),
	)
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
