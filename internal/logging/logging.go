// Package logging builds zap loggers and adapts them to the service Logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cultureplan/internal/config"
	"cultureplan/internal/core"
)

// New builds a zap logger from cfg. Development mode uses the console
// encoder; otherwise JSON.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Adapt exposes a zap logger through core.Logger.
func Adapt(l *zap.Logger) core.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return sugared{l.Sugar()}
}

type sugared struct {
	s *zap.SugaredLogger
}

func (a sugared) Debug(msg string, kv ...any) { a.s.Debugw(msg, kv...) }
func (a sugared) Info(msg string, kv ...any)  { a.s.Infow(msg, kv...) }
func (a sugared) Warn(msg string, kv ...any)  { a.s.Warnw(msg, kv...) }
func (a sugared) Error(msg string, kv ...any) { a.s.Errorw(msg, kv...) }
