// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package logutil holds the process-wide zap logger for the command
// line tools. The library itself never logs.
package logutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global = zap.NewNop()

// BgLogger returns the current global logger.
func BgLogger() *zap.Logger {
	return global
}

// SetLogger replaces the global logger.
func SetLogger(l *zap.Logger) {
	global = l
}

// InitLogger builds a console logger at the given level and installs
// it as the global logger.
func InitLogger(level zapcore.Level) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	global = l
	return nil
}
