// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package logger

import (
	"go.uber.org/zap"
)

var instance = zap.NewNop().Sugar()

// Set replaces the global logger
func Set(logger *zap.SugaredLogger) {
	instance = logger
}

// I returns the global logger
func I() *zap.SugaredLogger {
	return instance
}
