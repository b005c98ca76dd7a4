package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/felixgeelhaar/sous/internal/ports"
)

// File log rotation limits. The agent can run for months; without rotation a
// chatty sync loop fills the disk.
const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
	maxLogAgeDays = 28
)

// NewFileLogger creates a JSON logger that appends to path with rotation.
// Intended for the background sync agent, where stderr goes nowhere.
func NewFileLogger(path string, level ports.Level) *ConsoleLogger {
	return NewConsoleLogger(
		WithOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		}),
		WithLevel(level),
		WithJSONFormat(true),
	)
}
