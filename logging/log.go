// Package logging owns the process-wide logger used by every other
// package. It mirrors the teacher's single global logger, but backs it
// with zap so the structured fields scattered across the codebase (file
// handles, ranges, symbol counts) land as real fields instead of being
// interpolated into a text line.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance. It is a no-op logger until
// Init replaces it with the file-backed one.
var Logger = zap.NewNop()

var logPath string

// Init initializes the logger with a file output, creating it if needed.
// Passing an empty path falls back to a file under the OS temp directory,
// matching the teacher's default.
func Init(path string) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "lsf-log.json")
	}
	logPath = path

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		panic("logging: couldn't open log file: " + err.Error())
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), zap.DebugLevel)
	Logger = zap.New(core)
}

// Path returns the file the logger is currently writing to.
func Path() string {
	return logPath
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
