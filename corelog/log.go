// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package corelog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLogFile is the log file name used when file logging is enabled
// without an explicit name.
const DefaultLogFile = "bitwired.log"

// Config describes the logging setup.  It is usually embedded into the node
// configuration file.
type Config struct {
	// Level is the minimum level to log: trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// DisableConsole turns off logging to stderr.
	DisableConsole bool `yaml:"disable_console"`

	// LogsAsJSON switches the console encoder to JSON output.
	LogsAsJSON bool `yaml:"logs_as_json"`

	// FileLoggingEnabled makes the framework log to a file.  The fields
	// below can be skipped if this value is false.
	FileLoggingEnabled bool `yaml:"file_logging_enabled"`

	// Directory to log to when file logging is enabled.
	Directory string `yaml:"directory"`

	// Filename is the name of the logfile which will be placed inside the
	// directory.
	Filename string `yaml:"filename"`

	// MaxSize is the max size in MB of the logfile before it's rolled.
	MaxSize int `yaml:"max_size"`

	// MaxBackups is the max number of rolled files to keep.
	MaxBackups int `yaml:"max_backups"`

	// MaxAge is the max age in days to keep a logfile.
	MaxAge int `yaml:"max_age"`
}

// Default returns the logging configuration used when the config file does
// not override it.
func (Config) Default() Config {
	return Config{
		Level:              "info",
		DisableConsole:     false,
		LogsAsJSON:         false,
		FileLoggingEnabled: false,
		Directory:          "logs",
		Filename:           DefaultLogFile,
		MaxSize:            150,
		MaxBackups:         3,
		MaxAge:             28,
	}
}

// parseLevel maps a config level name to a zap level, defaulting to info.
func parseLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the backend logger for the given subsystem unit.  All subsystem
// loggers share the sink configuration; the unit shows up as the "app.unit"
// field the way the rest of the stack expects.
func New(unit string, config Config) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.LogsAsJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	level := parseLevel(config.Level)

	var cores []zapcore.Core
	if !config.DisableConsole {
		cores = append(cores, zapcore.NewCore(encoder,
			zapcore.Lock(os.Stderr), level))
	}
	if config.FileLoggingEnabled {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(config.Directory, config.Filename),
			MaxSize:    config.MaxSize, // megabytes
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge, // days
		})
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.With(zap.String("app", "bitwired"), zap.String("app.unit", unit))
}
