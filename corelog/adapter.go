// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package corelog

import (
	"go.uber.org/zap"
)

// ILogger is the leveled printf-style interface the subsystems log through.
// It decouples them from the concrete zap backend so tests can run with
// logging disabled.
type ILogger interface {
	Tracef(format string, params ...interface{})
	Debugf(format string, params ...interface{})
	Infof(format string, params ...interface{})
	Warnf(format string, params ...interface{})
	Errorf(format string, params ...interface{})

	Trace(v ...interface{})
	Debug(v ...interface{})
	Info(v ...interface{})
	Warn(v ...interface{})
	Error(v ...interface{})
}

// Disabled is an ILogger that drops everything.
var Disabled ILogger = noopLogger{}

type noopLogger struct{}

func (noopLogger) Tracef(string, ...interface{}) {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Trace(...interface{})          {}
func (noopLogger) Debug(...interface{})          {}
func (noopLogger) Info(...interface{})           {}
func (noopLogger) Warn(...interface{})           {}
func (noopLogger) Error(...interface{})          {}

// Adapter wraps a zap logger in the ILogger interface.  Trace maps to zap's
// debug level since zap has no trace level of its own.
func Adapter(logger *zap.Logger) ILogger {
	return zapAdapter{sugar: logger.Sugar()}
}

type zapAdapter struct {
	sugar *zap.SugaredLogger
}

func (a zapAdapter) Tracef(format string, params ...interface{}) {
	a.sugar.Debugf(format, params...)
}
func (a zapAdapter) Debugf(format string, params ...interface{}) {
	a.sugar.Debugf(format, params...)
}
func (a zapAdapter) Infof(format string, params ...interface{}) {
	a.sugar.Infof(format, params...)
}
func (a zapAdapter) Warnf(format string, params ...interface{}) {
	a.sugar.Warnf(format, params...)
}
func (a zapAdapter) Errorf(format string, params ...interface{}) {
	a.sugar.Errorf(format, params...)
}

func (a zapAdapter) Trace(v ...interface{}) { a.sugar.Debug(v...) }
func (a zapAdapter) Debug(v ...interface{}) { a.sugar.Debug(v...) }
func (a zapAdapter) Info(v ...interface{})  { a.sugar.Info(v...) }
func (a zapAdapter) Warn(v ...interface{})  { a.sugar.Warn(v...) }
func (a zapAdapter) Error(v ...interface{}) { a.sugar.Error(v...) }
