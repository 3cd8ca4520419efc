// Copyright 2024 The VexOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the kernel's logging facade, the printk analogue for a
// hosted kernel. The default target emits through logrus; tests and the
// simulator may swap the target.
package log

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Level is the log level.
type Level uint32

// The set of levels, in increasing verbosity.
const (
	// Warning indicates a condition the operator should see, such as a
	// signal ignored by init.
	Warning Level = iota

	// Info is the normal operational level.
	Info

	// Debug is used for delivery traces and other noisy diagnostics.
	Debug
)

// Logger is a high-level logging interface. It is in fact, not used within
// the kernel hot paths unless the relevant level is enabled.
type Logger interface {
	// Debugf logs a debug statement.
	Debugf(format string, v ...any)

	// Infof logs at an info level.
	Infof(format string, v ...any)

	// Warningf logs a warning.
	Warningf(format string, v ...any)

	// IsLogging returns true iff this level is being logged.
	IsLogging(level Level) bool
}

// logrusTarget emits through a logrus logger.
type logrusTarget struct {
	logger *logrus.Logger
}

// Debugf implements Logger.Debugf.
func (lt *logrusTarget) Debugf(format string, v ...any) {
	lt.logger.Debugf(format, v...)
}

// Infof implements Logger.Infof.
func (lt *logrusTarget) Infof(format string, v ...any) {
	lt.logger.Infof(format, v...)
}

// Warningf implements Logger.Warningf.
func (lt *logrusTarget) Warningf(format string, v ...any) {
	lt.logger.Warningf(format, v...)
}

// IsLogging implements Logger.IsLogging.
func (lt *logrusTarget) IsLogging(level Level) bool {
	switch level {
	case Debug:
		return lt.logger.IsLevelEnabled(logrus.DebugLevel)
	case Info:
		return lt.logger.IsLevelEnabled(logrus.InfoLevel)
	default:
		return true
	}
}

// LogrusTarget returns a Logger backed by the given logrus logger.
func LogrusTarget(logger *logrus.Logger) Logger {
	return &logrusTarget{logger: logger}
}

// loggerValue wraps a Logger so that atomic.Value always stores a single
// concrete type regardless of the target's underlying type.
type loggerValue struct {
	Logger
}

// log is the current global logger.
var log atomic.Value

func init() {
	log.Store(loggerValue{LogrusTarget(logrus.StandardLogger())})
}

// Log retrieves the global logger.
func Log() Logger {
	return log.Load().(loggerValue).Logger
}

// SetTarget sets the global logger.
func SetTarget(target Logger) {
	log.Store(loggerValue{target})
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	Log().Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	Log().Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	Log().Warningf(format, v...)
}

// IsLogging returns whether the global logger is logging at level.
func IsLogging(level Level) bool {
	return Log().IsLogging(level)
}
