/*
Copyright The indexctl Contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package log contains the logging subsystem of indexctl
package log

import (
	"context"

	"github.com/go-logr/logr"
)

// Logger is the logging interface used across indexctl. It adds
// the warning, debug and trace levels on top of a logr.Logger
type Logger interface {
	Enabled() bool
	Error(err error, msg string, keysAndValues ...interface{})
	Warning(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Trace(msg string, keysAndValues ...interface{})

	WithValues(keysAndValues ...interface{}) Logger
	WithName(name string) Logger

	GetLogger() logr.Logger
}

// logr verbosity used for each level. zapr maps V(n) to the zap level -n,
// see levels.go for the reverse mapping
const (
	warningVerbosity = 0
	infoVerbosity    = 1
	debugVerbosity   = 2
	traceVerbosity   = 3
)

type logger struct {
	logr.Logger
}

type contextKey struct{}

var log Logger = &logger{Logger: logr.Discard()}

// SetLogger sets the backing logr implementation of the package level logger
func SetLogger(l logr.Logger) {
	log = &logger{Logger: l}
}

// GetLogger returns the package level logger
func GetLogger() Logger {
	return log
}

// FromContext returns the logger stored in the context, falling back
// to the package level one
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return log
	}
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return log
}

// IntoContext stores the logger inside the passed context
func IntoContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

func (l *logger) Enabled() bool {
	return l.Logger.Enabled()
}

func (l *logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(err, msg, keysAndValues...)
}

func (l *logger) Warning(msg string, keysAndValues ...interface{}) {
	l.Logger.V(warningVerbosity).Info(msg, keysAndValues...)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.V(infoVerbosity).Info(msg, keysAndValues...)
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.V(debugVerbosity).Info(msg, keysAndValues...)
}

func (l *logger) Trace(msg string, keysAndValues ...interface{}) {
	l.Logger.V(traceVerbosity).Info(msg, keysAndValues...)
}

func (l *logger) WithValues(keysAndValues ...interface{}) Logger {
	return &logger{Logger: l.Logger.WithValues(keysAndValues...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{Logger: l.Logger.WithName(name)}
}

func (l *logger) GetLogger() logr.Logger {
	return l.Logger
}

// Error logs an error using the package level logger
func Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error(err, msg, keysAndValues...)
}

// Warning logs a warning using the package level logger
func Warning(msg string, keysAndValues ...interface{}) {
	log.Warning(msg, keysAndValues...)
}

// Info logs a message using the package level logger
func Info(msg string, keysAndValues ...interface{}) {
	log.Info(msg, keysAndValues...)
}

// Debug logs a debug message using the package level logger
func Debug(msg string, keysAndValues ...interface{}) {
	log.Debug(msg, keysAndValues...)
}

// Trace logs a trace message using the package level logger
func Trace(msg string, keysAndValues ...interface{}) {
	log.Trace(msg, keysAndValues...)
}

// WithName returns a named child of the package level logger
func WithName(name string) Logger {
	return log.WithName(name)
}

// WithValues returns a child of the package level logger with the passed values
func WithValues(keysAndValues ...interface{}) Logger {
	return log.WithValues(keysAndValues...)
}
