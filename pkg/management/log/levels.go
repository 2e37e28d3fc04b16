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

package log

import "go.uber.org/zap/zapcore"

const (
	// ErrorLevel is the error level priority
	ErrorLevel = zapcore.ErrorLevel
	// WarningLevel is the warning level priority
	WarningLevel = zapcore.Level(-warningVerbosity)
	// InfoLevel is the info level priority
	InfoLevel = zapcore.Level(-infoVerbosity)
	// DebugLevel is the debug level priority
	DebugLevel = zapcore.Level(-debugVerbosity)
	// TraceLevel is the trace level priority
	TraceLevel = zapcore.Level(-traceVerbosity)

	// DefaultLevel is the level used when nothing or an invalid value is passed
	DefaultLevel = InfoLevel

	// ErrorLevelString is the string representation of the error level
	ErrorLevelString = "error"
	// WarningLevelString is the string representation of the warning level
	WarningLevelString = "warning"
	// InfoLevelString is the string representation of the info level
	InfoLevelString = "info"
	// DebugLevelString is the string representation of the debug level
	DebugLevelString = "debug"
	// TraceLevelString is the string representation of the trace level
	TraceLevelString = "trace"

	// DefaultLevelString is the string representation of the default level
	DefaultLevelString = InfoLevelString
)

// ParseLevel converts a level name into its zap priority, returning
// false when the name is not known
func ParseLevel(l string) (zapcore.Level, bool) {
	switch l {
	case ErrorLevelString:
		return ErrorLevel, true
	case WarningLevelString:
		return WarningLevel, true
	case InfoLevelString:
		return InfoLevel, true
	case DebugLevelString:
		return DebugLevel, true
	case TraceLevelString:
		return TraceLevel, true
	default:
		return DefaultLevel, false
	}
}

// LevelString is the reverse of ParseLevel. Priorities sitting between two
// known levels are reported with the name of the closest more severe one
func LevelString(l zapcore.Level) string {
	switch {
	case l >= ErrorLevel:
		return ErrorLevelString
	case l >= WarningLevel:
		return WarningLevelString
	case l >= InfoLevel:
		return InfoLevelString
	case l >= DebugLevel:
		return DebugLevelString
	default:
		return TraceLevelString
	}
}
