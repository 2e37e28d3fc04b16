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

import (
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Flags contains the set of values necessary
// for configuring the logger
type Flags struct {
	logLevel       string
	logDestination string
	logFormat      string
}

// AddFlags binds logging configuration flags to a given flagset
func (l *Flags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&l.logLevel, "log-level", DefaultLevelString,
		"the desired log level, one of error, warning, info, debug and trace")
	flags.StringVar(&l.logDestination, "log-destination", "",
		"where the log stream will be written, defaults to stderr")
	flags.StringVar(&l.logFormat, "log-format", "json",
		"the log encoding, one of json and console")
}

// Level returns the priority selected by the user
func (l *Flags) Level() zapcore.Level {
	level, _ := ParseLevel(l.logLevel)
	return level
}

// ConfigureLogging configure the logging honoring the flags
// passed from the user. Any additional core receives a copy
// of every log entry
func (l *Flags) ConfigureLogging(cores ...zapcore.Core) {
	level, valid := ParseLevel(l.logLevel)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(LevelString(l))
	}

	var encoder zapcore.Encoder
	if l.logFormat == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	main := zapcore.NewCore(encoder, l.destination(), zap.NewAtomicLevelAt(level))
	logger := zap.New(zapcore.NewTee(append([]zapcore.Core{main}, cores...)...))
	SetLogger(zapr.NewLogger(logger))

	if !valid {
		Info("Invalid log level, defaulting", "level", l.logLevel, "default", DefaultLevelString)
	}
}

func (l *Flags) destination() zapcore.WriteSyncer {
	if l.logDestination == "" {
		return zapcore.Lock(os.Stderr)
	}

	logStream, err := os.OpenFile(l.logDestination, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600) //#nosec
	if err != nil {
		panic(fmt.Sprintf("Cannot open log destination %v: %v", l.logDestination, err))
	}

	return zapcore.Lock(logStream)
}
