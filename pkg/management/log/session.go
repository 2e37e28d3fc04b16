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
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// SessionTimeLayout is the timestamp layout of every session log line
const SessionTimeLayout = "02.Jan.06 15:04:05"

// Session accumulates the log entries of a single run in a human readable
// form, so that they can be attached to the final notification
type Session struct {
	mu    sync.Mutex
	buf   strings.Builder
	level zapcore.LevelEnabler
}

// NewSession creates a session recording every entry enabled by level
func NewSession(level zapcore.LevelEnabler) *Session {
	return &Session{level: level}
}

// Core returns the zap core feeding this session
func (s *Session) Core() zapcore.Core {
	return &sessionCore{session: s}
}

// String returns the entries recorded so far
func (s *Session) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Flush returns the entries recorded so far and resets the session
func (s *Session) Flush() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := s.buf.String()
	s.buf.Reset()
	return result
}

func (s *Session) append(entry zapcore.Entry, fields []zapcore.Field) {
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(encoder)
	}

	keys := make([]string, 0, len(encoder.Fields))
	for key := range encoder.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var line strings.Builder
	line.WriteString(entry.Time.Format(SessionTimeLayout))
	line.WriteString(" - ")
	if entry.Level >= ErrorLevel {
		line.WriteString("ERROR: ")
	}
	if entry.LoggerName != "" {
		line.WriteString("[")
		line.WriteString(entry.LoggerName)
		line.WriteString("] ")
	}
	line.WriteString(entry.Message)
	for _, key := range keys {
		fmt.Fprintf(&line, " %s=%v", key, encoder.Fields[key])
	}
	line.WriteString("\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(line.String())
}

type sessionCore struct {
	session *Session
	fields  []zapcore.Field
}

func (c *sessionCore) Enabled(level zapcore.Level) bool {
	return c.session.level.Enabled(level)
}

func (c *sessionCore) With(fields []zapcore.Field) zapcore.Core {
	clone := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone = append(clone, c.fields...)
	clone = append(clone, fields...)
	return &sessionCore{session: c.session, fields: clone}
}

func (c *sessionCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *sessionCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	c.session.append(entry, all)
	return nil
}

func (c *sessionCore) Sync() error {
	return nil
}
