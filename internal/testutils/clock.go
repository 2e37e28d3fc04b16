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

// Package testutils contains helpers shared by the unit tests
package testutils

import (
	"time"

	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

// SteppingClock is a fake clock whose timers fire immediately, moving
// the fake time forward by the timer duration. It lets polling loops
// run without real waits while keeping the elapsed time observable
type SteppingClock struct {
	*testingclock.FakeClock
}

// NewSteppingClock creates a stepping clock starting at the passed time
func NewSteppingClock(start time.Time) *SteppingClock {
	return &SteppingClock{FakeClock: testingclock.NewFakeClock(start)}
}

// NewTimer creates a timer that has already fired
func (c *SteppingClock) NewTimer(d time.Duration) clock.Timer {
	timer := c.FakeClock.NewTimer(d)
	c.FakeClock.Step(d)
	return timer
}

// After returns a channel that has already received the fired time
func (c *SteppingClock) After(d time.Duration) <-chan time.Time {
	ch := c.FakeClock.After(d)
	c.FakeClock.Step(d)
	return ch
}

var _ clock.Clock = &SteppingClock{}
