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

// Package fake contains an in-memory implementation of the instance
// administrative surface
package fake

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/pkg/instanceadmin"
)

// ErrUnreachable is returned for instances marked as down
var ErrUnreachable = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

// Call is a request received by an instance
type Call struct {
	Op      string
	Address string
	At      time.Time
}

// Admin simulates the admin endpoint of every instance. Instances are
// reachable and accept every request unless configured otherwise
type Admin struct {
	mu sync.Mutex

	clock    clock.PassiveClock
	down     map[string]bool
	rejected map[string]bool
	calls    []Call
}

// New creates a new fake admin surface. When clk is nil the real clock
// timestamps the calls
func New(clk clock.PassiveClock) *Admin {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Admin{
		clock:    clk,
		down:     make(map[string]bool),
		rejected: make(map[string]bool),
	}
}

// Address is the key used to refer to an instance
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SetDown marks an instance as unreachable
func (a *Admin) SetDown(host string, port int, down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down[Address(host, port)] = down
}

// SetRejecting makes an instance answer every update and roll request
// with an error status
func (a *Admin) SetRejecting(host string, port int, rejecting bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected[Address(host, port)] = rejecting
}

// Calls returns the requests received so far, optionally filtered by operation
func (a *Admin) Calls(ops ...string) []Call {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]Call, 0, len(a.calls))
	for _, call := range a.calls {
		if len(ops) == 0 {
			result = append(result, call)
			continue
		}
		for _, op := range ops {
			if op == call.Op {
				result = append(result, call)
				break
			}
		}
	}
	return result
}

func (a *Admin) handle(op, host string, port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	address := Address(host, port)
	a.calls = append(a.calls, Call{Op: op, Address: address, At: a.clock.Now()})

	if a.down[address] {
		return ErrUnreachable
	}
	if op != "ping" && a.rejected[address] {
		return &instanceadmin.StatusError{StatusCode: 500, Body: op + " rejected"}
	}
	return nil
}

// Ping implements instanceadmin.Interface
func (a *Admin) Ping(_ context.Context, host string, port int) error {
	return a.handle("ping", host, port)
}

// ApplyUpdate implements instanceadmin.Interface
func (a *Admin) ApplyUpdate(_ context.Context, host string, port int) error {
	return a.handle("update", host, port)
}

// RollLog implements instanceadmin.Interface
func (a *Admin) RollLog(_ context.Context, host string, port int) error {
	return a.handle("roll", host, port)
}

var _ instanceadmin.Interface = &Admin{}
