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

// Package concurrency contains utilities for goroutine coordination
package concurrency

import (
	"sync"
)

// Executed can be used to wait for something to be executed,
// it has similar semantics to sync.Cond,
// but with a way to know if the event has already happened
type Executed struct {
	once sync.Once
	done chan struct{}
}

// NewExecuted creates a new Executed
func NewExecuted() *Executed {
	return &Executed{
		done: make(chan struct{}),
	}
}

// Done returns a channel closed on execution, to be used in select statements
func (i *Executed) Done() <-chan struct{} {
	return i.done
}

// Broadcast broadcasts execution to waiting goroutines.
// Calling it more than once has no effect
func (i *Executed) Broadcast() {
	i.once.Do(func() {
		close(i.done)
	})
}
