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

package cluster

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrOperationFailed is returned by the completion barrier, with
	// the fail fast policy, when an operation failed
	ErrOperationFailed = errors.New("remote operation failed")

	// ErrUpdateRejected is returned when a reachable engine refused to
	// apply a partial update
	ErrUpdateRejected = errors.New("partial update rejected")

	// ErrNoIndexer is returned when distributing an index of an
	// application without an indexer
	ErrNoIndexer = errors.New("no indexer defined")
)

// SoftFailure is a failure that doesn't stop a cluster-wide operation.
// Soft failures are collected and reported at the end of the run
type SoftFailure struct {
	Stage       Stage
	HostID      string
	ComponentID string
	Message     string
}

// Error implements the error interface
func (f *SoftFailure) Error() string {
	target := f.HostID
	if f.ComponentID != "" {
		target = fmt.Sprintf("%s on %s", f.ComponentID, f.HostID)
	}
	if f.Message == "" {
		return fmt.Sprintf("%s: %s failed", f.Stage, target)
	}
	return fmt.Sprintf("%s: %s failed: %s", f.Stage, target, f.Message)
}

func (o *Orchestrator) recordFailure(failure *SoftFailure) {
	o.failures = append(o.failures, failure)
}

// Failures returns the soft failures recorded so far
func (o *Orchestrator) Failures() []*SoftFailure {
	result := make([]*SoftFailure, len(o.failures))
	copy(result, o.failures)
	return result
}

// Err combines the soft failures recorded so far, nil if there are none
func (o *Orchestrator) Err() error {
	var err error
	for _, failure := range o.failures {
		err = multierr.Append(err, failure)
	}
	return err
}
