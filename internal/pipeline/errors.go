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

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrLockHeld is returned when another run holds the update lock
	ErrLockHeld = errors.New("another update is in progress, the update lock is held")

	// ErrForgeNotFound is returned when the forge of the run is not
	// part of the application
	ErrForgeNotFound = errors.New("forge not found")

	// ErrNoIndexer is returned when a baseline update is requested for
	// an application without an indexer
	ErrNoIndexer = errors.New("no indexer defined")

	// ErrBatchFailed is returned when a forge or the indexer failed
	ErrBatchFailed = errors.New("batch component failed")

	// ErrIndexTestFailed is returned when the new index could not be
	// applied to the test hosts
	ErrIndexTestFailed = errors.New("the new index could not be applied to the test hosts")

	// ErrRollbackFailed is returned when the previous index could not
	// be restored
	ErrRollbackFailed = errors.New("index rollback failed")
)

// FatalError is an error that stopped a run
type FatalError struct {
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var fatalError *FatalError
	if errors.As(err, &fatalError) {
		return err
	}
	return &FatalError{Stage: stage, Err: err}
}
