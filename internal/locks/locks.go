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

// Package locks implements the mutual exclusion between the runs
// updating the same application, using the flags kept by the
// application controller. A lock is held while its flag exists
package locks

import (
	"context"
	"fmt"

	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/management/log"
	"github.com/indexctl/indexctl/pkg/stringset"
)

const (
	// UpdateFlag is held during every update of the application
	UpdateFlag = "update"

	// BaselineDataReadyFlag tells that the data of a baseline update is ready
	BaselineDataReadyFlag = "baseline_data_ready"

	// PartialDataReadyFlag tells that the data of a partial update is ready
	PartialDataReadyFlag = "partial_data_ready"
)

// KnownFlags is the set of flags used by indexctl
var KnownFlags = stringset.From([]string{UpdateFlag, BaselineDataReadyFlag, PartialDataReadyFlag})

// Manager manages the locks of one application
type Manager struct {
	controller controlservice.Interface
	appID      string
}

// NewManager creates a lock manager for the passed application
func NewManager(controller controlservice.Interface, appID string) *Manager {
	return &Manager{
		controller: controller,
		appID:      appID,
	}
}

// AcquireLock tries to acquire a lock without waiting. It returns false
// when the lock is already held, nothing being changed in that case
func (m *Manager) AcquireLock(ctx context.Context, name string) (bool, error) {
	acquired, err := m.controller.SetFlag(ctx, m.appID, name)
	if err != nil {
		return false, fmt.Errorf("while acquiring lock %s: %w", name, err)
	}
	log.FromContext(ctx).Debug("AcquireLock", "lock", name, "acquired", acquired)
	return acquired, nil
}

// ReleaseLock releases a lock
func (m *Manager) ReleaseLock(ctx context.Context, name string) error {
	if err := m.controller.RemoveFlag(ctx, m.appID, name); err != nil {
		return fmt.Errorf("while releasing lock %s: %w", name, err)
	}
	log.FromContext(ctx).Debug("ReleaseLock", "lock", name)
	return nil
}

// ReleaseAllLocks releases every lock of the application. Releasing
// locks that are not held is not an error
func (m *Manager) ReleaseAllLocks(ctx context.Context) error {
	if err := m.controller.RemoveAllFlags(ctx, m.appID); err != nil {
		return fmt.Errorf("while releasing all locks: %w", err)
	}
	log.FromContext(ctx).Debug("ReleaseAllLocks")
	return nil
}

// ListLocks lists the locks currently held, sorted by name
func (m *Manager) ListLocks(ctx context.Context) ([]string, error) {
	flags, err := m.controller.ListFlags(ctx, m.appID)
	if err != nil {
		return nil, fmt.Errorf("while listing locks: %w", err)
	}
	return stringset.From(flags).ToSortedList(), nil
}

// IsLockSet checks whether a lock is held
func (m *Manager) IsLockSet(ctx context.Context, name string) (bool, error) {
	flags, err := m.controller.ListFlags(ctx, m.appID)
	if err != nil {
		return false, fmt.Errorf("while checking lock %s: %w", name, err)
	}
	return stringset.From(flags).Has(name), nil
}
