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

// Package rollout paces the restarts of the engines of a cluster, so
// that a new index is never applied to two engines in a short time
package rollout

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/pkg/concurrency"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// Manager is the rollout manager. It is safe to use
// concurrently
type Manager struct {
	m sync.Mutex

	// The amount of time we wait after an instance
	// started before touching the next one
	instanceRolloutDelay time.Duration

	// This is used to get the current time and to
	// wait. Mainly used by the unit tests to inject
	// a fake clock
	clock clock.Clock

	// The following data is relative to the last
	// instance that successfully started
	lastInstance string
	lastUpdate   time.Time
}

// Result is the output of the rollout manager, telling the
// orchestrator how much time we need to wait to rollout an instance
type Result struct {
	// This is true when the instance can be rolled out immediately
	RolloutAllowed bool

	// This is set with the amount of time the orchestrator need
	// to wait to rollout that instance
	TimeToWait time.Duration
}

// New creates a new rollout manager with the passed delay. When clk is
// nil the real clock is used
func New(instancesRolloutDelay time.Duration, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		clock:                clk,
		instanceRolloutDelay: instancesRolloutDelay,
	}
}

// CoordinateRollout is called to check whether the rollout of an
// instance is allowed or not by the manager
func (manager *Manager) CoordinateRollout(instanceName string) Result {
	manager.m.Lock()
	defer manager.m.Unlock()

	if manager.lastUpdate.IsZero() {
		return Result{RolloutAllowed: true}
	}

	timeSinceLastRollout := manager.clock.Since(manager.lastUpdate)
	if timeSinceLastRollout >= manager.instanceRolloutDelay {
		return Result{RolloutAllowed: true}
	}

	log.Trace("Rollout delayed",
		"instance", instanceName,
		"lastInstance", manager.lastInstance,
		"timeToWait", manager.instanceRolloutDelay-timeSinceLastRollout)
	return Result{
		RolloutAllowed: false,
		TimeToWait:     manager.instanceRolloutDelay - timeSinceLastRollout,
	}
}

// InstanceStarted records that an instance has been successfully
// rolled out. The next instance will wait for the delay starting now.
// Failed instances are not recorded and don't delay the next one
func (manager *Manager) InstanceStarted(instanceName string) {
	manager.m.Lock()
	defer manager.m.Unlock()

	manager.lastInstance = instanceName
	manager.lastUpdate = manager.clock.Now()
}

// WaitForRollout blocks until the rollout of the instance is allowed
func (manager *Manager) WaitForRollout(ctx context.Context, instanceName string) error {
	for {
		result := manager.CoordinateRollout(instanceName)
		if result.RolloutAllowed {
			return nil
		}

		log.FromContext(ctx).Info("Pausing before the next engine",
			"instance", instanceName, "seconds", int(result.TimeToWait.Round(time.Second).Seconds()))
		if err := concurrency.Sleep(ctx, manager.clock, result.TimeToWait); err != nil {
			return err
		}
	}
}
