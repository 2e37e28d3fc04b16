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

// Package cluster coordinates the operations involving every engine of
// an application: the distribution of new indexes and partial updates
// to the engine hosts and their sequential application
package cluster

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/internal/application"
	"github.com/indexctl/indexctl/internal/component"
)

// Policy tells the completion barrier how to react to a failed operation
type Policy string

const (
	// PolicyWaitForAll logs the failed operations and keeps waiting
	// until every other operation is completed. This is the default
	PolicyWaitForAll Policy = "WaitForAll"

	// PolicyFailFast stops waiting as soon as an operation failed
	PolicyFailFast Policy = "FailFast"
)

// Stage is a cluster-wide operation
type Stage string

// The cluster-wide operations
const (
	StageDistributeIndex        Stage = "distribute-index"
	StageApplyIndex             Stage = "apply-index"
	StageDistributeUpdate       Stage = "distribute-update"
	StageApplyUpdate            Stage = "apply-update"
	StageCleanIndexDistribution Stage = "clean-index-distribution"
	StageCleanUpdates           Stage = "clean-updates"
)

// Observer is notified of the progress of the cluster-wide operations
type Observer interface {
	// BarrierCycle is called after every poll cycle of a completion barrier
	BarrierCycle(stage Stage)

	// EngineApplied is called after an index or an update has been
	// applied to an engine
	EngineApplied(stage Stage, engineID string, success bool)
}

type noopObserver struct{}

func (noopObserver) BarrierCycle(Stage)                {}
func (noopObserver) EngineApplied(Stage, string, bool) {}

// Options are the settings of an orchestrator
type Options struct {
	// Policy is the completion barrier policy, PolicyWaitForAll when empty
	Policy Policy

	// PollInterval is the interval between two completion barrier
	// cycles, component.DefaultPollInterval when zero
	PollInterval time.Duration

	// Clock measures the poll intervals and the pauses between engines.
	// The clock of the application remote handles is used when nil
	Clock clock.Clock

	// Observer receives the progress notifications, if set
	Observer Observer
}

// Orchestrator runs the cluster-wide operations of an application. It
// is meant to be used by a single goroutine
type Orchestrator struct {
	app          *application.Application
	policy       Policy
	pollInterval time.Duration
	clock        clock.Clock
	observer     Observer

	// hostEngines has one engine per engine host, in host definition
	// order. Distributions target hosts, not engines
	hostEngines []*component.Component

	failures []*SoftFailure
}

// New creates an orchestrator for the passed application. The per-run
// state of the engines is reset
func New(app *application.Application, options Options) *Orchestrator {
	o := &Orchestrator{
		app:          app,
		policy:       options.Policy,
		pollInterval: options.PollInterval,
		clock:        options.Clock,
		observer:     options.Observer,
	}
	if o.policy == "" {
		o.policy = PolicyWaitForAll
	}
	if o.pollInterval <= 0 {
		o.pollInterval = component.DefaultPollInterval
	}
	if o.clock == nil && app.Remote != nil {
		o.clock = app.Remote.Clock
	}
	if o.clock == nil {
		o.clock = clock.RealClock{}
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}

	for _, engine := range app.Engines.All() {
		engine.IndexApplied = false
		engine.UpdateApplied = false
	}
	for _, host := range app.Hosts.All() {
		if engine := app.Engines.FindOne(host.ID); engine != nil {
			o.hostEngines = append(o.hostEngines, engine)
		}
	}

	return o
}

// HostEngines returns the engines targeted by the distributions, one
// per engine host
func (o *Orchestrator) HostEngines() []*component.Component {
	return o.hostEngines
}
