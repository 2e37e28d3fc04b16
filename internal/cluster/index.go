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
	"context"
	"errors"
	"time"

	"github.com/indexctl/indexctl/internal/cluster/rollout"
	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// DistributeIndex copies the index built by the indexer into the
// distribution directory of every engine host, in parallel, waiting
// for every copy to complete
func (o *Orchestrator) DistributeIndex(ctx context.Context) error {
	indexer := o.app.Indexer
	if indexer == nil {
		return ErrNoIndexer
	}

	contextLogger := log.FromContext(ctx)
	tokens := make([]*component.Token, 0, len(o.hostEngines))
	for _, engine := range o.hostEngines {
		contextLogger.Info("Distributing index",
			"hostID", engine.HostID, "from", indexer.OutputDir, "to", engine.IndexDistributionDir)
		token, err := engine.CopyFiles(ctx, indexer.HostID, indexer.OutputDir, engine.IndexDistributionDir)
		if err != nil {
			return err
		}
		tokens = append(tokens, token)
	}

	return o.WaitComplete(ctx, StageDistributeIndex, tokens)
}

// ApplyIndex applies the distributed index to every engine, one at a
// time in definition order. Engines where the index has already been
// applied in this run are skipped. A failure is logged and recorded,
// and the next engine is processed anyway. After an engine has been
// successfully restarted the next one waits for the passed pause
func (o *Orchestrator) ApplyIndex(ctx context.Context, pause time.Duration) error {
	contextLogger := log.FromContext(ctx)
	pacer := rollout.New(pause, o.clock)

	for _, engine := range o.app.Engines.All() {
		if engine.IndexApplied {
			contextLogger.Debug("Index already applied, skipping", "engine", engine.ID)
			continue
		}

		if err := pacer.WaitForRollout(ctx, engine.ID); err != nil {
			return err
		}

		applied, err := o.applyIndex(ctx, engine)
		if err != nil {
			return err
		}
		if applied {
			pacer.InstanceStarted(engine.ID)
		} else {
			o.recordFailure(&SoftFailure{
				Stage:       StageApplyIndex,
				HostID:      engine.HostID,
				ComponentID: engine.ID,
				Message:     engine.FailureMessage(),
			})
		}
	}

	return nil
}

// ApplyIndexOnHosts applies the distributed index to every engine of
// the passed hosts. It is used to test a new index on a few hosts
// before the whole cluster: the result is false if the index could
// not be applied to any of them
func (o *Orchestrator) ApplyIndexOnHosts(ctx context.Context, hostIDs []string) (bool, error) {
	contextLogger := log.FromContext(ctx)

	result := true
	for _, hostID := range hostIDs {
		engines := o.app.Engines.FindAll(hostID)
		if len(engines) == 0 {
			contextLogger.Warning("No engine found on host, skipping", "hostID", hostID)
			continue
		}

		for _, engine := range engines {
			applied, err := o.applyIndex(ctx, engine)
			if err != nil {
				return false, err
			}
			result = result && applied
		}
	}

	return result, nil
}

func (o *Orchestrator) applyIndex(ctx context.Context, engine *component.Component) (bool, error) {
	contextLogger := log.FromContext(ctx).WithValues("engine", engine.ID)

	contextLogger.Info("Applying index", "address", engine.String())
	applied, err := engine.ApplyIndex(ctx)
	if err != nil {
		return false, err
	}
	o.observer.EngineApplied(StageApplyIndex, engine.ID, applied)

	if applied {
		contextLogger.Info("Index applied")
	} else {
		contextLogger.Error(errors.New(engine.FailureMessage()), "Index could not be applied")
	}
	return applied, nil
}

// CleanLocalIndexDistributionDir empties the index distribution
// directory of every engine host
func (o *Orchestrator) CleanLocalIndexDistributionDir(ctx context.Context) error {
	return o.cleanHosts(ctx, StageCleanIndexDistribution, func(engine *component.Component) string {
		return engine.IndexDistributionDir
	})
}

// CleanLocalUpdatesDir empties the partial updates directory of every
// engine host
func (o *Orchestrator) CleanLocalUpdatesDir(ctx context.Context) error {
	return o.cleanHosts(ctx, StageCleanUpdates, func(engine *component.Component) string {
		return engine.UpdateDir
	})
}

func (o *Orchestrator) cleanHosts(
	ctx context.Context,
	stage Stage,
	dir func(engine *component.Component) string,
) error {
	tokens := make([]*component.Token, 0, len(o.hostEngines))
	for _, engine := range o.hostEngines {
		token, err := engine.StartCleanDir(ctx, dir(engine))
		if err != nil {
			return err
		}
		tokens = append(tokens, token)
	}

	return o.WaitComplete(ctx, stage, tokens)
}
