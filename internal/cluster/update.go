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
	"fmt"
	"path"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// DistributeUpdate stamps the partial update produced by the forge and
// copies it into the update directory of every engine host, in
// parallel, waiting for every copy to complete. Hosts sharing the
// network name of the forge host already have the file and are skipped
func (o *Orchestrator) DistributeUpdate(ctx context.Context, forge *component.Component) error {
	contextLogger := log.FromContext(ctx)

	fileName, err := forge.StampPartialUpdate(ctx)
	if err != nil {
		return err
	}
	source := path.Join(forge.OutputDir, fileName)

	forgeHostName := ""
	if host := o.app.Hosts.Get(forge.HostID); host != nil {
		forgeHostName = host.HostName
	}

	tokens := make([]*component.Token, 0, len(o.hostEngines))
	for _, engine := range o.hostEngines {
		if engine.HostName == forgeHostName {
			contextLogger.Debug("Engine host colocated with the forge, skipping",
				"hostID", engine.HostID, "hostName", engine.HostName)
			continue
		}

		contextLogger.Info("Distributing partial update",
			"hostID", engine.HostID, "file", source, "to", engine.UpdateDir)
		token, err := engine.CopyFile(ctx, forge.HostID, source, engine.UpdateDir)
		if err != nil {
			return err
		}
		tokens = append(tokens, token)
	}

	return o.WaitComplete(ctx, StageDistributeUpdate, tokens)
}

// ApplyUpdate asks every engine, one at a time, to apply the partial
// updates. Unreachable engines are logged and skipped, while an engine
// refusing the update stops the whole operation
func (o *Orchestrator) ApplyUpdate(ctx context.Context) error {
	for _, engine := range o.app.Engines.All() {
		contextLogger := log.FromContext(ctx).WithValues("engine", engine.ID)
		if engine.UpdateApplied {
			contextLogger.Debug("Update already applied, skipping")
			continue
		}

		if !engine.IsAlive(ctx) {
			contextLogger.Warning("Engine unreachable, not applying updates", "address", engine.String())
			o.recordFailure(&SoftFailure{
				Stage:       StageApplyUpdate,
				HostID:      engine.HostID,
				ComponentID: engine.ID,
				Message:     "unreachable",
			})
			o.observer.EngineApplied(StageApplyUpdate, engine.ID, false)
			continue
		}

		contextLogger.Info("Applying partial updates", "address", engine.String())
		applied, err := engine.ApplyUpdate(ctx)
		if err != nil {
			return err
		}
		o.observer.EngineApplied(StageApplyUpdate, engine.ID, applied)
		if !applied {
			return fmt.Errorf("%w by %s", ErrUpdateRejected, engine)
		}
		contextLogger.Info("Partial updates applied")
	}

	return nil
}
