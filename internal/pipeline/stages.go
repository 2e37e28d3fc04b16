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
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// runMode runs the stages of the configured mode, in order
func (p *Pipeline) runMode(ctx context.Context) error {
	var stages []func(context.Context) error

	switch p.options.Mode {
	case ModeBaseline:
		stages = []func(context.Context) error{
			p.forgeStage(false), p.indexerStage, p.distributeIndexStages(true), p.applyIndexStages,
		}
	case ModeBaselineWithoutApply:
		stages = []func(context.Context) error{
			p.forgeStage(false), p.indexerStage, p.distributeIndexStages(true),
		}
	case ModePartial:
		stages = []func(context.Context) error{
			p.forgeStage(true), p.partialUpdateStages,
		}
	case ModeApplyIndex:
		stages = []func(context.Context) error{
			p.applyIndexStages,
		}
	case ModeRollbackIndex:
		stages = []func(context.Context) error{
			p.rollbackIndexStage, p.distributeIndexStages(false), p.applyIndexStages,
		}
	}

	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// startLogServer starts the log server, if there is one and it is not
// running, without waiting for it
func (p *Pipeline) startLogServer(ctx context.Context) error {
	logServer := p.app.LogServer
	if logServer == nil {
		return nil
	}

	active, err := logServer.IsActive(ctx)
	if err != nil || active {
		return err
	}

	log.FromContext(ctx).Info("Starting log server", "logServer", logServer.String())
	return logServer.Start(ctx, false)
}

func (p *Pipeline) forgeStage(partial bool) func(context.Context) error {
	return func(ctx context.Context) error {
		return p.runStage(ctx, StageForge, func(ctx context.Context) error {
			forge := p.forge()
			contextLogger := log.FromContext(ctx).WithValues("forge", forge.ID)

			archived, err := forge.ArchiveLog(ctx, true)
			if err != nil {
				return err
			}
			if !archived {
				contextLogger.Warning("Forge log could not be archived", "reason", forge.FailureMessage())
			}

			if !partial {
				cleaned, err := forge.CleanDirs(ctx)
				if err != nil {
					return err
				}
				if !cleaned {
					contextLogger.Warning("Forge output directory could not be cleaned", "reason", forge.FailureMessage())
				}
			}

			contextLogger.Info("Running forge")
			return runBatch(ctx, forge)
		})
	}
}

func (p *Pipeline) indexerStage(ctx context.Context) error {
	return p.runStage(ctx, StageIndexer, func(ctx context.Context) error {
		indexer := p.app.Indexer
		contextLogger := log.FromContext(ctx).WithValues("indexer", indexer.ID)

		archived, err := indexer.ArchiveIndex(ctx)
		if err != nil {
			return err
		}
		if !archived {
			contextLogger.Warning("Previous index could not be archived", "reason", indexer.FailureMessage())
		}

		if archived, err = indexer.ArchiveLog(ctx, true); err != nil {
			return err
		}
		if !archived {
			contextLogger.Warning("Indexer log could not be archived", "reason", indexer.FailureMessage())
		}

		contextLogger.Info("Running indexer")
		return runBatch(ctx, indexer)
	})
}

func runBatch(ctx context.Context, batch *component.Component) error {
	succeeded, err := batch.Run(ctx)
	if err != nil {
		return err
	}
	if !succeeded {
		return fmt.Errorf("%w: %s: %s", ErrBatchFailed, batch.ID, batch.FailureMessage())
	}
	log.FromContext(ctx).Info("Batch component completed", "component", batch.ID)
	return nil
}

// distributeIndexStages cleans the engine hosts and distributes the
// index built by the indexer. When test is true the index is then
// applied to the test hosts, a failure stopping the run
func (p *Pipeline) distributeIndexStages(test bool) func(context.Context) error {
	return func(ctx context.Context) error {
		err := p.runStage(ctx, StageClean, func(ctx context.Context) error {
			if err := p.orchestrator.CleanLocalIndexDistributionDir(ctx); err != nil {
				return err
			}
			return p.orchestrator.CleanLocalUpdatesDir(ctx)
		})
		if err != nil {
			return err
		}

		if err := p.runStage(ctx, StageDistributeIndex, p.orchestrator.DistributeIndex); err != nil {
			return err
		}

		if !test || len(p.options.IndexTestHostIDs) == 0 {
			return nil
		}
		return p.runStage(ctx, StageTestIndex, func(ctx context.Context) error {
			log.FromContext(ctx).Info("Testing the new index", "hostIDs", p.options.IndexTestHostIDs)
			applied, err := p.orchestrator.ApplyIndexOnHosts(ctx, p.options.IndexTestHostIDs)
			if err != nil {
				return err
			}
			if !applied {
				return ErrIndexTestFailed
			}
			return nil
		})
	}
}

// applyIndexStages applies the distributed index to the whole cluster
// and rolls the log of the log server
func (p *Pipeline) applyIndexStages(ctx context.Context) error {
	err := p.runStage(ctx, StageApplyIndex, func(ctx context.Context) error {
		return p.orchestrator.ApplyIndex(ctx, p.options.PauseBetweenEngineUpdates)
	})
	if err != nil {
		return err
	}

	return p.runStage(ctx, StageRollLog, p.rollLogServerLog)
}

// rollLogServerLog rolls the log of the log server when it is running.
// A failure doesn't stop the run
func (p *Pipeline) rollLogServerLog(ctx context.Context) error {
	logServer := p.app.LogServer
	if logServer == nil {
		return nil
	}

	active, err := logServer.IsActive(ctx)
	if err != nil || !active {
		return err
	}

	rolled, err := logServer.RollLog(ctx)
	if err != nil {
		return err
	}
	if !rolled {
		p.softFailures = multierr.Append(p.softFailures, fmt.Errorf("%s: rolling the log of %s failed", StageRollLog, logServer))
	}
	return nil
}

func (p *Pipeline) partialUpdateStages(ctx context.Context) error {
	err := p.runStage(ctx, StageDistributeUpdate, func(ctx context.Context) error {
		return p.orchestrator.DistributeUpdate(ctx, p.forge())
	})
	if err != nil {
		return err
	}

	return p.runStage(ctx, StageApplyUpdate, p.orchestrator.ApplyUpdate)
}

func (p *Pipeline) rollbackIndexStage(ctx context.Context) error {
	return p.runStage(ctx, StageRollbackIndex, func(ctx context.Context) error {
		indexer := p.app.Indexer
		log.FromContext(ctx).Info("Restoring the previous index", "indexer", indexer.ID)

		restored, err := indexer.RollbackIndex(ctx)
		if err != nil {
			return err
		}
		if !restored {
			return fmt.Errorf("%w: %s", ErrRollbackFailed, indexer.FailureMessage())
		}
		return nil
	})
}
