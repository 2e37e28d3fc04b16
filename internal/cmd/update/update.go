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

package update

import (
	"context"

	"github.com/indexctl/indexctl/internal/cluster"
	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/internal/configuration"
	"github.com/indexctl/indexctl/internal/notify"
	"github.com/indexctl/indexctl/internal/pipeline"
	"github.com/indexctl/indexctl/pkg/management/log"
)

func run(
	ctx context.Context,
	config *configuration.Data,
	remote *component.Remote,
	mode pipeline.Mode,
	forgeID string,
) error {
	app, err := cli.LoadApplication(ctx, config, remote)
	if err != nil {
		return err
	}

	options, err := newOptions(config, mode, forgeID)
	if err != nil {
		return err
	}

	contextLogger := log.FromContext(ctx).WithValues("application", app.ID)
	return pipeline.New(app, options).Run(log.IntoContext(ctx, contextLogger))
}

// newOptions builds the settings of a run from the configuration
func newOptions(config *configuration.Data, mode pipeline.Mode, forgeID string) (pipeline.Options, error) {
	notifier, err := notify.FromConfiguration(config)
	if err != nil {
		return pipeline.Options{}, err
	}

	policy := cluster.PolicyWaitForAll
	if config.FailFast {
		policy = cluster.PolicyFailFast
	}

	if forgeID == "" {
		switch mode {
		case pipeline.ModeBaseline, pipeline.ModeBaselineWithoutApply:
			forgeID = config.GetForgeID(false)
		case pipeline.ModePartial:
			forgeID = config.GetForgeID(true)
		}
	}

	return pipeline.Options{
		Mode:                      mode,
		ForgeID:                   forgeID,
		IndexTestHostIDs:          config.IndexTestHostIDs,
		PauseBetweenEngineUpdates: config.PauseBetweenEngineUpdates,
		Policy:                    policy,
		PollInterval:              config.PollInterval,
		MetricsTextfile:           config.MetricsTextfile,
		Notifier:                  notifier,
		Session:                   cli.Session,
	}, nil
}
