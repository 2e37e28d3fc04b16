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

// Package schedule implements the command running the updates
// periodically
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/cmd/update"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/internal/pipeline"
)

// ErrMissingSchedule is returned when neither the flag nor the
// configuration set the schedule
var ErrMissingSchedule = errors.New("no schedule configured")

// NewCmd creates the "schedule" subcommand
func NewCmd() *cobra.Command {
	var (
		spec string
		mode string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the updates periodically",
		Long: `Run an update every time the cron expression matches, until interrupted.
A tick is skipped when another update holds the update lock or when the
previous run is still in progress.`,
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDUpdate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := cli.Configuration
			if spec == "" {
				spec = config.Schedule
			}
			if spec == "" {
				return ErrMissingSchedule
			}

			runMode := pipeline.Mode(mode)
			switch runMode {
			case pipeline.ModeBaseline, pipeline.ModeBaselineWithoutApply, pipeline.ModePartial:
			default:
				return fmt.Errorf("mode %q can't be scheduled", mode)
			}

			remote := cli.NewRemote(config)
			app, err := cli.LoadApplication(ctx, config, remote)
			if err != nil {
				return err
			}

			scheduler, err := New(spec, locks.NewManager(remote.Controller, app.ID), func(ctx context.Context) error {
				return update.Run(ctx, runMode, "")
			})
			if err != nil {
				return err
			}
			return scheduler.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "",
		"the five fields cron expression, overriding the configured schedule")
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.ModePartial),
		"the update to run, one of baseline, baseline-without-apply and partial")
	return cmd
}
