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

// Package update implements the commands running the updates of an
// application
package update

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/pipeline"
)

// NewBaselineCmd creates the "baseline" subcommand
func NewBaselineCmd() *cobra.Command {
	var (
		apply   bool
		forgeID string
	)

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Rebuild the index from the full data feed",
		Long: `Run the baseline forge and the indexer, distribute the new index to the
engines and test it on the test hosts. Unless --apply=false is passed the
index is then applied to the whole cluster, one engine at a time.`,
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDUpdate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := pipeline.ModeBaseline
			if !apply {
				mode = pipeline.ModeBaselineWithoutApply
			}
			return Run(cmd.Context(), mode, forgeID)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", true, "apply the new index to the whole cluster")
	cmd.Flags().StringVar(&forgeID, "forge", "", "the forge to run, overriding the configured baseline forge")
	return cmd
}

// NewPartialCmd creates the "partial" subcommand
func NewPartialCmd() *cobra.Command {
	var forgeID string

	cmd := &cobra.Command{
		Use:     "partial",
		Short:   "Apply the pending partial updates",
		Long:    `Run the partial forge, distribute the update it produced and apply it to every engine.`,
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDUpdate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), pipeline.ModePartial, forgeID)
		},
	}

	cmd.Flags().StringVar(&forgeID, "forge", "", "the forge to run, overriding the configured partial forge")
	return cmd
}

// NewApplyIndexCmd creates the "apply-index" subcommand
func NewApplyIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "apply-index",
		Short:   "Apply the index already distributed to the engines",
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDUpdate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), pipeline.ModeApplyIndex, "")
		},
	}
}

// NewRollbackIndexCmd creates the "rollback-index" subcommand
func NewRollbackIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-index",
		Short: "Restore the previous index and apply it to the whole cluster",
		Long: `Restore the most recent backup of the indexer output, distribute it to
the engines and apply it to the whole cluster.`,
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDUpdate,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), pipeline.ModeRollbackIndex, "")
		},
	}
}

// Run runs an update of the configured application
func Run(ctx context.Context, mode pipeline.Mode, forgeID string) error {
	config := cli.Configuration
	return run(ctx, config, cli.NewRemote(config), mode, forgeID)
}
