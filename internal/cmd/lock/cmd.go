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

// Package lock implements the commands inspecting and changing the
// locks of an application
package lock

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/application"
	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/configuration"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/pkg/controlservice"
)

// NewCmd creates the "locks" subcommand
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locks",
		Short:   "Inspect and change the locks of the application",
		GroupID: cli.GroupIDAdmin,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newReleaseCmd())
	cmd.AddCommand(newReleaseAllCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the locks held",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			manager, err := newManager(cmd.Context(), cli.Configuration, nil)
			if err != nil {
				return err
			}
			return List(cmd.Context(), manager, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", cli.OutputFormatText, "Output format. One of text|json|yaml")
	return cmd
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [lock]",
		Short: "Acquire a lock, failing if it is already held",
		Args:  cli.RequiresArguments(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd.Context(), cli.Configuration, nil)
			if err != nil {
				return err
			}
			return Set(cmd.Context(), manager, args[0], cmd.OutOrStdout())
		},
	}
}

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release [lock]",
		Short: "Release a lock",
		Args:  cli.RequiresArguments(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd.Context(), cli.Configuration, nil)
			if err != nil {
				return err
			}
			return Release(cmd.Context(), manager, args[0], cmd.OutOrStdout())
		},
	}
}

func newReleaseAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release-all",
		Short: "Release every lock of the application",
		Long: `Release every lock of the application. This is needed when an update
was killed without being able to clean up after itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := newManager(cmd.Context(), cli.Configuration, nil)
			if err != nil {
				return err
			}
			return ReleaseAll(cmd.Context(), manager, cmd.OutOrStdout())
		},
	}
}

// newManager creates the lock manager of the configured application,
// once checked the application is provisioned on the controller.
// The controller built from the configuration is used when nil
func newManager(
	ctx context.Context,
	config *configuration.Data,
	controller controlservice.Interface,
) (*locks.Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if controller == nil {
		controller = cli.NewRemote(config).Controller
	}

	defined, err := application.IsDefined(ctx, controller, config.ApplicationName)
	if err != nil {
		return nil, err
	}
	if !defined {
		return nil, application.ErrNotDefined
	}
	return locks.NewManager(controller, config.ApplicationName), nil
}
