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

// Package status implements the command showing the status of an application
package status

import (
	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/locks"
)

// NewCmd creates the "status" subcommand
func NewCmd() *cobra.Command {
	var (
		output string
		ping   bool
	)

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Get the status of the components and the locks of the application",
		Args:    cobra.NoArgs,
		GroupID: cli.GroupIDAdmin,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			if err := cli.ConfigureColor(cmd); err != nil {
				return err
			}

			config := cli.Configuration
			app, err := cli.LoadApplication(ctx, config, cli.NewRemote(config))
			if err != nil {
				return err
			}

			report, err := Gather(ctx, app, locks.NewManager(app.Remote.Controller, app.ID), ping)
			if err != nil {
				return err
			}
			if format == cli.OutputFormatText {
				report.PrintText(cmd.OutOrStdout())
				return nil
			}
			return cli.Print(report, format, cmd.OutOrStdout())
		},
	}

	statusCmd.Flags().StringVarP(
		&output, "output", "o", cli.OutputFormatText, "Output format. One of text|json|yaml")
	statusCmd.Flags().BoolVar(
		&ping, "ping", false, "Check also whether the engines and the log server answer to requests")
	cli.AddColorControlFlags(statusCmd)

	return statusCmd
}
