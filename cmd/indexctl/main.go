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

/*
The indexctl command rolls out the baseline and the partial updates of a
search application through its application controller.
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/cmd/lock"
	"github.com/indexctl/indexctl/internal/cmd/schedule"
	"github.com/indexctl/indexctl/internal/cmd/status"
	"github.com/indexctl/indexctl/internal/cmd/update"
	"github.com/indexctl/indexctl/internal/cmd/versions"
)

func main() {
	flags := &cli.Flags{}

	cmd := &cobra.Command{
		Use:          "indexctl [cmd]",
		Short:        "Roll out the index updates of a search application",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.Configure(cmd)
		},
	}

	flags.AddFlags(cmd.PersistentFlags())

	cmd.AddGroup(
		&cobra.Group{ID: cli.GroupIDUpdate, Title: "Update commands:"},
		&cobra.Group{ID: cli.GroupIDAdmin, Title: "Administrative commands:"},
	)

	cmd.AddCommand(update.NewBaselineCmd())
	cmd.AddCommand(update.NewPartialCmd())
	cmd.AddCommand(update.NewApplyIndexCmd())
	cmd.AddCommand(update.NewRollbackIndexCmd())
	cmd.AddCommand(schedule.NewCmd())
	cmd.AddCommand(lock.NewCmd())
	cmd.AddCommand(status.NewCmd())
	cmd.AddCommand(versions.NewCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
