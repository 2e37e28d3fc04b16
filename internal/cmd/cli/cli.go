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

// Package cli contains the behaviors shared by the indexctl subcommands
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/indexctl/indexctl/internal/application"
	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/internal/configuration"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/fileutils"
	"github.com/indexctl/indexctl/pkg/instanceadmin"
	"github.com/indexctl/indexctl/pkg/management/log"
)

const (
	// GroupIDUpdate represents an ID to group up the update commands
	GroupIDUpdate = "update"

	// GroupIDAdmin represents an ID to group up the administrative commands
	GroupIDAdmin = "admin"
)

var (
	// Configuration is the configuration used by the subcommands, once
	// the configuration file and the flags have been read
	Configuration = configuration.Current

	// Session records the log of the current run, to be attached to
	// the final notification
	Session = log.NewSession(log.DefaultLevel)
)

// Flags are the global flags of indexctl
type Flags struct {
	ConfigFile      string
	ControllerHost  string
	ControllerPort  int
	ApplicationName string
	ApplicationFile string

	Log log.Flags
}

// AddFlags binds the global flags to a given flagset
func (f *Flags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.ConfigFile, "config", "",
		"the YAML configuration file, whose keys are the names of the environment variables. "+
			"Defaults to "+configuration.DefaultConfigFile+" when it exists")
	flags.StringVar(&f.ControllerHost, "controller", "",
		"the host name of the application controller")
	flags.IntVar(&f.ControllerPort, "port", 0,
		"the port of the application controller")
	flags.StringVar(&f.ApplicationName, "app", "",
		"the id of the application to be updated")
	flags.StringVar(&f.ApplicationFile, "application-file", "",
		"load the application definition from this file instead of the controller")
	f.Log.AddFlags(flags)
}

// Configure installs the logger and builds the configuration reading,
// in order, the environment, the configuration file and the flags
func (f *Flags) Configure(cmd *cobra.Command) error {
	Session = log.NewSession(f.Log.Level())
	f.Log.ConfigureLogging(Session.Core())

	return f.apply(cmd.Flags(), Configuration)
}

func (f *Flags) apply(flags *pflag.FlagSet, config *configuration.Data) error {
	configFile := f.ConfigFile
	if configFile == "" {
		exists, err := fileutils.FileExists(configuration.DefaultConfigFile)
		if err != nil {
			return err
		}
		if exists {
			configFile = configuration.DefaultConfigFile
		}
	}
	if configFile != "" {
		if err := config.ReadConfigFile(configFile); err != nil {
			return err
		}
	}

	if flags.Changed("controller") {
		config.ControllerHost = f.ControllerHost
	}
	if flags.Changed("port") {
		config.ControllerPort = f.ControllerPort
	}
	if flags.Changed("app") {
		config.ApplicationName = f.ApplicationName
	}
	if flags.Changed("application-file") {
		config.ApplicationFile = f.ApplicationFile
	}
	return nil
}

// NewRemote creates the handles used to reach the application controller
// and the service components
func NewRemote(config *configuration.Data) *component.Remote {
	return &component.Remote{
		Controller:      controlservice.NewClient(config.GetControllerHost(), config.ControllerPort),
		Admin:           instanceadmin.NewClient(),
		CleanDirCommand: config.CleanDirCommand,
	}
}

// LoadApplication validates the configuration and loads the application,
// from the definition file when configured or from the controller.
// Nothing is changed on the remote side
func LoadApplication(
	ctx context.Context,
	config *configuration.Data,
	remote *component.Remote,
) (*application.Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := application.Options{
		ControllerHost: config.GetControllerHost(),
		ControllerPort: config.ControllerPort,
		PollInterval:   config.PollInterval,
	}
	if config.ApplicationFile != "" {
		app, err := application.LoadFile(ctx, config.ApplicationFile, remote, options)
		if err != nil {
			return nil, err
		}
		if app.ID != config.ApplicationName {
			return nil, fmt.Errorf("the definition file %s describes the application %q instead of %q",
				config.ApplicationFile, app.ID, config.ApplicationName)
		}
		return app, nil
	}
	return application.Load(ctx, config.ApplicationName, remote, options)
}

// RequiresArguments will show the help message in case no argument has been provided
func RequiresArguments(nArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < nArgs {
			_ = cmd.Help()
			os.Exit(0)
		}
		return nil
	}
}
