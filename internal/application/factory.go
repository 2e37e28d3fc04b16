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

package application

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/thoas/go-funk"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/controlservice"
)

// ErrMissingProperty is returned when a required custom property of a
// component is not defined
var ErrMissingProperty = errors.New("missing component property")

// Options are the settings applied to every component built from a
// definition
type Options struct {
	ControllerHost string
	ControllerPort int

	// PollInterval overrides the default poll interval of the components
	PollInterval time.Duration
}

// FromDefinition builds an application from its definition, resolving
// the component directories against their working directories
func FromDefinition(
	definition *controlservice.ApplicationDefinition,
	remote *component.Remote,
	options Options,
) (*Application, error) {
	app := &Application{
		ID:             definition.ApplicationID,
		ControllerHost: options.ControllerHost,
		ControllerPort: options.ControllerPort,
		Hosts:          NewHosts(),
		Forges:         NewComponents(),
		Engines:        NewComponents(),
		Remote:         remote,
	}

	for _, host := range definition.Hosts {
		if err := app.Hosts.Add(&Host{ID: host.HostID, HostName: host.Hostname, Port: host.Port}); err != nil {
			return nil, err
		}
	}

	seen := make([]string, 0, len(definition.Components))
	for i := range definition.Components {
		def := &definition.Components[i]
		if funk.ContainsString(seen, def.ComponentID) {
			return nil, fmt.Errorf("duplicate component id %q", def.ComponentID)
		}
		seen = append(seen, def.ComponentID)

		host := app.Hosts.Get(def.HostID)
		if host == nil {
			return nil, fmt.Errorf("component %s refers to the unknown host %q", def.ComponentID, def.HostID)
		}

		item, err := newComponent(app.ID, def, host, remote)
		if err != nil {
			return nil, err
		}
		if options.PollInterval > 0 {
			item.PollInterval = options.PollInterval
		}

		switch item.Kind {
		case component.KindForge:
			err = app.Forges.Add(item)
		case component.KindIndexer:
			if app.Indexer != nil {
				err = fmt.Errorf("more than one indexer defined: %s and %s", app.Indexer.ID, item.ID)
			}
			app.Indexer = item
		case component.KindEngine:
			err = app.Engines.Add(item)
		case component.KindLogServer:
			if app.LogServer != nil {
				err = fmt.Errorf("more than one log server defined: %s and %s", app.LogServer.ID, item.ID)
			}
			app.LogServer = item
		}
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

func newComponent(
	appID string,
	def *controlservice.ComponentDefinition,
	host *Host,
	remote *component.Remote,
) (*component.Component, error) {
	var kind component.Kind
	switch def.Type {
	case controlservice.ComponentTypeForge:
		kind = component.KindForge
	case controlservice.ComponentTypeIndexer:
		kind = component.KindIndexer
	case controlservice.ComponentTypeEngine:
		kind = component.KindEngine
	case controlservice.ComponentTypeLogServer:
		kind = component.KindLogServer
	default:
		return nil, fmt.Errorf("component %s has the unknown type %q", def.ComponentID, def.Type)
	}

	item := component.New(kind, def.ComponentID, appID, def.HostID, remote)
	item.WorkingDir = normalize(def.WorkingDir)
	for _, property := range def.Properties {
		item.Properties[property.Name] = property.Value
	}
	if def.LogFile != "" {
		item.LogDir = resolveRelativePath(item.WorkingDir, path.Dir(normalize(def.LogFile)))
	}

	switch kind {
	case component.KindForge:
		item.OutputDir = resolveRelativePath(item.WorkingDir, def.OutputDir)
		item.InputDir = resolveRelativePath(item.WorkingDir, def.InputDir)
		item.DataPrefix = def.OutputPrefixName

	case component.KindIndexer:
		item.OutputDir = resolveRelativePath(item.WorkingDir, removePrefixNameFromDir(def.OutputPrefix))
		item.InputDir = resolveRelativePath(item.WorkingDir, removePrefixNameFromDir(def.InputPrefix))
		item.DataPrefix = dataPrefixFromDir(def.OutputPrefix)

	case component.KindEngine:
		localIndexDir, ok := item.Properties[component.LocalIndexDirProperty]
		if !ok {
			return nil, fmt.Errorf("%w %s of engine %s",
				ErrMissingProperty, component.LocalIndexDirProperty, def.ComponentID)
		}
		item.InputDir = resolveRelativePath(item.WorkingDir, removePrefixNameFromDir(def.InputPrefix))
		item.DataPrefix = dataPrefixFromDir(def.InputPrefix)
		item.UpdateDir = resolveRelativePath(item.WorkingDir, def.UpdateDir)
		if def.UpdateLogFile != "" {
			item.UpdateLogDir = resolveRelativePath(item.WorkingDir, path.Dir(normalize(def.UpdateLogFile)))
		}
		item.IndexDistributionDir = resolveRelativePath(item.WorkingDir, localIndexDir)
		item.HostName = host.HostName
		item.Port = def.Port

	case component.KindLogServer:
		item.HostName = host.HostName
		item.Port = def.Port
	}

	return item, nil
}

// normalize uses forward slashes as path separators
func normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// resolveRelativePath resolves a component directory against its
// working directory. Paths starting with a dot or a separator are
// relative to the working directory too
func resolveRelativePath(root, relativePath string) string {
	relativePath = normalize(relativePath)
	switch {
	case strings.HasPrefix(relativePath, "."):
		relativePath = strings.TrimLeft(relativePath, ".")
	case strings.HasPrefix(relativePath, "/"):
		relativePath = strings.TrimLeft(relativePath, "/")
	}
	return path.Join(root, relativePath)
}

// removePrefixNameFromDir removes the data prefix from an input or
// output prefix, returning the directory
func removePrefixNameFromDir(dir string) string {
	dir = normalize(dir)
	if i := strings.LastIndex(dir, "/"); i > 0 {
		return dir[:i]
	}
	return dir
}

// dataPrefixFromDir extracts the data prefix from an input or output prefix
func dataPrefixFromDir(dir string) string {
	return path.Base(normalize(dir))
}
