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

// Package application contains the model of an application: its hosts
// and its components, loaded from the application controller or from a
// definition file
package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/indexctl/indexctl/internal/component"
)

// Host is a machine of the application
type Host struct {
	// ID is the host id, unique in the application
	ID string

	// HostName is the network name of the host
	HostName string

	// Port is the port of the agent running on the host
	Port int
}

// Hosts is the registry of the hosts of an application, by id
type Hosts struct {
	items []*Host
	byID  map[string]*Host
}

// NewHosts creates an empty host registry
func NewHosts() *Hosts {
	return &Hosts{byID: make(map[string]*Host)}
}

// Add adds a host, refusing duplicate ids
func (h *Hosts) Add(host *Host) error {
	if _, ok := h.byID[host.ID]; ok {
		return fmt.Errorf("duplicate host id %q", host.ID)
	}
	h.items = append(h.items, host)
	h.byID[host.ID] = host
	return nil
}

// Get gets a host by id, nil when not found
func (h *Hosts) Get(id string) *Host {
	return h.byID[id]
}

// All returns the hosts in definition order
func (h *Hosts) All() []*Host {
	return h.items
}

// Len is the number of hosts
func (h *Hosts) Len() int {
	return len(h.items)
}

// Components is a collection of components keyed by component id,
// keeping the definition order
type Components struct {
	items []*component.Component
	byID  map[string]*component.Component
}

// NewComponents creates an empty collection
func NewComponents() *Components {
	return &Components{byID: make(map[string]*component.Component)}
}

// Add adds a component, refusing duplicate ids
func (c *Components) Add(item *component.Component) error {
	if _, ok := c.byID[item.ID]; ok {
		return fmt.Errorf("duplicate component id %q", item.ID)
	}
	c.items = append(c.items, item)
	c.byID[item.ID] = item
	return nil
}

// Get gets a component by id, nil when not found
func (c *Components) Get(id string) *component.Component {
	return c.byID[id]
}

// FindOne gets the first component running on a host, nil if there's none
func (c *Components) FindOne(hostID string) *component.Component {
	item, _ := funk.Find(c.items, onHost(hostID)).(*component.Component)
	return item
}

// FindAll gets every component running on a host
func (c *Components) FindAll(hostID string) []*component.Component {
	return funk.Filter(c.items, onHost(hostID)).([]*component.Component)
}

func onHost(hostID string) func(*component.Component) bool {
	return func(item *component.Component) bool {
		return item.HostID == hostID
	}
}

// All returns the components in definition order
func (c *Components) All() []*component.Component {
	return c.items
}

// IDs returns the sorted component ids
func (c *Components) IDs() []string {
	result := funk.Keys(c.byID).([]string)
	sort.Strings(result)
	return result
}

// Len is the number of components
func (c *Components) Len() int {
	return len(c.items)
}

// Application is an application loaded for the current run. The
// component list never changes, only the runtime status of the
// components does
type Application struct {
	// ID is the application id
	ID string

	// ControllerHost and ControllerPort are where the application
	// controller listens
	ControllerHost string
	ControllerPort int

	Hosts     *Hosts
	Forges    *Components
	Indexer   *component.Component
	Engines   *Components
	LogServer *component.Component

	// Remote are the handles shared by the components
	Remote *component.Remote
}

// Describe returns a human readable summary of the application
func (app *Application) Describe() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "'%s' application configuration\n", app.ID)
	fmt.Fprintf(&sb, "Application controller %s:%d\n", app.ControllerHost, app.ControllerPort)
	sb.WriteString("Hosts:\n")
	for _, host := range app.Hosts.All() {
		fmt.Fprintf(&sb, "  %s on %s\n", host.ID, host.HostName)
	}
	sb.WriteString("Components:\n")
	sb.WriteString("Forges:\n")
	for _, forge := range app.Forges.All() {
		fmt.Fprintf(&sb, "   %s on %s\n", forge.ID, forge.HostID)
	}
	sb.WriteString("Indexer:\n")
	if app.Indexer != nil {
		fmt.Fprintf(&sb, "   %s on %s\n", app.Indexer.ID, app.Indexer.HostID)
	}
	sb.WriteString("Engines:\n")
	for _, engine := range app.Engines.All() {
		fmt.Fprintf(&sb, "   %s on %s:%d\n", engine.ID, engine.HostName, engine.Port)
	}
	sb.WriteString("Log server:\n")
	if app.LogServer != nil {
		fmt.Fprintf(&sb, "   %s on %s:%d\n", app.LogServer.ID, app.LogServer.HostName, app.LogServer.Port)
	}

	return sb.String()
}
