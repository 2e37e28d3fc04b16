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

package status

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/logrusorgru/aurora/v4"

	"github.com/indexctl/indexctl/internal/application"
	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/pkg/controlservice"
)

// ApplicationStatus is the status of an application
type ApplicationStatus struct {
	Application string            `json:"application"`
	Controller  string            `json:"controller"`
	Locks       []string          `json:"locks"`
	Components  []ComponentStatus `json:"components"`
}

// ComponentStatus is the status of a single component
type ComponentStatus struct {
	ID             string               `json:"id"`
	Kind           component.Kind       `json:"kind"`
	HostID         string               `json:"hostID"`
	Address        string               `json:"address,omitempty"`
	State          controlservice.State `json:"state"`
	FailureMessage string               `json:"failureMessage,omitempty"`

	// Alive is set when the service components were pinged
	Alive *bool `json:"alive,omitempty"`
}

// Gather collects the status of every component and the locks held.
// Nothing is changed on the remote side
func Gather(
	ctx context.Context,
	app *application.Application,
	manager *locks.Manager,
	ping bool,
) (*ApplicationStatus, error) {
	held, err := manager.ListLocks(ctx)
	if err != nil {
		return nil, err
	}

	report := &ApplicationStatus{
		Application: app.ID,
		Controller:  fmt.Sprintf("%s:%d", app.ControllerHost, app.ControllerPort),
		Locks:       held,
	}

	for _, item := range components(app) {
		status, err := item.GetStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("while getting the status of %s: %w", item.ID, err)
		}

		componentStatus := ComponentStatus{
			ID:             item.ID,
			Kind:           item.Kind,
			HostID:         item.HostID,
			State:          status.State,
			FailureMessage: status.FailureMessage,
		}
		if item.Kind.Capability() == component.CapabilityService {
			componentStatus.Address = item.HostName + ":" + strconv.Itoa(item.Port)
			if ping {
				alive := item.IsAlive(ctx)
				componentStatus.Alive = &alive
			}
		}
		report.Components = append(report.Components, componentStatus)
	}

	return report, nil
}

// components lists the components in the order they take part in an update
func components(app *application.Application) []*component.Component {
	result := append([]*component.Component{}, app.Forges.All()...)
	if app.Indexer != nil {
		result = append(result, app.Indexer)
	}
	result = append(result, app.Engines.All()...)
	if app.LogServer != nil {
		result = append(result, app.LogServer)
	}
	return result
}

// PrintText prints the report in a human-readable way
func (r *ApplicationStatus) PrintText(writer io.Writer) {
	summary := cli.NewTable(writer)
	summary.AddLine("Application:", r.Application)
	summary.AddLine("Controller:", r.Controller)
	if len(r.Locks) == 0 {
		summary.AddLine("Locks:", aurora.Green("none"))
	} else {
		summary.AddLine("Locks:", aurora.Yellow(fmt.Sprint(r.Locks)))
	}
	summary.Print()

	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, aurora.Green("Components status"))

	status := cli.NewTable(writer)
	status.AddHeader("Component", "Kind", "Host", "Address", "State", "Alive", "Failure")
	for _, item := range r.Components {
		status.AddLine(
			item.ID,
			item.Kind,
			item.HostID,
			item.Address,
			cli.ColorizeState(item.State),
			aliveString(item.Alive),
			item.FailureMessage,
		)
	}
	status.Print()
}

func aliveString(alive *bool) string {
	switch {
	case alive == nil:
		return "-"
	case *alive:
		return aurora.Green("yes").String()
	default:
		return aurora.Red("no").String()
	}
}
