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

// Package fake contains an in-memory application controller, scripted by
// the tests to simulate remote components and utility operations
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/pkg/controlservice"
)

// Script is the sequence of statuses reported by consecutive polls.
// The last status is repeated once the script is exhausted
type Script []controlservice.Status

// Statuses builds a script made of failure-free states
func Statuses(states ...controlservice.State) Script {
	result := make(Script, len(states))
	for i, state := range states {
		result[i] = controlservice.Status{State: state}
	}
	return result
}

// Failed builds a single-status script reporting a failure
func Failed(message string) Script {
	return Script{{State: controlservice.StateFailed, FailureMessage: message}}
}

// Call records a request received by the controller
type Call struct {
	Method      string
	AppID       string
	ComponentID string
	Token       string
	Flag        string
	Copy        *controlservice.CopyRequest
	Backup      *controlservice.BackupRequest
	Rollback    *controlservice.RollbackRequest
	Shell       *controlservice.ShellRequest
	At          time.Time
}

type scripted struct {
	script Script
	pos    int
	polls  int
}

func (s *scripted) next() controlservice.Status {
	s.polls++
	if len(s.script) == 0 {
		return controlservice.Status{State: controlservice.StateNotRunning}
	}
	result := s.script[s.pos]
	if s.pos < len(s.script)-1 {
		s.pos++
	}
	return result
}

// Controller is an in-memory implementation of controlservice.Interface.
// It is safe to use concurrently
type Controller struct {
	mu sync.Mutex

	clock        clock.PassiveClock
	applications map[string]*controlservice.ApplicationDefinition
	components   map[string]*scripted
	operations   map[string]*scripted
	flags        map[string]map[string]struct{}
	calls        []Call
	nextToken    int
	errors       map[string][]error

	// StartScript returns the statuses of a component after a start.
	// By default engines and log servers go through Starting to Running,
	// batch components run once and then stop
	StartScript func(componentID string) Script

	// StopScript returns the statuses of a component after a stop
	StopScript func(componentID string) Script

	// CopyScript returns the statuses of a copy operation
	CopyScript func(req controlservice.CopyRequest) Script

	// BackupScript returns the statuses of a backup operation
	BackupScript func(req controlservice.BackupRequest) Script

	// RollbackScript returns the statuses of a rollback operation
	RollbackScript func(req controlservice.RollbackRequest) Script

	// ShellScript returns the statuses of a shell command
	ShellScript func(req controlservice.ShellRequest) Script
}

// New creates an empty controller. When clk is nil the real clock is used
// to timestamp the calls
func New(clk clock.PassiveClock) *Controller {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Controller{
		clock:        clk,
		applications: make(map[string]*controlservice.ApplicationDefinition),
		components:   make(map[string]*scripted),
		operations:   make(map[string]*scripted),
		flags:        make(map[string]map[string]struct{}),
		errors:       make(map[string][]error),
	}
}

// AddApplication provisions an application
func (c *Controller) AddApplication(app *controlservice.ApplicationDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applications[app.ApplicationID] = app
}

// SetComponentStatus forces the statuses reported by a component
func (c *Controller) SetComponentStatus(componentID string, script Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[componentID] = &scripted{script: script}
}

// FailNext makes the next call of the passed method fail with err.
// Consecutive calls queue more failures
func (c *Controller) FailNext(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[method] = append(c.errors[method], err)
}

// Calls returns the calls received so far, optionally filtered by method
func (c *Controller) Calls(methods ...string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Call, 0, len(c.calls))
	for _, call := range c.calls {
		if len(methods) == 0 {
			result = append(result, call)
			continue
		}
		for _, method := range methods {
			if call.Method == method {
				result = append(result, call)
				break
			}
		}
	}
	return result
}

// Polls returns how many times the status of a token has been requested
func (c *Controller) Polls(token string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.operations[token]; ok {
		return op.polls
	}
	return 0
}

// Flags returns the sorted flags of an application
func (c *Controller) Flags(appID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedFlags(appID)
}

func (c *Controller) sortedFlags(appID string) []string {
	result := make([]string, 0, len(c.flags[appID]))
	for flag := range c.flags[appID] {
		result = append(result, flag)
	}
	sort.Strings(result)
	return result
}

// record must be called with the lock held. It returns the injected
// failure for the method, if any
func (c *Controller) record(call Call) error {
	call.At = c.clock.Now()
	c.calls = append(c.calls, call)

	if queue := c.errors[call.Method]; len(queue) > 0 {
		c.errors[call.Method] = queue[1:]
		return queue[0]
	}
	return nil
}

func (c *Controller) componentType(componentID string) controlservice.ComponentType {
	for _, app := range c.applications {
		for _, component := range app.Components {
			if component.ComponentID == componentID {
				return component.Type
			}
		}
	}
	return ""
}

func (c *Controller) newOperation(script Script) string {
	c.nextToken++
	token := fmt.Sprintf("token-%d", c.nextToken)
	if script == nil {
		script = Statuses(controlservice.StateNotRunning)
	}
	c.operations[token] = &scripted{script: script}
	return token
}

// ListApplicationIDs implements controlservice.Interface
func (c *Controller) ListApplicationIDs(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "ListApplicationIDs"}); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(c.applications))
	for id := range c.applications {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

// GetApplication implements controlservice.Interface
func (c *Controller) GetApplication(_ context.Context, appID string) (*controlservice.ApplicationDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "GetApplication", AppID: appID}); err != nil {
		return nil, err
	}

	app, ok := c.applications[appID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", controlservice.ErrApplicationNotFound, appID)
	}
	return app, nil
}

// GetComponentStatus implements controlservice.Interface
func (c *Controller) GetComponentStatus(_ context.Context, appID, componentID string) (controlservice.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "GetComponentStatus", AppID: appID, ComponentID: componentID}); err != nil {
		return controlservice.Status{}, err
	}

	component, ok := c.components[componentID]
	if !ok {
		return controlservice.Status{State: controlservice.StateNotRunning}, nil
	}
	return component.next(), nil
}

// StartComponent implements controlservice.Interface
func (c *Controller) StartComponent(_ context.Context, appID, componentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "StartComponent", AppID: appID, ComponentID: componentID}); err != nil {
		return err
	}

	var script Script
	switch {
	case c.StartScript != nil:
		script = c.StartScript(componentID)
	case c.componentType(componentID) == controlservice.ComponentTypeEngine,
		c.componentType(componentID) == controlservice.ComponentTypeLogServer:
		script = Statuses(controlservice.StateStarting, controlservice.StateRunning)
	default:
		script = Statuses(controlservice.StateRunning, controlservice.StateNotRunning)
	}
	c.components[componentID] = &scripted{script: script}
	return nil
}

// StopComponent implements controlservice.Interface
func (c *Controller) StopComponent(_ context.Context, appID, componentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "StopComponent", AppID: appID, ComponentID: componentID}); err != nil {
		return err
	}

	script := Statuses(controlservice.StateNotRunning)
	if c.StopScript != nil {
		script = c.StopScript(componentID)
	}
	c.components[componentID] = &scripted{script: script}
	return nil
}

// StartCopyFiles implements controlservice.Interface
func (c *Controller) StartCopyFiles(
	_ context.Context,
	appID string,
	req controlservice.CopyRequest,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var script Script
	if c.CopyScript != nil {
		script = c.CopyScript(req)
	}
	token := c.newOperation(script)
	if err := c.record(Call{Method: "StartCopyFiles", AppID: appID, Token: token, Copy: &req}); err != nil {
		delete(c.operations, token)
		return "", err
	}
	return token, nil
}

// StartBackupFiles implements controlservice.Interface
func (c *Controller) StartBackupFiles(
	_ context.Context,
	appID string,
	req controlservice.BackupRequest,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var script Script
	if c.BackupScript != nil {
		script = c.BackupScript(req)
	}
	token := c.newOperation(script)
	if err := c.record(Call{Method: "StartBackupFiles", AppID: appID, Token: token, Backup: &req}); err != nil {
		delete(c.operations, token)
		return "", err
	}
	return token, nil
}

// StartRollbackFiles implements controlservice.Interface
func (c *Controller) StartRollbackFiles(
	_ context.Context,
	appID string,
	req controlservice.RollbackRequest,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var script Script
	if c.RollbackScript != nil {
		script = c.RollbackScript(req)
	}
	token := c.newOperation(script)
	if err := c.record(Call{Method: "StartRollbackFiles", AppID: appID, Token: token, Rollback: &req}); err != nil {
		delete(c.operations, token)
		return "", err
	}
	return token, nil
}

// StartShell implements controlservice.Interface
func (c *Controller) StartShell(
	_ context.Context,
	appID string,
	req controlservice.ShellRequest,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var script Script
	if c.ShellScript != nil {
		script = c.ShellScript(req)
	}
	token := c.newOperation(script)
	if err := c.record(Call{Method: "StartShell", AppID: appID, Token: token, Shell: &req}); err != nil {
		delete(c.operations, token)
		return "", err
	}
	return token, nil
}

// GetUtilityStatus implements controlservice.Interface
func (c *Controller) GetUtilityStatus(_ context.Context, appID, token string) (controlservice.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "GetUtilityStatus", AppID: appID, Token: token}); err != nil {
		return controlservice.Status{}, err
	}

	op, ok := c.operations[token]
	if !ok {
		return controlservice.Status{}, fmt.Errorf("unknown token %s", token)
	}
	return op.next(), nil
}

// SetFlag implements controlservice.Interface
func (c *Controller) SetFlag(_ context.Context, appID, flag string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "SetFlag", AppID: appID, Flag: flag}); err != nil {
		return false, err
	}

	if c.flags[appID] == nil {
		c.flags[appID] = make(map[string]struct{})
	}
	if _, ok := c.flags[appID][flag]; ok {
		return false, nil
	}
	c.flags[appID][flag] = struct{}{}
	return true, nil
}

// RemoveFlag implements controlservice.Interface
func (c *Controller) RemoveFlag(_ context.Context, appID, flag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "RemoveFlag", AppID: appID, Flag: flag}); err != nil {
		return err
	}

	delete(c.flags[appID], flag)
	return nil
}

// RemoveAllFlags implements controlservice.Interface
func (c *Controller) RemoveAllFlags(_ context.Context, appID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "RemoveAllFlags", AppID: appID}); err != nil {
		return err
	}

	delete(c.flags, appID)
	return nil
}

// ListFlags implements controlservice.Interface
func (c *Controller) ListFlags(_ context.Context, appID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Method: "ListFlags", AppID: appID}); err != nil {
		return nil, err
	}

	return c.sortedFlags(appID), nil
}

var _ controlservice.Interface = &Controller{}
