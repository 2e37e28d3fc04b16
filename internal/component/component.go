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

// Package component contains the components of an application: the
// batch jobs producing the data (forges and the indexer) and the long
// running services (engines and the log server). Every mutating remote
// action is asynchronous and returns a Token whose status is polled
// until the operation reaches a terminal state
package component

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/pkg/concurrency"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/instanceadmin"
	"github.com/indexctl/indexctl/pkg/management/log"
)

const (
	// DefaultPollInterval is the default interval between two status polls
	DefaultPollInterval = 10 * time.Second

	// DefaultCleanDirCommand is used when the remote handles don't
	// specify a clean command. %s is replaced by the quoted directory
	DefaultCleanDirCommand = "find %s -mindepth 1 -delete"

	// NumLogBackupsProperty is the custom property with the number of
	// log backups to be kept
	NumLogBackupsProperty = "numLogBackups"

	// NumIndexBackupsProperty is the custom property with the number of
	// index backups to be kept by the indexer
	NumIndexBackupsProperty = "numIndexBackups"

	// LocalIndexDirProperty is the custom property of the engines holding
	// the directory where new indexes are distributed
	LocalIndexDirProperty = "localIndexDir"

	defaultNumBackups = 1
)

// ErrOperationNotSupported is returned when an operation is invoked on a
// component whose kind doesn't support it
var ErrOperationNotSupported = errors.New("operation not supported by this component")

// Kind is the kind of a component
type Kind string

const (
	// KindForge is the data processing batch job
	KindForge Kind = "Forge"

	// KindIndexer is the batch job building the index
	KindIndexer Kind = "Indexer"

	// KindEngine is a query serving engine instance
	KindEngine Kind = "Engine"

	// KindLogServer is the log server
	KindLogServer Kind = "LogServer"
)

// Capability tells how a component is run
type Capability string

const (
	// CapabilityBatch components run to completion
	CapabilityBatch Capability = "Batch"

	// CapabilityService components keep running and expose their own
	// host and port
	CapabilityService Capability = "Service"
)

// Capability gets the capability of the components of this kind
func (k Kind) Capability() Capability {
	switch k {
	case KindEngine, KindLogServer:
		return CapabilityService
	default:
		return CapabilityBatch
	}
}

// Remote groups the handles used by the components to act on the
// application. It is shared by every component of an application
type Remote struct {
	// Controller is the application controller
	Controller controlservice.Interface

	// Admin is the administrative surface of the service components
	Admin instanceadmin.Interface

	// Clock measures the poll intervals. The real clock is used when nil
	Clock clock.Clock

	// CleanDirCommand is the template of the command emptying a directory
	CleanDirCommand string
}

func (r *Remote) clock() clock.Clock {
	if r.Clock == nil {
		return clock.RealClock{}
	}
	return r.Clock
}

func (r *Remote) cleanDirCommand(dir string) string {
	template := r.CleanDirCommand
	if template == "" {
		template = DefaultCleanDirCommand
	}
	return fmt.Sprintf(template, shellquote.Join(dir))
}

// Component is a component of an application. Fields not pertaining to
// the component kind are left empty
type Component struct {
	// ID is the component id, unique in the application
	ID string

	// AppID is the id of the application
	AppID string

	// HostID is the id of the host where the component runs
	HostID string

	// Kind is the kind of the component
	Kind Kind

	WorkingDir string
	LogDir     string
	InputDir   string
	OutputDir  string
	TempDir    string

	// DataPrefix is the name prefix of the data files
	DataPrefix string

	// Properties are the custom properties of the component
	Properties map[string]string

	// PollInterval is the interval between status polls
	PollInterval time.Duration

	// HostName and Port are where a service component listens
	HostName string
	Port     int

	// IndexDistributionDir is where an engine receives new indexes
	IndexDistributionDir string

	// UpdateDir is where an engine receives partial updates
	UpdateDir string

	// UpdateLogDir is where an engine logs the partial updates
	UpdateLogDir string

	// IndexApplied and UpdateApplied are the per-run state of an engine
	IndexApplied  bool
	UpdateApplied bool

	failureMessage string
	remote         *Remote
}

// New creates a component bound to the passed remote handles
func New(kind Kind, id, appID, hostID string, remote *Remote) *Component {
	return &Component{
		ID:           id,
		AppID:        appID,
		HostID:       hostID,
		Kind:         kind,
		Properties:   make(map[string]string),
		PollInterval: DefaultPollInterval,
		remote:       remote,
	}
}

// String implements fmt.Stringer
func (c *Component) String() string {
	if c.Kind.Capability() == CapabilityService {
		return fmt.Sprintf("%s %s:%d", c.ID, c.HostName, c.Port)
	}
	return fmt.Sprintf("%s on %s", c.ID, c.HostID)
}

// FailureMessage is the failure message recorded by the last status
// check or the last awaited operation
func (c *Component) FailureMessage() string {
	return c.failureMessage
}

// NumLogBackups is the number of log backups to be kept
func (c *Component) NumLogBackups() int {
	return c.intProperty(NumLogBackupsProperty, defaultNumBackups)
}

// NumIndexBackups is the number of index backups to be kept
func (c *Component) NumIndexBackups() int {
	return c.intProperty(NumIndexBackupsProperty, defaultNumBackups)
}

func (c *Component) intProperty(name string, defaultValue int) int {
	value, err := strconv.Atoi(c.Properties[name])
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func (c *Component) logger(ctx context.Context) log.Logger {
	return log.FromContext(ctx).WithValues("component", c.ID)
}

func (c *Component) supports(kinds ...Kind) error {
	for _, kind := range kinds {
		if c.Kind == kind {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is a %s", ErrOperationNotSupported, c.ID, c.Kind)
}

// GetStatus polls the status of the component
func (c *Component) GetStatus(ctx context.Context) (controlservice.Status, error) {
	status, err := c.remote.Controller.GetComponentStatus(ctx, c.AppID, c.ID)
	if err != nil {
		return status, fmt.Errorf("while getting status of %s: %w", c.ID, err)
	}
	c.logger(ctx).Debug("GetStatus", "state", status.State, "failureMessage", status.FailureMessage)
	return status, nil
}

// IsActive is true when the component is Starting or Running
func (c *Component) IsActive(ctx context.Context) (bool, error) {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.State.IsActive(), nil
}

// IsStarting is true when the component is Starting
func (c *Component) IsStarting(ctx context.Context) (bool, error) {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.State == controlservice.StateStarting, nil
}

// IsFailed is true when the component is Failed. The failure message
// is recorded as a side effect
func (c *Component) IsFailed(ctx context.Context) (bool, error) {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	c.failureMessage = status.FailureMessage
	return status.State == controlservice.StateFailed, nil
}

// Start starts the component. When wait is true a batch component is
// awaited until it stops running and a service component until it
// leaves the Starting state
func (c *Component) Start(ctx context.Context, wait bool) error {
	c.logger(ctx).Debug("StartComponent")
	if err := c.remote.Controller.StartComponent(ctx, c.AppID, c.ID); err != nil {
		return fmt.Errorf("while starting %s: %w", c.ID, err)
	}
	if !wait {
		return nil
	}

	if c.Kind.Capability() == CapabilityService {
		return c.waitWhile(ctx, c.IsStarting)
	}
	return c.waitWhile(ctx, c.IsActive)
}

// Stop stops the component, optionally waiting until it is no more active
func (c *Component) Stop(ctx context.Context, wait bool) error {
	c.logger(ctx).Debug("StopComponent")
	if err := c.remote.Controller.StopComponent(ctx, c.AppID, c.ID); err != nil {
		return fmt.Errorf("while stopping %s: %w", c.ID, err)
	}
	if !wait {
		return nil
	}
	return c.waitWhile(ctx, c.IsActive)
}

func (c *Component) waitWhile(ctx context.Context, condition func(context.Context) (bool, error)) error {
	for {
		holds, err := condition(ctx)
		if err != nil {
			return err
		}
		if !holds {
			return nil
		}
		if err := concurrency.Sleep(ctx, c.remote.clock(), c.pollInterval()); err != nil {
			return err
		}
	}
}

func (c *Component) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// AwaitTerminal polls the status of the operation until it is not
// running anymore. The failure message is recorded and the result is
// false when the operation failed
func (c *Component) AwaitTerminal(ctx context.Context, token *Token) (bool, error) {
	contextLogger := c.logger(ctx).WithValues("token", token.ID)
	contextLogger.Debug("WaitUtilityComplete")

	for {
		if err := token.Refresh(ctx, c.remote.Controller, c.AppID); err != nil {
			return false, err
		}
		if token.State() != controlservice.StateRunning {
			break
		}
		if err := concurrency.Sleep(ctx, c.remote.clock(), c.pollInterval()); err != nil {
			return false, err
		}
	}

	c.failureMessage = token.FailureMessage()
	contextLogger.Debug("WaitUtilityComplete finished", "state", token.State())
	return !token.IsFailed(), nil
}

// Shell runs a shell command on the host of the component
func (c *Component) Shell(ctx context.Context, cmd string) (*Token, error) {
	c.logger(ctx).Debug("ShellCmd", "cmd", cmd)
	id, err := c.remote.Controller.StartShell(ctx, c.AppID, controlservice.ShellRequest{
		HostID: c.HostID,
		Cmd:    cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("while running shell command on %s: %w", c.HostID, err)
	}
	return NewToken(c.HostID, id), nil
}

// CopyFiles recursively copies the content of a directory of the source
// host to a directory of the host of the component
func (c *Component) CopyFiles(ctx context.Context, fromHostID, fromPath, toPath string) (*Token, error) {
	if !strings.HasSuffix(fromPath, "/*") {
		fromPath = strings.TrimSuffix(fromPath, "/") + "/*"
	}

	c.logger(ctx).Debug("CopyFiles", "fromHostID", fromHostID, "fromPath", fromPath, "toPath", toPath)
	id, err := c.remote.Controller.StartCopyFiles(ctx, c.AppID, controlservice.CopyRequest{
		FromHostID:      fromHostID,
		SourcePath:      fromPath,
		ToHostID:        c.HostID,
		DestinationPath: toPath,
		Recursive:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("while copying files to %s: %w", c.HostID, err)
	}
	return NewToken(c.HostID, id), nil
}

// CopyFile copies a single file of the source host into a directory of
// the host of the component
func (c *Component) CopyFile(ctx context.Context, fromHostID, fromPath, toDir string) (*Token, error) {
	c.logger(ctx).Debug("CopyFile", "fromHostID", fromHostID, "fromPath", fromPath, "toDir", toDir)
	id, err := c.remote.Controller.StartCopyFiles(ctx, c.AppID, controlservice.CopyRequest{
		FromHostID:      fromHostID,
		SourcePath:      fromPath,
		ToHostID:        c.HostID,
		DestinationPath: toDir,
	})
	if err != nil {
		return nil, fmt.Errorf("while copying %s to %s: %w", fromPath, c.HostID, err)
	}
	return NewToken(c.HostID, id), nil
}

// BackupFiles moves a directory aside keeping the passed number of backups
func (c *Component) BackupFiles(ctx context.Context, dir string, numBackups int) (*Token, error) {
	c.logger(ctx).Debug("BackupFiles", "dir", dir, "numBackups", numBackups)
	id, err := c.remote.Controller.StartBackupFiles(ctx, c.AppID, controlservice.BackupRequest{
		HostID:     c.HostID,
		Dir:        dir,
		NumBackups: numBackups,
		Method:     controlservice.BackupMethodMove,
	})
	if err != nil {
		return nil, fmt.Errorf("while backing up %s on %s: %w", dir, c.HostID, err)
	}
	return NewToken(c.HostID, id), nil
}

// RollbackFiles restores the most recent backup of a directory
func (c *Component) RollbackFiles(ctx context.Context, dir string) (*Token, error) {
	c.logger(ctx).Debug("RollbackFiles", "dir", dir)
	id, err := c.remote.Controller.StartRollbackFiles(ctx, c.AppID, controlservice.RollbackRequest{
		HostID: c.HostID,
		Dir:    dir,
	})
	if err != nil {
		return nil, fmt.Errorf("while restoring %s on %s: %w", dir, c.HostID, err)
	}
	return NewToken(c.HostID, id), nil
}

// StartCleanDir starts emptying a directory on the host of the component
func (c *Component) StartCleanDir(ctx context.Context, dir string) (*Token, error) {
	c.logger(ctx).Debug("CleanDir", "dir", dir)
	return c.Shell(ctx, c.remote.cleanDirCommand(dir))
}

// CleanDir empties a directory on the host of the component
func (c *Component) CleanDir(ctx context.Context, dir string) (bool, error) {
	token, err := c.StartCleanDir(ctx, dir)
	if err != nil {
		return false, err
	}
	return c.AwaitTerminal(ctx, token)
}

// CleanDirs empties the working directories of the component: the
// output directory of batch components, the distribution and update
// directories of the engines
func (c *Component) CleanDirs(ctx context.Context) (bool, error) {
	var dirs []string
	switch c.Kind {
	case KindForge, KindIndexer:
		dirs = []string{c.OutputDir}
	case KindEngine:
		dirs = []string{c.IndexDistributionDir, c.UpdateDir}
	}

	result := true
	for _, dir := range dirs {
		cleaned, err := c.CleanDir(ctx, dir)
		if err != nil {
			return false, err
		}
		result = result && cleaned
	}
	return result, nil
}

// ArchiveLog moves the log directory aside, keeping the configured
// number of backups
func (c *Component) ArchiveLog(ctx context.Context, wait bool) (bool, error) {
	c.logger(ctx).Debug("ArchiveLog")
	token, err := c.BackupFiles(ctx, c.LogDir, c.NumLogBackups())
	if err != nil {
		return false, err
	}
	if !wait {
		return true, nil
	}
	return c.AwaitTerminal(ctx, token)
}
