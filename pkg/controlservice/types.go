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

// Package controlservice contains the client of the remote application
// controller: the service that starts and stops components, runs utility
// operations on hosts and keeps the synchronization flags of an application
package controlservice

// State is the state of a component or of a utility operation
type State string

const (
	// StateNotRunning is reported by components that are stopped and by
	// utility operations that completed successfully
	StateNotRunning State = "NotRunning"

	// StateStarting is reported by service components still starting up
	StateStarting State = "Starting"

	// StateRunning is reported by running components and in-flight operations
	StateRunning State = "Running"

	// StateFailed is reported when the component or the operation failed.
	// The failure message carries the details
	StateFailed State = "Failed"
)

// IsActive is true for Starting and Running
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// Status is the result of every status poll
type Status struct {
	State          State  `json:"state"`
	FailureMessage string `json:"failureMessage,omitempty"`
}

// BackupMethod tells the controller how to move the previous generations aside
type BackupMethod string

const (
	// BackupMethodMove renames the directory to its backup name
	BackupMethodMove BackupMethod = "Move"

	// BackupMethodCopy copies the directory leaving the original in place
	BackupMethodCopy BackupMethod = "Copy"
)

// CopyRequest describes a file copy between two hosts of an application
type CopyRequest struct {
	FromHostID      string `json:"fromHostID"`
	SourcePath      string `json:"sourcePath"`
	ToHostID        string `json:"toHostID"`
	DestinationPath string `json:"destinationPath"`
	Recursive       bool   `json:"recursive"`
}

// BackupRequest describes a backup of a directory on one host
type BackupRequest struct {
	HostID     string       `json:"hostID"`
	Dir        string       `json:"dirName"`
	NumBackups int          `json:"numBackups"`
	Method     BackupMethod `json:"backupMethod"`
}

// RollbackRequest restores the most recent backup of a directory
type RollbackRequest struct {
	HostID string `json:"hostID"`
	Dir    string `json:"dirName"`
}

// ShellRequest runs a shell command on one host
type ShellRequest struct {
	HostID string `json:"hostID"`
	Cmd    string `json:"cmd"`
}

// ComponentType is the type discriminator of a component definition
type ComponentType string

const (
	// ComponentTypeForge is the data processing batch component
	ComponentTypeForge ComponentType = "forge"

	// ComponentTypeIndexer is the index building batch component
	ComponentTypeIndexer ComponentType = "indexer"

	// ComponentTypeEngine is the query serving engine instance
	ComponentTypeEngine ComponentType = "engine"

	// ComponentTypeLogServer is the log server
	ComponentTypeLogServer ComponentType = "logserver"
)

// Property is a custom component property
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HostDefinition is a host of an application
type HostDefinition struct {
	HostID   string `json:"hostID"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port,omitempty"`
}

// ComponentDefinition is the provisioned definition of a component.
// Not every field applies to every component type
type ComponentDefinition struct {
	Type        ComponentType `json:"type"`
	ComponentID string        `json:"componentID"`
	HostID      string        `json:"hostID"`
	WorkingDir  string        `json:"workingDir"`
	LogFile     string        `json:"logFile,omitempty"`

	// forge
	InputDir         string `json:"inputDir,omitempty"`
	OutputDir        string `json:"outputDir,omitempty"`
	OutputPrefixName string `json:"outputPrefixName,omitempty"`

	// indexer and engine
	InputPrefix  string `json:"inputPrefix,omitempty"`
	OutputPrefix string `json:"outputPrefix,omitempty"`

	// engine
	UpdateDir     string `json:"updateDir,omitempty"`
	UpdateLogFile string `json:"updateLogFile,omitempty"`

	// engine and log server
	Port int `json:"port,omitempty"`

	Properties []Property `json:"properties,omitempty"`
}

// ApplicationDefinition is the provisioned definition of an application
type ApplicationDefinition struct {
	ApplicationID string                `json:"applicationID"`
	Hosts         []HostDefinition      `json:"hosts"`
	Components    []ComponentDefinition `json:"components"`
}
