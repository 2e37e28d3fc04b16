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

// Package configuration contains the configuration of indexctl, reading
// it from the configuration file and from environment variables
package configuration

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/indexctl/indexctl/pkg/configparser"
	"github.com/indexctl/indexctl/pkg/management/log"
	"github.com/indexctl/indexctl/pkg/management/url"
)

const (
	// DefaultPollInterval is the time between two status polls of a
	// component or of a group of utility operations
	DefaultPollInterval = 10 * time.Second

	// DefaultCleanDirCommand is the command template used to empty a
	// directory on a remote host. %s is replaced by the quoted directory
	DefaultCleanDirCommand = "find %s -mindepth 1 -delete"

	// DefaultBaselineForge is the id of the forge running the baseline updates
	DefaultBaselineForge = "Forge"

	// DefaultPartialForge is the id of the forge running the partial updates
	DefaultPartialForge = "PartialForge"

	// DefaultConfigFile is read when no configuration file is passed
	DefaultConfigFile = "/etc/indexctl/config.yaml"
)

var (
	// ErrMissingApplication is raised when no application name is configured
	ErrMissingApplication = errors.New("application name is not configured")

	// ErrMissingController is raised when no controller host is configured
	ErrMissingController = errors.New("controller host is not configured")
)

// Data is the struct containing the configuration of indexctl.
// Usually the values are read from the configuration file and the
// environment overrides them
type Data struct {
	// ApplicationName is the id of the application to be updated
	ApplicationName string `json:"applicationName" env:"APP_NAME"`

	// ControllerHost is the host name of the application controller.
	// ".", "local" and "localhost" mean the current machine
	ControllerHost string `json:"controllerHost" env:"CONTROLLER_HOST"`

	// ControllerPort is the port of the application controller
	ControllerPort int `json:"controllerPort" env:"CONTROLLER_PORT"`

	// BaselineForge is the id of the forge used by baseline updates
	BaselineForge string `json:"baselineForge" env:"BASELINE_FORGE"`

	// PartialForge is the id of the forge used by partial updates
	PartialForge string `json:"partialForge" env:"PARTIAL_FORGE"`

	// IndexTestHostIDs are the hosts where a new index is applied and
	// tested before the rest of the cluster
	IndexTestHostIDs []string `json:"indexTestHostIDs" env:"INDEX_TEST_HOST_IDS"`

	// PauseBetweenEngineUpdates is the time waited between two engine
	// restarts when applying an index to the whole cluster
	PauseBetweenEngineUpdates time.Duration `json:"pauseBetweenEngineUpdates" env:"PAUSE_BETWEEN_ENGINE_UPDATES"`

	// PollInterval is the interval between status polls
	PollInterval time.Duration `json:"pollInterval" env:"POLL_INTERVAL"`

	// FailFast stops waiting for a group of remote operations as soon as
	// one of them fails
	FailFast bool `json:"failFast" env:"FAIL_FAST"`

	// CleanDirCommand is the shell command template used to empty directories
	CleanDirCommand string `json:"cleanDirCommand" env:"CLEAN_DIR_COMMAND"`

	// NotifyCommand is a command receiving the notifications on its
	// standard input
	NotifyCommand string `json:"notifyCommand" env:"NOTIFY_COMMAND"`

	// NotifyWebhook is an URL receiving the notifications as JSON documents
	NotifyWebhook string `json:"notifyWebhook" env:"NOTIFY_WEBHOOK"`

	// MetricsTextfile is the file where the run metrics are written in
	// the Prometheus text format at the end of the run
	MetricsTextfile string `json:"metricsTextfile" env:"METRICS_TEXTFILE"`

	// Schedule is the cron expression used by the schedule command
	Schedule string `json:"schedule" env:"SCHEDULE"`

	// ApplicationFile is a file containing the application definition,
	// used instead of the one provisioned on the controller
	ApplicationFile string `json:"applicationFile" env:"APPLICATION_FILE"`
}

// Current is the configuration used by indexctl
var Current = NewConfiguration()

// newDefaultConfig creates a configuration holding the defaults
func newDefaultConfig() *Data {
	return &Data{
		ControllerPort:  url.DefaultControllerPort,
		BaselineForge:   DefaultBaselineForge,
		PartialForge:    DefaultPartialForge,
		PollInterval:    DefaultPollInterval,
		CleanDirCommand: DefaultCleanDirCommand,
	}
}

// NewConfiguration create a new indexctl configuration and read it
// from the environment
func NewConfiguration() *Data {
	config := newDefaultConfig()
	config.ReadConfigMap(nil)
	return config
}

// ReadConfigMap reads the configuration from the environment and the passed in data map
func (config *Data) ReadConfigMap(data map[string]string) {
	configparser.ReadConfigMap(config, newDefaultConfig(), data)
}

// ReadConfigFile reads the configuration from a YAML file whose keys are
// the names of the environment variables
func (config *Data) ReadConfigFile(fileName string) error {
	content, err := os.ReadFile(fileName) // #nosec
	if err != nil {
		return fmt.Errorf("while reading configuration file: %w", err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(content, &values); err != nil {
		return fmt.Errorf("while parsing configuration file %s: %w", fileName, err)
	}

	data := make(map[string]string, len(values))
	for key, value := range values {
		data[key] = stringify(value)
	}

	log.Debug("Configuration file loaded", "fileName", fileName, "keys", len(data))
	config.ReadConfigMap(data)
	return nil
}

// stringify converts a YAML value into the form used by the environment
// variables, lists being comma separated
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = stringify(item)
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(v)
	}
}

// Validate checks the configuration before any remote state is touched
func (config *Data) Validate() error {
	if config.ApplicationName == "" {
		return ErrMissingApplication
	}
	if config.ControllerHost == "" {
		return ErrMissingController
	}
	if config.ControllerPort <= 0 {
		return fmt.Errorf("invalid controller port %d", config.ControllerPort)
	}
	if config.PauseBetweenEngineUpdates < 0 {
		return fmt.Errorf("invalid pause between engine updates %v", config.PauseBetweenEngineUpdates)
	}
	if config.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval %v", config.PollInterval)
	}
	return nil
}

// GetControllerHost gets the controller host name, resolving the
// aliases of the local machine
func (config *Data) GetControllerHost() string {
	switch config.ControllerHost {
	case ".", "local", "localhost":
		if hostname, err := os.Hostname(); err == nil {
			return hostname
		}
	}
	return config.ControllerHost
}

// GetForgeID gets the forge used by a partial or a baseline update
func (config *Data) GetForgeID(partial bool) string {
	if partial {
		return config.PartialForge
	}
	return config.BaselineForge
}
