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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/management/log"
)

const minComponents = 3

var (
	// ErrNotDefined is raised when the application is not provisioned
	// on the controller
	ErrNotDefined = errors.New("application is not defined")

	// ErrInvalidDefinition is raised when a definition file doesn't
	// describe a usable application
	ErrInvalidDefinition = errors.New("invalid application configuration")
)

// IsDefined checks whether the application is provisioned on the controller
func IsDefined(ctx context.Context, controller controlservice.Interface, appID string) (bool, error) {
	ids, err := controller.ListApplicationIDs(ctx)
	if err != nil {
		return false, fmt.Errorf("while listing applications: %w", err)
	}
	return funk.ContainsString(ids, appID), nil
}

// Load loads the application provisioned on the controller
func Load(
	ctx context.Context,
	appID string,
	remote *component.Remote,
	options Options,
) (*Application, error) {
	log.FromContext(ctx).Info("Loading application",
		"application", appID, "controllerHost", options.ControllerHost, "controllerPort", options.ControllerPort)

	defined, err := IsDefined(ctx, remote.Controller, appID)
	if err != nil {
		return nil, err
	}
	if !defined {
		return nil, fmt.Errorf("%w: %s", ErrNotDefined, appID)
	}

	definition, err := remote.Controller.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("while getting application %s: %w", appID, err)
	}

	return FromDefinition(definition, remote, options)
}

// LoadFile loads an application from a definition file, in JSON or in YAML
func LoadFile(
	ctx context.Context,
	fileName string,
	remote *component.Remote,
	options Options,
) (*Application, error) {
	log.FromContext(ctx).Info("Loading application from file", "fileName", fileName)

	definition, err := ReadDefinitionFile(fileName)
	if err != nil {
		return nil, err
	}
	return FromDefinition(definition, remote, options)
}

// ReadDefinitionFile reads and validates an application definition file
func ReadDefinitionFile(fileName string) (*controlservice.ApplicationDefinition, error) {
	content, err := os.ReadFile(fileName) // #nosec
	if err != nil {
		return nil, fmt.Errorf("while reading application definition: %w", err)
	}

	var definition controlservice.ApplicationDefinition
	if err := yaml.Unmarshal(content, &definition); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, err.Error())
	}
	if err := ValidateDefinition(&definition); err != nil {
		return nil, err
	}
	return &definition, nil
}

// ValidateDefinition checks that the definition has an id, at least one
// host and enough components to run an update
func ValidateDefinition(definition *controlservice.ApplicationDefinition) error {
	switch {
	case definition.ApplicationID == "":
		return fmt.Errorf("%w: missing application id", ErrInvalidDefinition)
	case len(definition.Hosts) == 0:
		return fmt.Errorf("%w: no hosts defined", ErrInvalidDefinition)
	case len(definition.Components) < minComponents:
		return fmt.Errorf("%w: %d components defined, at least %d expected",
			ErrInvalidDefinition, len(definition.Components), minComponents)
	}
	return nil
}
