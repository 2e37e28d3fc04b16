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

// Package url holds the constants for the remote endpoints indexctl talks to
package url

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultControllerPort is the port the application controller listens on
	DefaultControllerPort int = 8888

	// ControllerBasePath is the prefix of every control service endpoint
	ControllerBasePath string = "/eac"

	// PathAdmin is the URL path of the engine administrative endpoint
	PathAdmin string = "/admin"

	// PathRoll is the URL path used to roll the log server log
	PathRoll string = "/roll"

	// AdminOpParam is the query parameter selecting the admin operation
	AdminOpParam string = "op"

	// AdminOpPing is the lightweight health check operation
	AdminOpPing string = "ping"

	// AdminOpUpdate is the operation applying partial updates
	AdminOpUpdate string = "update"
)

// Build builds an url given the hostname and the path
func Build(hostname, path string, port int) string {
	return build("http", hostname, path, port)
}

// Admin builds the url of an engine administrative operation
func Admin(hostname string, port int, op string) string {
	return fmt.Sprintf("%s?%s=%s", Build(hostname, PathAdmin, port), AdminOpParam, url.QueryEscape(op))
}

// Controller builds the base url of the application controller
func Controller(hostname string, port int) string {
	return Build(hostname, ControllerBasePath, port)
}

func build(scheme, hostname, path string, port int) string {
	path = strings.TrimPrefix(path, "/")
	return fmt.Sprintf("%s://%s:%d/%s", scheme, hostname, port, path)
}
