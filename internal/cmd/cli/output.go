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

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// OutputFormat identifies the format of the command output
type OutputFormat string

const (
	// OutputFormatText means human-readable output
	OutputFormatText = "text"

	// OutputFormatJSON means machine-readable JSON output
	OutputFormatJSON = "json"

	// OutputFormatYAML means machine-readable YAML output
	OutputFormatYAML = "yaml"
)

// ParseOutputFormat checks the format passed by the user
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch format {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return OutputFormat(format), nil
	default:
		return "", fmt.Errorf("unknown output format %q, expected one of text, json and yaml", format)
	}
}

// Print output an object via an io.Writer in a machine-readable way
func Print(o any, format OutputFormat, writer io.Writer) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return err
		}

		if _, err = writer.Write(data); err != nil {
			return err
		}

		// json.MarshalIndent doesn't add the final newline
		_, err = io.WriteString(writer, "\n")
		return err

	case OutputFormatYAML:
		data, err := yaml.Marshal(o)
		if err != nil {
			return err
		}

		_, err = writer.Write(data)
		return err
	}

	return fmt.Errorf("format %q is not machine-readable", format)
}
