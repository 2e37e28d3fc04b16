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

package pipeline

import (
	"fmt"
	"strings"

	"github.com/indexctl/indexctl/pkg/fileutils"
)

const dataFeedTimeLayout = "2/Jan/2006 - 15:04:05"

// DataFeedListing describes the data files found in the input
// directory of the forge, as seen from the local machine
func DataFeedListing(dir string) string {
	files, err := fileutils.ListFiles(dir, "*.txt")
	if err != nil {
		return fmt.Sprintf("Unable to list the input files in %s: %v.", dir, err)
	}
	if len(files) == 0 {
		return fmt.Sprintf("No input files found in %s.", dir)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Input files found in %s:\n", dir)
	for _, info := range files {
		fmt.Fprintf(&sb, "[%s] - %d bytes - %s\n", info.Name(), info.Size(), info.ModTime().Format(dataFeedTimeLayout))
	}
	return sb.String()
}
