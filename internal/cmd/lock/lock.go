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

package lock

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/logrusorgru/aurora/v4"

	"github.com/indexctl/indexctl/internal/cmd/cli"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// ErrLockHeld is returned when setting a lock which is already held
var ErrLockHeld = errors.New("lock is already held")

var descriptions = map[string]string{
	locks.UpdateFlag:            "an update is running",
	locks.BaselineDataReadyFlag: "the data of a baseline update is ready",
	locks.PartialDataReadyFlag:  "the data of a partial update is ready",
}

// lockInfo is the machine-readable representation of a lock
type lockInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// List prints the locks held
func List(ctx context.Context, manager *locks.Manager, format cli.OutputFormat, writer io.Writer) error {
	names, err := manager.ListLocks(ctx)
	if err != nil {
		return err
	}

	if format != cli.OutputFormatText {
		result := make([]lockInfo, 0, len(names))
		for _, name := range names {
			result = append(result, lockInfo{Name: name, Description: descriptions[name]})
		}
		return cli.Print(result, format, writer)
	}

	if len(names) == 0 {
		_, err := fmt.Fprintln(writer, "No locks held")
		return err
	}

	table := cli.NewTable(writer)
	table.AddHeader("Lock", "Description")
	for _, name := range names {
		description, known := descriptions[name]
		if !known {
			description = aurora.Yellow("unknown lock").String()
		}
		table.AddLine(name, description)
	}
	table.Print()
	return nil
}

// Set acquires a lock
func Set(ctx context.Context, manager *locks.Manager, name string, writer io.Writer) error {
	if !locks.KnownFlags.Has(name) {
		log.FromContext(ctx).Warning("Setting a lock not used by indexctl", "lock", name)
	}

	acquired, err := manager.AcquireLock(ctx, name)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrLockHeld, name)
	}

	_, err = fmt.Fprintf(writer, "Lock %s acquired\n", name)
	return err
}

// Release releases a lock
func Release(ctx context.Context, manager *locks.Manager, name string, writer io.Writer) error {
	if err := manager.ReleaseLock(ctx, name); err != nil {
		return err
	}
	_, err := fmt.Fprintf(writer, "Lock %s released\n", name)
	return err
}

// ReleaseAll releases every lock of the application
func ReleaseAll(ctx context.Context, manager *locks.Manager, writer io.Writer) error {
	if err := manager.ReleaseAllLocks(ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintln(writer, "All locks released")
	return err
}
