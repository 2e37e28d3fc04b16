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

package component

import (
	"context"
	"fmt"
	"path"

	"github.com/kballard/go-shellquote"
)

const (
	updateFileTemplate = "%s-sgmt0.records.xml"
	stampLayout        = "20060102150405"
)

// Run starts a batch component and waits for its completion. The
// result is false when the component failed, the failure message
// being recorded
func (c *Component) Run(ctx context.Context) (bool, error) {
	if err := c.supports(KindForge, KindIndexer); err != nil {
		return false, err
	}

	if err := c.Start(ctx, true); err != nil {
		return false, err
	}

	failed, err := c.IsFailed(ctx)
	if err != nil {
		return false, err
	}
	return !failed, nil
}

// UpdateFileName is the name of the partial update file produced by a forge
func (c *Component) UpdateFileName() string {
	return fmt.Sprintf(updateFileTemplate, c.DataPrefix)
}

// StampPartialUpdate renames the partial update file produced by the
// forge prepending the current timestamp, so that the updates are
// kept in the engines update directories until the next baseline.
// The new file name is returned
func (c *Component) StampPartialUpdate(ctx context.Context) (string, error) {
	if err := c.supports(KindForge); err != nil {
		return "", err
	}

	fileName := c.UpdateFileName()
	newName := fmt.Sprintf("%s_%s", c.remote.clock().Now().Format(stampLayout), fileName)
	c.logger(ctx).Debug("Stamping update file", "fileName", fileName, "newName", newName)

	token, err := c.Shell(ctx, shellquote.Join(
		"mv",
		path.Join(c.OutputDir, fileName),
		path.Join(c.OutputDir, newName),
	))
	if err != nil {
		return "", err
	}

	stamped, err := c.AwaitTerminal(ctx, token)
	if err != nil {
		return "", err
	}
	if !stamped {
		return "", fmt.Errorf("while stamping update file %s: %s", fileName, c.failureMessage)
	}
	return newName, nil
}

// ArchiveIndex moves the previous index aside, keeping the number of
// backups configured in the numIndexBackups property. This also
// empties the indexer output directory
func (c *Component) ArchiveIndex(ctx context.Context) (bool, error) {
	if err := c.supports(KindIndexer); err != nil {
		return false, err
	}

	token, err := c.BackupFiles(ctx, c.OutputDir, c.NumIndexBackups())
	if err != nil {
		return false, err
	}
	return c.AwaitTerminal(ctx, token)
}

// RollbackIndex restores the most recent index backup
func (c *Component) RollbackIndex(ctx context.Context) (bool, error) {
	if err := c.supports(KindIndexer); err != nil {
		return false, err
	}

	token, err := c.RollbackFiles(ctx, c.OutputDir)
	if err != nil {
		return false, err
	}
	return c.AwaitTerminal(ctx, token)
}
