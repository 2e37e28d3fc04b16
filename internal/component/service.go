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
	"errors"
	"fmt"
)

// ApplyIndex puts the index found in the distribution directory in
// production on this engine: the engine is stopped, the current index
// is backed up and replaced, the logs are archived and the engine is
// started again. The result, also stored in IndexApplied, is true when
// the engine is active at the end
func (c *Component) ApplyIndex(ctx context.Context) (bool, error) {
	if err := c.supports(KindEngine); err != nil {
		return false, err
	}
	contextLogger := c.logger(ctx)

	active, err := c.IsActive(ctx)
	if err != nil {
		return false, err
	}
	if active {
		contextLogger.Info("Stopping engine")
		if err := c.Stop(ctx, true); err != nil {
			return false, err
		}
	}

	contextLogger.Info("Backing up existing index")
	backedUp, err := c.awaited(ctx, func() (*Token, error) {
		return c.BackupFiles(ctx, c.InputDir, defaultNumBackups)
	})
	if err != nil {
		return false, err
	}
	if !backedUp {
		contextLogger.Error(errors.New(c.failureMessage), "Backing up existing index failed")
	}

	copied, err := c.awaited(ctx, func() (*Token, error) {
		return c.CopyFiles(ctx, c.HostID, c.IndexDistributionDir, c.InputDir)
	})
	if err != nil {
		return false, err
	}
	if copied {
		contextLogger.Info("Archiving logs")
		if _, err := c.ArchiveLog(ctx, true); err != nil {
			return false, err
		}
		contextLogger.Debug("Attempting to start engine")
		if err := c.Start(ctx, true); err != nil {
			return false, err
		}
	} else {
		contextLogger.Error(errors.New(c.failureMessage), "Copying the new index failed")
	}

	if c.IndexApplied, err = c.IsActive(ctx); err != nil {
		return false, err
	}
	return c.IndexApplied, nil
}

func (c *Component) awaited(ctx context.Context, start func() (*Token, error)) (bool, error) {
	token, err := start()
	if err != nil {
		return false, err
	}
	return c.AwaitTerminal(ctx, token)
}

// ApplyUpdate asks the engine to apply the partial updates in its update
// directory. The result is also stored in UpdateApplied
func (c *Component) ApplyUpdate(ctx context.Context) (bool, error) {
	if err := c.supports(KindEngine); err != nil {
		return false, err
	}

	c.logger(ctx).Debug("Applying updates")
	err := c.remote.Admin.ApplyUpdate(ctx, c.HostName, c.Port)
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.UpdateApplied = false
		return false, ctxErr
	}
	if err != nil {
		c.logger(ctx).Error(err, "Update request failed")
	}
	c.UpdateApplied = err == nil
	return c.UpdateApplied, nil
}

// IsAlive is the lightweight health check telling whether the engine
// is alive and accepting queries
func (c *Component) IsAlive(ctx context.Context) bool {
	c.logger(ctx).Debug("Pinging engine", "hostName", c.HostName, "port", c.Port)
	if err := c.remote.Admin.Ping(ctx, c.HostName, c.Port); err != nil {
		c.logger(ctx).Error(err, fmt.Sprintf("Failed to ping %s", c))
		return false
	}
	return true
}

// RollLog asks the log server to roll its log
func (c *Component) RollLog(ctx context.Context) (bool, error) {
	if err := c.supports(KindLogServer); err != nil {
		return false, err
	}

	c.logger(ctx).Debug("Rolling log server log", "hostName", c.HostName, "port", c.Port)
	if err := c.remote.Admin.RollLog(ctx, c.HostName, c.Port); err != nil {
		c.logger(ctx).Error(err, "Roll log request failed")
		return false, nil
	}
	return true, nil
}

// CleanUpdateDir empties the partial updates directory of the engine
func (c *Component) CleanUpdateDir(ctx context.Context) (bool, error) {
	if err := c.supports(KindEngine); err != nil {
		return false, err
	}
	return c.CleanDir(ctx, c.UpdateDir)
}
