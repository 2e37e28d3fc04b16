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

package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/concurrency"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// WaitComplete is the completion barrier of a fan-out. Every cycle the
// operations whose status is unknown or still active are polled and
// every operation is logged. The barrier is done when no operation is
// active anymore. Failed operations are logged and recorded as soft
// failures; with the WaitForAll policy they don't stop the barrier
func (o *Orchestrator) WaitComplete(ctx context.Context, stage Stage, tokens []*component.Token) error {
	contextLogger := log.FromContext(ctx).WithValues("stage", stage)
	reported := make(map[*component.Token]bool, len(tokens))

	for cycle := 1; ; cycle++ {
		active := 0
		for _, token := range tokens {
			if token.NeedsRefresh() {
				if err := token.Refresh(ctx, o.app.Remote.Controller, o.app.ID); err != nil {
					return err
				}
			}

			switch {
			case token.IsFailed():
				contextLogger.Error(errors.New(token.FailureMessage()), "Operation failed",
					"cycle", cycle, "hostID", token.HostID, "token", token.ID)
				if !reported[token] {
					reported[token] = true
					o.recordFailure(&SoftFailure{Stage: stage, HostID: token.HostID, Message: token.FailureMessage()})
				}
			case token.State().IsActive():
				active++
				contextLogger.Info("Operation in progress",
					"cycle", cycle, "hostID", token.HostID, "token", token.ID, "state", token.State())
			default:
				contextLogger.Info("Operation completed",
					"cycle", cycle, "hostID", token.HostID, "token", token.ID, "state", token.State())
			}
		}
		o.observer.BarrierCycle(stage)

		if o.policy == PolicyFailFast && len(reported) > 0 {
			return fmt.Errorf("%w: %d of %d operations failed during %s",
				ErrOperationFailed, len(reported), len(tokens), stage)
		}
		if active == 0 {
			contextLogger.Debug("All operations completed", "cycles", cycle, "failed", len(reported))
			return nil
		}

		if err := concurrency.Sleep(ctx, o.clock, o.pollInterval); err != nil {
			return err
		}
	}
}
