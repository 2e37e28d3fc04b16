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

	"github.com/indexctl/indexctl/pkg/controlservice"
)

// Token is the handle of an asynchronous remote operation, together
// with the last status known for it
type Token struct {
	// ID is the opaque token issued by the controller
	ID string

	// HostID is the host where the operation runs
	HostID string

	status *controlservice.Status
}

// NewToken creates a token whose status is still unknown
func NewToken(hostID, id string) *Token {
	return &Token{ID: id, HostID: hostID}
}

// Known is true when the status has been polled at least once
func (t *Token) Known() bool {
	return t.status != nil
}

// State is the last known state of the operation
func (t *Token) State() controlservice.State {
	if t.status == nil {
		return ""
	}
	return t.status.State
}

// FailureMessage is the last known failure message
func (t *Token) FailureMessage() string {
	if t.status == nil {
		return ""
	}
	return t.status.FailureMessage
}

// IsFailed is true when the operation failed
func (t *Token) IsFailed() bool {
	return t.State() == controlservice.StateFailed
}

// NeedsRefresh is true while the status is unknown or the operation
// may still be in progress. Terminal statuses are never polled again
// since the controller may have discarded the token
func (t *Token) NeedsRefresh() bool {
	return !t.Known() || t.State().IsActive()
}

// Refresh polls the controller for the current status
func (t *Token) Refresh(ctx context.Context, controller controlservice.Interface, appID string) error {
	status, err := controller.GetUtilityStatus(ctx, appID, t.ID)
	if err != nil {
		return fmt.Errorf("while getting status of operation %s on %s: %w", t.ID, t.HostID, err)
	}
	t.status = &status
	return nil
}

// String implements fmt.Stringer
func (t *Token) String() string {
	state := "Unknown"
	if t.Known() {
		state = string(t.State())
	}
	return fmt.Sprintf("%s:%s - %s", t.HostID, t.ID, state)
}
