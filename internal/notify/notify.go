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

// Package notify delivers the notifications of the update runs: the
// start of a run and its outcome, together with the session log
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/indexctl/indexctl/internal/configuration"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// Event is the kind of a notification
type Event string

const (
	// EventStarted is sent when a run starts
	EventStarted Event = "started"

	// EventSucceeded is sent when a run completed successfully
	EventSucceeded Event = "succeeded"

	// EventFailed is sent when a run failed
	EventFailed Event = "failed"
)

// Message is a notification
type Message struct {
	AppID   string    `json:"application"`
	RunID   string    `json:"runID"`
	Mode    string    `json:"mode"`
	Event   Event     `json:"event"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Time    time.Time `json:"time"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, message Message) error
}

// LogNotifier writes the notifications to the log
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(ctx context.Context, message Message) error {
	contextLogger := log.FromContext(ctx).WithValues("event", message.Event, "runID", message.RunID)
	if message.Event == EventFailed {
		contextLogger.Error(errors.New(message.Subject), "Notification")
	} else {
		contextLogger.Info("Notification", "subject", message.Subject)
	}
	contextLogger.Trace("Notification body", "body", message.Body)
	return nil
}

// Notifiers delivers every notification to each of its members
type Notifiers []Notifier

// Notify implements Notifier. Every member is notified even when
// some of them fail
func (n Notifiers) Notify(ctx context.Context, message Message) error {
	var err error
	for _, notifier := range n {
		err = multierr.Append(err, notifier.Notify(ctx, message))
	}
	return err
}

// FromConfiguration creates the notifiers enabled by the configuration.
// Notifications are always logged
func FromConfiguration(config *configuration.Data) (Notifier, error) {
	result := Notifiers{LogNotifier{}}

	if config.NotifyCommand != "" {
		command, err := NewCommandNotifier(config.NotifyCommand)
		if err != nil {
			return nil, err
		}
		result = append(result, command)
	}
	if config.NotifyWebhook != "" {
		webhook, err := NewWebhookNotifier(config.NotifyWebhook)
		if err != nil {
			return nil, err
		}
		result = append(result, webhook)
	}

	return result, nil
}
