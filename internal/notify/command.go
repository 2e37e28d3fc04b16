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

package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/indexctl/indexctl/pkg/management/execlog"
)

// ErrEmptyCommand is returned when the notification command is empty
var ErrEmptyCommand = errors.New("empty notification command")

// Environment variables passed to the notification command
const (
	EnvApplication = "INDEXCTL_APPLICATION"
	EnvRunID       = "INDEXCTL_RUN_ID"
	EnvMode        = "INDEXCTL_MODE"
	EnvEvent       = "INDEXCTL_EVENT"
	EnvSubject     = "INDEXCTL_SUBJECT"
)

// CommandNotifier runs a local command for every notification, the
// body being written to its standard input. The command can be used
// to send mails or to feed a chat
type CommandNotifier struct {
	args []string
}

// NewCommandNotifier creates a command notifier from a command line
func NewCommandNotifier(commandLine string) (*CommandNotifier, error) {
	args, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("while parsing notification command %q: %w", commandLine, err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return &CommandNotifier{args: args}, nil
}

// Notify implements Notifier
func (n *CommandNotifier) Notify(ctx context.Context, message Message) error {
	cmd := exec.CommandContext(ctx, n.args[0], n.args[1:]...) // #nosec G204
	cmd.Stdin = strings.NewReader(message.Body)
	cmd.Env = append(os.Environ(),
		EnvApplication+"="+message.AppID,
		EnvRunID+"="+message.RunID,
		EnvMode+"="+message.Mode,
		EnvEvent+"="+string(message.Event),
		EnvSubject+"="+message.Subject,
	)

	if err := execlog.RunBuffering(ctx, cmd, "notify"); err != nil {
		return fmt.Errorf("while running notification command %s: %w", n.args[0], err)
	}
	return nil
}
