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

// Package execlog runs local commands and logs their stdout and stderr
// using the provided logger
package execlog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/indexctl/indexctl/pkg/management/log"
)

const (
	// PipeKey is the key for the pipe the log refers to
	PipeKey = "pipe"
	// StdOut is the PipeKey value for stdout
	StdOut = "stdout"
	// StdErr is the PipeKey value for stderr
	StdErr = "stderr"
)

// RunBuffering runs the command buffering its stdout and stderr, and
// logs them one line at a time after the command exited
func RunBuffering(ctx context.Context, cmd *exec.Cmd, cmdName string) error {
	logger := log.FromContext(ctx).WithName(cmdName)

	var stdoutBuffer, stderrBuffer bytes.Buffer
	cmd.Stdout = &stdoutBuffer
	cmd.Stderr = &stderrBuffer
	err := cmd.Run()

	// Log stdout/stderr regardless of error status
	copyLines(&LogWriter{Logger: logger.WithValues(PipeKey, StdOut)}, &stdoutBuffer, logger)
	copyLines(&LogWriter{Logger: logger.WithValues(PipeKey, StdErr)}, &stderrBuffer, logger)

	return err
}

// copyLines copies the content of an io.Reader into an io.Writer
// one line at a time
func copyLines(dst io.Writer, src io.Reader, logger log.Logger) {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := scanner.Bytes()
		if _, err := dst.Write(line); err != nil {
			logger.Error(err, "can't write to dst writer", "line", string(line))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error(err, "can't scan command output")
	}
}
