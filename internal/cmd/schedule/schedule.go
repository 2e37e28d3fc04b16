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

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron"

	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// RunFunc runs a single update
type RunFunc func(ctx context.Context) error

// Scheduler runs an update every time a cron schedule fires
type Scheduler struct {
	schedule cron.Schedule
	locks    *locks.Manager
	run      RunFunc

	// running is held while an update is in progress
	running sync.Mutex
}

// New creates a scheduler from a standard five fields cron expression
func New(spec string, manager *locks.Manager, run RunFunc) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("while parsing schedule %q: %w", spec, err)
	}

	return &Scheduler{
		schedule: schedule,
		locks:    manager,
		run:      run,
	}, nil
}

// Schedule is the parsed cron schedule
func (s *Scheduler) Schedule() cron.Schedule {
	return s.schedule
}

// Run fires the updates until the context is cancelled. The update in
// progress, if any, is waited for
func (s *Scheduler) Run(ctx context.Context) error {
	contextLogger := log.FromContext(ctx)

	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.Tick(ctx); err != nil {
			contextLogger.Error(err, "Scheduled update failed")
		}
	}))

	contextLogger.Info("Scheduler started")
	c.Start()
	<-ctx.Done()
	c.Stop()
	s.running.Lock()
	defer s.running.Unlock()
	contextLogger.Info("Scheduler stopped")

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// Tick runs one update, unless the previous one is still running or
// another update holds the update lock
func (s *Scheduler) Tick(ctx context.Context) error {
	contextLogger := log.FromContext(ctx)

	if !s.running.TryLock() {
		contextLogger.Info("Previous update still running, skipping")
		return nil
	}
	defer s.running.Unlock()

	held, err := s.locks.IsLockSet(ctx, locks.UpdateFlag)
	if err != nil {
		return err
	}
	if held {
		contextLogger.Info("Another update holds the update lock, skipping")
		return nil
	}

	return s.run(ctx)
}
