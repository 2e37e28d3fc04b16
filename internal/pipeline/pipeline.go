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

// Package pipeline contains the update protocols of an application.
// A baseline update rebuilds the whole index and rolls it out on every
// engine, a partial update distributes and applies the incremental
// changes produced by the partial forge. Every run holds the update
// lock of the application, released whatever the outcome
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/indexctl/indexctl/internal/application"
	"github.com/indexctl/indexctl/internal/cluster"
	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/internal/metrics"
	"github.com/indexctl/indexctl/internal/notify"
	"github.com/indexctl/indexctl/pkg/concurrency"
	"github.com/indexctl/indexctl/pkg/management/log"
)

// Mode is the kind of run
type Mode string

const (
	// ModeBaseline rebuilds the index and applies it to every engine
	ModeBaseline Mode = "baseline"

	// ModeBaselineWithoutApply rebuilds the index, distributes it and
	// tests it on the test hosts, leaving the other engines untouched
	ModeBaselineWithoutApply Mode = "baseline-without-apply"

	// ModePartial distributes and applies a partial update
	ModePartial Mode = "partial"

	// ModeApplyIndex applies the already distributed index to every engine
	ModeApplyIndex Mode = "apply-index"

	// ModeRollbackIndex restores the previous index and rolls it out
	ModeRollbackIndex Mode = "rollback-index"
)

// Stage is a step of a run
type Stage string

// The stages of the runs
const (
	StagePreconditions    Stage = "preconditions"
	StageLock             Stage = "lock"
	StageStartLogServer   Stage = "start-log-server"
	StageForge            Stage = "forge"
	StageIndexer          Stage = "indexer"
	StageClean            Stage = "clean"
	StageDistributeIndex  Stage = "distribute-index"
	StageTestIndex        Stage = "test-index"
	StageApplyIndex       Stage = "apply-index"
	StageRollLog          Stage = "roll-log"
	StageDistributeUpdate Stage = "distribute-update"
	StageApplyUpdate      Stage = "apply-update"
	StageRollbackIndex    Stage = "rollback-index"
)

const (
	subjectSucceeded  = "Index successfully updated"
	subjectSoftFailed = "Index updated with errors"
	subjectFailed     = "Script failed"
)

// ReportTimeout bounds the delivery of the outcome notification
const ReportTimeout = 2 * time.Minute

// SessionLog is the log of the current run, attached to the reports
type SessionLog interface {
	// Flush returns the log recorded so far and resets it
	Flush() string
}

// Options are the settings of a run
type Options struct {
	Mode Mode

	// ForgeID is the forge run by baseline and partial updates
	ForgeID string

	// IndexTestHostIDs are the hosts where a new index is tested before
	// being applied to the whole cluster. No test happens when empty
	IndexTestHostIDs []string

	// PauseBetweenEngineUpdates is the pause between two engine restarts
	PauseBetweenEngineUpdates time.Duration

	// Policy is the completion barrier policy
	Policy cluster.Policy

	// PollInterval is the interval between two completion barrier cycles
	PollInterval time.Duration

	// MetricsTextfile is where the metrics are written at the end of
	// the run, if set
	MetricsTextfile string

	// Notifier receives the start and the outcome of the run. The
	// notifications are only logged when nil
	Notifier notify.Notifier

	// Session is the log attached to the reports, if set
	Session SessionLog

	// Clock measures the stages. The clock of the application remote
	// handles is used when nil
	Clock clock.Clock
}

// Pipeline runs an update of an application
type Pipeline struct {
	app          *application.Application
	locks        *locks.Manager
	orchestrator *cluster.Orchestrator
	options      Options
	clock        clock.Clock
	runID        string
	softFailures error
}

// New creates a pipeline updating the passed application
func New(app *application.Application, options Options) *Pipeline {
	p := &Pipeline{
		app:     app,
		locks:   locks.NewManager(app.Remote.Controller, app.ID),
		options: options,
		clock:   options.Clock,
	}
	if p.clock == nil {
		p.clock = app.Remote.Clock
	}
	if p.clock == nil {
		p.clock = clock.RealClock{}
	}
	if p.options.Notifier == nil {
		p.options.Notifier = notify.LogNotifier{}
	}
	return p
}

// RunID is the unique identifier of the last run
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run runs the update. The outcome is notified, together with the
// session log, and recorded in the metrics
func (p *Pipeline) Run(ctx context.Context) error {
	p.runID = uuid.NewString()
	p.softFailures = nil
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("runID", p.runID, "mode", p.options.Mode))
	startedAt := p.clock.Now()

	err := p.runLocked(ctx)
	return p.report(ctx, startedAt, err)
}

// runLocked acquires the update lock and runs the stages of the mode.
// From the moment the lock is acquired every lock of the application
// is released on exit, or as soon as the context is cancelled
func (p *Pipeline) runLocked(ctx context.Context) (err error) {
	contextLogger := log.FromContext(ctx)
	for _, line := range strings.Split(strings.TrimSpace(p.app.Describe()), "\n") {
		contextLogger.Info(line)
	}

	if err := p.checkPreconditions(); err != nil {
		return fatal(StagePreconditions, err)
	}

	acquired, err := p.locks.AcquireLock(ctx, locks.UpdateFlag)
	if err != nil {
		return fatal(StageLock, err)
	}
	if !acquired {
		return fatal(StageLock, ErrLockHeld)
	}

	finished := concurrency.NewExecuted()
	go p.releaseOnCancellation(ctx, finished)
	defer func() {
		finished.Broadcast()
		if releaseErr := p.locks.ReleaseAllLocks(context.WithoutCancel(ctx)); releaseErr != nil {
			contextLogger.Error(releaseErr, "Unable to release the locks")
			err = multierr.Append(err, fatal(StageLock, releaseErr))
		}
	}()

	p.orchestrator = cluster.New(p.app, cluster.Options{
		Policy:       p.options.Policy,
		PollInterval: p.options.PollInterval,
		Clock:        p.clock,
		Observer:     metrics.Observer{AppID: p.app.ID},
	})
	defer func() {
		p.softFailures = multierr.Append(p.orchestrator.Err(), p.softFailures)
	}()

	p.notifyStart(ctx)

	if err := p.runStage(ctx, StageStartLogServer, p.startLogServer); err != nil {
		return err
	}
	return p.runMode(ctx)
}

func (p *Pipeline) releaseOnCancellation(ctx context.Context, finished *concurrency.Executed) {
	select {
	case <-finished.Done():
	case <-ctx.Done():
		log.FromContext(ctx).Warning("Run cancelled, releasing the locks")
		if err := p.locks.ReleaseAllLocks(context.WithoutCancel(ctx)); err != nil {
			log.FromContext(ctx).Error(err, "Unable to release the locks")
		}
	}
}

func (p *Pipeline) checkPreconditions() error {
	needsForge, needsIndexer := false, false
	switch p.options.Mode {
	case ModeBaseline, ModeBaselineWithoutApply:
		needsForge, needsIndexer = true, true
	case ModePartial:
		needsForge = true
	case ModeRollbackIndex:
		needsIndexer = true
	case ModeApplyIndex:
	default:
		return fmt.Errorf("unknown mode %q", p.options.Mode)
	}

	if needsForge && p.forge() == nil {
		return fmt.Errorf("%w: %q in application %s", ErrForgeNotFound, p.options.ForgeID, p.app.ID)
	}
	if needsIndexer && p.app.Indexer == nil {
		return fmt.Errorf("%w in application %s", ErrNoIndexer, p.app.ID)
	}
	return nil
}

func (p *Pipeline) forge() *component.Component {
	return p.app.Forges.Get(p.options.ForgeID)
}

// runStage runs a stage measuring its duration
func (p *Pipeline) runStage(ctx context.Context, stage Stage, run func(ctx context.Context) error) error {
	contextLogger := log.FromContext(ctx).WithValues("stage", stage)
	contextLogger.Debug("Stage started")

	start := p.clock.Now()
	err := run(log.IntoContext(ctx, contextLogger))
	duration := p.clock.Since(start)
	metrics.RecordStageDuration(p.app.ID, string(stage), duration)

	if err != nil {
		return fatal(stage, err)
	}
	contextLogger.Debug("Stage completed", "duration", duration.String())
	return nil
}

func (p *Pipeline) notifyStart(ctx context.Context) {
	body := ""
	if forge := p.forge(); forge != nil && p.usesForge() {
		body = DataFeedListing(forge.InputDir)
	}
	p.notify(ctx, notify.EventStarted, fmt.Sprintf("Starting %s update of %s", p.options.Mode, p.app.ID), body)
}

func (p *Pipeline) usesForge() bool {
	switch p.options.Mode {
	case ModeBaseline, ModeBaselineWithoutApply, ModePartial:
		return true
	default:
		return false
	}
}

func (p *Pipeline) notify(ctx context.Context, event notify.Event, subject, body string) {
	err := p.options.Notifier.Notify(ctx, notify.Message{
		AppID:   p.app.ID,
		RunID:   p.runID,
		Mode:    string(p.options.Mode),
		Event:   event,
		Subject: subject,
		Body:    body,
		Time:    p.clock.Now(),
	})
	if err != nil {
		log.FromContext(ctx).Error(err, "Unable to deliver the notification", "event", event)
	}
}

func (p *Pipeline) sessionLog() string {
	if p.options.Session == nil {
		return ""
	}
	return p.options.Session.Flush()
}

// report notifies the outcome of the run and records it in the metrics
func (p *Pipeline) report(ctx context.Context, startedAt time.Time, err error) error {
	contextLogger := log.FromContext(ctx)

	// the outcome is delivered even when the run has been cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReportTimeout)
	defer cancel()

	finishedAt := p.clock.Now()
	metrics.RecordRun(p.app.ID, string(p.options.Mode), err == nil, finishedAt)

	switch {
	case err != nil:
		contextLogger.Error(err, subjectFailed)
		p.notify(ctx, notify.EventFailed, fmt.Sprintf("%s: %v", subjectFailed, err), p.sessionLog())

	case p.softFailures != nil:
		failures := multierr.Errors(p.softFailures)
		var body strings.Builder
		fmt.Fprintf(&body, "%d operations failed:\n", len(failures))
		for _, failure := range failures {
			fmt.Fprintf(&body, "  %v\n", failure)
		}
		body.WriteString("\n")
		contextLogger.Warning(subjectSoftFailed, "failures", len(failures),
			"duration", finishedAt.Sub(startedAt).String())
		body.WriteString(p.sessionLog())
		p.notify(ctx, notify.EventSucceeded, subjectSoftFailed, body.String())

	default:
		contextLogger.Info(subjectSucceeded, "duration", finishedAt.Sub(startedAt).String())
		p.notify(ctx, notify.EventSucceeded, subjectSucceeded, p.sessionLog())
	}

	if p.options.MetricsTextfile != "" {
		if writeErr := metrics.WriteToTextfile(p.options.MetricsTextfile); writeErr != nil {
			contextLogger.Error(writeErr, "Unable to write the metrics", "fileName", p.options.MetricsTextfile)
		}
	}

	return err
}

// SoftFailures are the failures that didn't stop the last run
func (p *Pipeline) SoftFailures() error {
	return p.softFailures
}
