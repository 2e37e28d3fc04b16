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

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/indexctl/indexctl/internal/cluster"
	"github.com/indexctl/indexctl/internal/locks"
	"github.com/indexctl/indexctl/internal/metrics"
	"github.com/indexctl/indexctl/internal/notify"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/controlservice/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sessionText = "01.Mar.24 12:30:45 - session log\n"

var _ = Describe("Baseline update", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	BeforeEach(func() {
		f = newFixture(nil)
		ctx = context.Background()
	})

	It("rebuilds the index and rolls it out on the whole cluster", func() {
		p := f.pipeline(ModeBaseline, "Forge")
		Expect(p.Run(ctx)).To(Succeed())

		Expect(f.started()).To(Equal([]string{"LogServer", "Forge", "Dgidx", "Dgraph1", "Dgraph2", "Dgraph3"}))
		Expect(f.controller.Calls("StartCopyFiles")).To(HaveLen(3 + 3))
		Expect(f.admin.Calls("roll")).To(HaveLen(1))

		By("holding the update lock only while running", func() {
			setFlags := f.controller.Calls("SetFlag")
			Expect(setFlags).To(HaveLen(1))
			Expect(setFlags[0].Flag).To(Equal(locks.UpdateFlag))
			Expect(f.controller.Calls("RemoveAllFlags")).To(HaveLen(1))
			Expect(f.controller.Flags(appID)).To(BeEmpty())
		})

		By("notifying the start and the outcome", func() {
			messages := f.notifier.Messages()
			Expect(f.notifier.Events()).To(Equal([]notify.Event{notify.EventStarted, notify.EventSucceeded}))
			Expect(messages[0].Body).To(ContainSubstring("/apps/wine/data/incoming"))
			Expect(messages[1].Subject).To(Equal("Index successfully updated"))
			Expect(messages[1].Body).To(Equal(sessionText))
			Expect(messages[1].RunID).To(Equal(p.RunID()))
			_, err := uuid.Parse(p.RunID())
			Expect(err).ToNot(HaveOccurred())
		})

		Expect(testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(appID, "baseline", "success"))).
			To(Equal(float64(1)))
	})

	It("runs the forge and the indexer after archiving their previous output", func() {
		Expect(f.pipeline(ModeBaselineWithoutApply, "Forge").Run(ctx)).To(Succeed())

		var backups []string
		for _, call := range f.controller.Calls("StartBackupFiles") {
			backups = append(backups, call.Backup.Dir)
		}
		Expect(backups[:3]).To(Equal([]string{
			"/apps/wine/logs/forges/Forge",
			"/apps/wine/data/dgidx_output",
			"/apps/wine/logs/dgidxs/Dgidx",
		}))
		Expect(f.controller.Calls("StartShell")[0].Shell.Cmd).
			To(Equal("find /apps/wine/data/forge_output -mindepth 1 -delete"))
	})

	It("only tests the new index when it must not be applied", func() {
		Expect(f.pipeline(ModeBaselineWithoutApply, "Forge").Run(ctx)).To(Succeed())

		Expect(f.started()).To(Equal([]string{"LogServer", "Forge", "Dgidx", "Dgraph1"}))
		Expect(f.admin.Calls("roll")).To(BeEmpty())
		Expect(f.controller.Flags(appID)).To(BeEmpty())
	})

	It("doesn't start the log server when it's already running", func() {
		f.controller.SetComponentStatus("LogServer", fake.Statuses(controlservice.StateRunning))
		Expect(f.pipeline(ModeBaseline, "Forge").Run(ctx)).To(Succeed())
		Expect(f.started()).ToNot(ContainElement("LogServer"))
	})

	It("stops when the new index can't be applied to the test hosts", func() {
		f.controller.StartScript = func(componentID string) fake.Script {
			if componentID == "Dgraph1" {
				return fake.Statuses(controlservice.StateStarting, controlservice.StateFailed)
			}
			return nil
		}

		err := f.pipeline(ModeBaseline, "Forge").Run(ctx)
		Expect(err).To(MatchError(ErrIndexTestFailed))

		var fatalError *FatalError
		Expect(errors.As(err, &fatalError)).To(BeTrue())
		Expect(fatalError.Stage).To(Equal(StageTestIndex))

		Expect(f.started()).To(Equal([]string{"LogServer", "Forge", "Dgidx", "Dgraph1"}))
		Expect(f.admin.Calls("roll")).To(BeEmpty())
		Expect(f.controller.Flags(appID)).To(BeEmpty())

		messages := f.notifier.Messages()
		last := messages[len(messages)-1]
		Expect(last.Event).To(Equal(notify.EventFailed))
		Expect(last.Subject).To(HavePrefix("Script failed: test-index"))
		Expect(last.Body).To(Equal(sessionText))
		Expect(testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(appID, "baseline", "failure"))).
			To(Equal(float64(1)))
	})

	It("stops when the forge fails", func() {
		f.controller.StartScript = func(componentID string) fake.Script {
			if componentID == "Forge" {
				return append(fake.Statuses(controlservice.StateRunning), fake.Failed("out of memory")...)
			}
			return nil
		}

		err := f.pipeline(ModeBaseline, "Forge").Run(ctx)
		Expect(err).To(MatchError(ErrBatchFailed))
		Expect(err.Error()).To(ContainSubstring("out of memory"))
		Expect(f.started()).To(Equal([]string{"LogServer", "Forge"}))
		Expect(f.controller.Flags(appID)).To(BeEmpty())
	})

	It("refuses to run while another update holds the lock", func() {
		acquired, err := f.controller.SetFlag(ctx, appID, locks.UpdateFlag)
		Expect(err).ToNot(HaveOccurred())
		Expect(acquired).To(BeTrue())

		err = f.pipeline(ModeBaseline, "Forge").Run(ctx)
		Expect(err).To(MatchError(ErrLockHeld))
		Expect(f.started()).To(BeEmpty())
		Expect(f.controller.Calls("RemoveAllFlags")).To(BeEmpty())
		Expect(f.controller.Flags(appID)).To(Equal([]string{locks.UpdateFlag}))
		Expect(f.notifier.Events()).To(Equal([]notify.Event{notify.EventFailed}))
	})

	It("checks the forge exists before touching the application", func() {
		err := f.pipeline(ModeBaseline, "NoSuchForge").Run(ctx)
		Expect(err).To(MatchError(ErrForgeNotFound))
		Expect(f.controller.Calls("SetFlag")).To(BeEmpty())
	})

	It("checks the mode", func() {
		Expect(f.pipeline("sideways", "Forge").Run(ctx)).ToNot(Succeed())
		Expect(f.controller.Calls("SetFlag")).To(BeEmpty())
	})

	It("writes the metrics when configured", func() {
		fileName := filepath.Join(GinkgoT().TempDir(), "indexctl.prom")
		p := f.pipeline(ModeApplyIndex, "")
		p.options.MetricsTextfile = fileName
		Expect(p.Run(ctx)).To(Succeed())

		content, err := os.ReadFile(fileName)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(ContainSubstring(`indexctl_runs_total{application="wine",mode="apply-index",result="success"} 1`))
	})
})

var _ = Describe("Partial update", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	BeforeEach(func() {
		f = newFixture(nil)
		ctx = context.Background()
	})

	It("distributes and applies the update", func() {
		Expect(f.pipeline(ModePartial, "PartialForge").Run(ctx)).To(Succeed())

		Expect(f.started()).To(Equal([]string{"LogServer", "PartialForge"}))
		Expect(f.controller.Calls("StartShell")[0].Shell.Cmd).To(HavePrefix(
			"mv /apps/wine/data/partials/forge_output/wine-sgmt0.records.xml"))
		Expect(f.controller.Calls("StartCopyFiles")).To(HaveLen(3))
		Expect(f.admin.Calls("update")).To(HaveLen(3))
		Expect(f.controller.Flags(appID)).To(BeEmpty())
	})

	It("reports the engines that couldn't be updated", func() {
		f.admin.SetDown("mdex02", 15000, true)

		p := f.pipeline(ModePartial, "PartialForge")
		Expect(p.Run(ctx)).To(Succeed())
		Expect(p.SoftFailures()).To(HaveOccurred())

		messages := f.notifier.Messages()
		last := messages[len(messages)-1]
		Expect(last.Event).To(Equal(notify.EventSucceeded))
		Expect(last.Subject).To(Equal("Index updated with errors"))
		Expect(last.Body).To(ContainSubstring("Dgraph2 on MDEXHost2"))
		Expect(last.Body).To(HaveSuffix(sessionText))
	})

	It("stops when an engine rejects the update", func() {
		f.admin.SetRejecting("mdex02", 15000, true)

		err := f.pipeline(ModePartial, "PartialForge").Run(ctx)
		Expect(err).To(MatchError(cluster.ErrUpdateRejected))

		var fatalError *FatalError
		Expect(errors.As(err, &fatalError)).To(BeTrue())
		Expect(fatalError.Stage).To(Equal(StageApplyUpdate))
		Expect(f.admin.Calls("update")).To(HaveLen(2))
		Expect(f.controller.Flags(appID)).To(BeEmpty())
	})
})

var _ = Describe("Index maintenance", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	BeforeEach(func() {
		f = newFixture(nil)
		ctx = context.Background()
	})

	It("applies the distributed index", func() {
		Expect(f.pipeline(ModeApplyIndex, "").Run(ctx)).To(Succeed())

		Expect(f.started()).To(Equal([]string{"LogServer", "Dgraph1", "Dgraph2", "Dgraph3"}))
		Expect(f.controller.Calls("StartCopyFiles")).To(HaveLen(3))
		Expect(f.admin.Calls("roll")).To(HaveLen(1))
	})

	It("restores the previous index and rolls it out", func() {
		Expect(f.pipeline(ModeRollbackIndex, "").Run(ctx)).To(Succeed())

		rollbacks := f.controller.Calls("StartRollbackFiles")
		Expect(rollbacks).To(HaveLen(1))
		Expect(rollbacks[0].Rollback.Dir).To(Equal("/apps/wine/data/dgidx_output"))
		Expect(f.controller.Calls("StartCopyFiles")).To(HaveLen(3 + 3))
		Expect(f.started()).To(Equal([]string{"LogServer", "Dgraph1", "Dgraph2", "Dgraph3"}))
	})

	It("stops when the previous index can't be restored", func() {
		f.controller.RollbackScript = func(controlservice.RollbackRequest) fake.Script {
			return fake.Failed("no backup found")
		}

		err := f.pipeline(ModeRollbackIndex, "").Run(ctx)
		Expect(err).To(MatchError(ErrRollbackFailed))
		Expect(f.controller.Calls("StartCopyFiles")).To(BeEmpty())
		Expect(f.controller.Flags(appID)).To(BeEmpty())
	})
})

var _ = Describe("Cancellation", func() {
	It("releases the locks without waiting for the running operation", func() {
		var blocking *blockingController
		f := newFixture(func(controller *fake.Controller) controlservice.Interface {
			blocking = &blockingController{
				Controller:  controller,
				componentID: "Forge",
				entered:     make(chan struct{}),
				gate:        make(chan struct{}),
			}
			return blocking
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		result := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			result <- f.pipeline(ModeBaseline, "Forge").Run(ctx)
		}()

		Eventually(blocking.entered).Should(BeClosed())
		Expect(f.controller.Flags(appID)).To(Equal([]string{locks.UpdateFlag}))

		cancel()
		Eventually(func() []string {
			return f.controller.Flags(appID)
		}).Should(BeEmpty())
		Consistently(result, 200*time.Millisecond).ShouldNot(Receive())

		close(blocking.gate)
		var err error
		Eventually(result).Should(Receive(&err))
		Expect(err).To(MatchError(context.Canceled))
		Expect(f.notifier.Events()).To(ContainElement(notify.EventFailed))
	})
	It("delivers the failure report through notifiers honouring the context", func() {
		var (
			mu     sync.Mutex
			events []notify.Event
		)
		router := chi.NewRouter()
		router.Post("/hooks/indexctl", func(w http.ResponseWriter, r *http.Request) {
			var message notify.Message
			if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mu.Lock()
			events = append(events, message.Event)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		server := httptest.NewServer(router)
		DeferCleanup(server.Close)
		webhook, err := notify.NewWebhookNotifier(server.URL + "/hooks/indexctl")
		Expect(err).ToNot(HaveOccurred())

		var blocking *blockingController
		f := newFixture(func(controller *fake.Controller) controlservice.Interface {
			blocking = &blockingController{
				Controller:  controller,
				componentID: "Forge",
				entered:     make(chan struct{}),
				gate:        make(chan struct{}),
			}
			return blocking
		})
		p := New(f.app, Options{
			Mode:             ModeBaseline,
			ForgeID:          "Forge",
			IndexTestHostIDs: []string{"MDEXHost1"},
			Notifier:         webhook,
			Session:          staticSession(sessionText),
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		result := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			result <- p.Run(ctx)
		}()

		Eventually(blocking.entered).Should(BeClosed())
		cancel()
		close(blocking.gate)

		var runErr error
		Eventually(result).Should(Receive(&runErr))
		Expect(runErr).To(MatchError(context.Canceled))
		Eventually(func() []notify.Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]notify.Event(nil), events...)
		}).Should(Equal([]notify.Event{notify.EventStarted, notify.EventFailed}))
	})
})
