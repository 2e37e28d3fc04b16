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

	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/controlservice/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Component kinds", func() {
	DescribeTable("capabilities",
		func(kind Kind, capability Capability) {
			Expect(kind.Capability()).To(Equal(capability))
		},
		Entry("forge", KindForge, CapabilityBatch),
		Entry("indexer", KindIndexer, CapabilityBatch),
		Entry("engine", KindEngine, CapabilityService),
		Entry("log server", KindLogServer, CapabilityService),
	)
})

var _ = Describe("Component", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
	})

	Context("awaiting operations", func() {
		It("polls until the operation leaves the Running state", func() {
			f.controller.ShellScript = func(controlservice.ShellRequest) fake.Script {
				return fake.Statuses(
					controlservice.StateRunning,
					controlservice.StateRunning,
					controlservice.StateNotRunning,
				)
			}
			forge := f.forge()

			token, err := forge.Shell(ctx, "true")
			Expect(err).ToNot(HaveOccurred())
			Expect(token.Known()).To(BeFalse())

			ok, err := forge.AwaitTerminal(ctx, token)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(f.controller.Polls(token.ID)).To(Equal(3))
			Expect(f.clock.Since(startTime)).To(Equal(2 * DefaultPollInterval))
		})

		It("honors the component poll interval", func() {
			f.controller.ShellScript = func(controlservice.ShellRequest) fake.Script {
				return fake.Statuses(controlservice.StateRunning, controlservice.StateNotRunning)
			}
			forge := f.forge()
			forge.PollInterval = 3 * DefaultPollInterval

			token, err := forge.Shell(ctx, "true")
			Expect(err).ToNot(HaveOccurred())
			_, err = forge.AwaitTerminal(ctx, token)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.clock.Since(startTime)).To(Equal(3 * DefaultPollInterval))
		})

		It("records the failure message of failed operations", func() {
			f.controller.ShellScript = func(controlservice.ShellRequest) fake.Script {
				return fake.Script{
					{State: controlservice.StateRunning},
					{State: controlservice.StateFailed, FailureMessage: "disk full"},
				}
			}
			forge := f.forge()

			token, err := forge.Shell(ctx, "true")
			Expect(err).ToNot(HaveOccurred())
			ok, err := forge.AwaitTerminal(ctx, token)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(forge.FailureMessage()).To(Equal("disk full"))
			Expect(token.IsFailed()).To(BeTrue())
			Expect(token.NeedsRefresh()).To(BeFalse())
		})

		It("propagates polling errors", func() {
			forge := f.forge()
			token, err := forge.Shell(ctx, "true")
			Expect(err).ToNot(HaveOccurred())

			f.controller.FailNext("GetUtilityStatus", errors.New("connection reset"))
			_, err = forge.AwaitTerminal(ctx, token)
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})

		It("stops polling when the context is cancelled", func() {
			f.controller.ShellScript = func(controlservice.ShellRequest) fake.Script {
				return fake.Statuses(controlservice.StateRunning)
			}
			forge := f.forge()
			token, err := forge.Shell(ctx, "true")
			Expect(err).ToNot(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = forge.AwaitTerminal(cancelled, token)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Context("status", func() {
		It("considers Starting and Running as active", func() {
			engine := f.engine()
			f.controller.SetComponentStatus(engine.ID, fake.Statuses(
				controlservice.StateStarting,
				controlservice.StateRunning,
				controlservice.StateNotRunning,
			))

			for _, expected := range []bool{true, true, false} {
				active, err := engine.IsActive(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(active).To(Equal(expected))
			}
		})

		It("captures the failure message when checking for failures", func() {
			forge := f.forge()
			f.controller.SetComponentStatus(forge.ID, fake.Failed("bad input"))

			failed, err := forge.IsFailed(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(failed).To(BeTrue())
			Expect(forge.FailureMessage()).To(Equal("bad input"))
		})
	})

	Context("starting and stopping", func() {
		It("waits for a service to leave the Starting state", func() {
			engine := f.engine()
			Expect(engine.Start(ctx, true)).To(Succeed())

			// Starting, then Running
			Expect(f.controller.Calls("GetComponentStatus")).To(HaveLen(2))
			Expect(f.clock.Since(startTime)).To(Equal(DefaultPollInterval))
		})

		It("doesn't wait when not requested", func() {
			engine := f.engine()
			Expect(engine.Start(ctx, false)).To(Succeed())
			Expect(f.controller.Calls("GetComponentStatus")).To(BeEmpty())
		})

		It("waits for a batch component to complete", func() {
			forge := f.forge()
			Expect(forge.Start(ctx, true)).To(Succeed())

			// Running, then NotRunning
			Expect(f.controller.Calls("GetComponentStatus")).To(HaveLen(2))
		})

		It("waits for a stopped component to be inactive", func() {
			engine := f.engine()
			f.controller.StopScript = func(string) fake.Script {
				return fake.Statuses(controlservice.StateRunning, controlservice.StateNotRunning)
			}
			Expect(engine.Stop(ctx, true)).To(Succeed())
			Expect(f.controller.Calls("StopComponent")).To(HaveLen(1))
			Expect(f.controller.Calls("GetComponentStatus")).To(HaveLen(2))
		})
	})

	Context("file operations", func() {
		It("copies the content of the source directory", func() {
			engine := f.engine()
			_, err := engine.CopyFiles(ctx, "ITLHost", "/apps/wine/data/dgidx_output/", "/dest")
			Expect(err).ToNot(HaveOccurred())

			calls := f.controller.Calls("StartCopyFiles")
			Expect(calls).To(HaveLen(1))
			Expect(*calls[0].Copy).To(Equal(controlservice.CopyRequest{
				FromHostID:      "ITLHost",
				SourcePath:      "/apps/wine/data/dgidx_output/*",
				ToHostID:        "MDEXHost1",
				DestinationPath: "/dest",
				Recursive:       true,
			}))
		})

		It("doesn't add the wildcard twice", func() {
			engine := f.engine()
			_, err := engine.CopyFiles(ctx, "ITLHost", "/source/*", "/dest")
			Expect(err).ToNot(HaveOccurred())
			Expect(f.controller.Calls("StartCopyFiles")[0].Copy.SourcePath).To(Equal("/source/*"))
		})

		It("copies a single file without recursion", func() {
			engine := f.engine()
			token, err := engine.CopyFile(ctx, "ITLHost", "/out/20240301123045_wine-sgmt0.records.xml", "/updates")
			Expect(err).ToNot(HaveOccurred())
			Expect(token.HostID).To(Equal("MDEXHost1"))

			calls := f.controller.Calls("StartCopyFiles")
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Copy.SourcePath).To(Equal("/out/20240301123045_wine-sgmt0.records.xml"))
			Expect(calls[0].Copy.Recursive).To(BeFalse())
		})

		It("cleans directories quoting their names", func() {
			forge := f.forge()
			ok, err := forge.CleanDir(ctx, "/srv/my dir")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			calls := f.controller.Calls("StartShell")
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Shell.HostID).To(Equal("ITLHost"))
			Expect(calls[0].Shell.Cmd).To(Equal("find '/srv/my dir' -mindepth 1 -delete"))
		})

		It("uses the configured clean command", func() {
			f.remote.CleanDirCommand = "rm -rf %s/*"
			forge := f.forge()
			_, err := forge.CleanDir(ctx, "/data/out")
			Expect(err).ToNot(HaveOccurred())
			Expect(f.controller.Calls("StartShell")[0].Shell.Cmd).To(Equal("rm -rf /data/out/*"))
		})

		It("cleans the output directory of batch components", func() {
			ok, err := f.forge().CleanDirs(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			calls := f.controller.Calls("StartShell")
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Shell.Cmd).To(ContainSubstring("/apps/wine/data/forge_output"))
		})

		It("cleans the distribution and update directories of the engines", func() {
			ok, err := f.engine().CleanDirs(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			calls := f.controller.Calls("StartShell")
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].Shell.Cmd).To(ContainSubstring("local_dgraph_input"))
			Expect(calls[1].Shell.Cmd).To(ContainSubstring("local_cumulative_partials"))
		})
	})

	Context("log archiving", func() {
		It("keeps one backup by default", func() {
			forge := f.forge()
			ok, err := forge.ArchiveLog(ctx, true)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			calls := f.controller.Calls("StartBackupFiles")
			Expect(calls).To(HaveLen(1))
			Expect(*calls[0].Backup).To(Equal(controlservice.BackupRequest{
				HostID:     "ITLHost",
				Dir:        "/apps/wine/logs/forges/Forge",
				NumBackups: 1,
				Method:     controlservice.BackupMethodMove,
			}))
			Expect(f.controller.Polls(calls[0].Token)).To(Equal(1))
		})

		It("keeps the number of backups set in the custom properties", func() {
			forge := f.forge()
			forge.Properties[NumLogBackupsProperty] = "5"
			_, err := forge.ArchiveLog(ctx, false)
			Expect(err).ToNot(HaveOccurred())

			calls := f.controller.Calls("StartBackupFiles")
			Expect(calls[0].Backup.NumBackups).To(Equal(5))
			Expect(f.controller.Polls(calls[0].Token)).To(BeZero())
		})

		It("falls back to the default on malformed properties", func() {
			forge := f.forge()
			forge.Properties[NumLogBackupsProperty] = "many"
			Expect(forge.NumLogBackups()).To(Equal(1))
			forge.Properties[NumLogBackupsProperty] = "-2"
			Expect(forge.NumLogBackups()).To(Equal(1))
		})
	})

	It("describes itself", func() {
		Expect(f.engine().String()).To(Equal("Dgraph1 mdex01:15000"))
		Expect(f.forge().String()).To(Equal("Forge on ITLHost"))
	})
})
