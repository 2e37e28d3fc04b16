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

package locks

import (
	"context"
	"errors"

	"github.com/indexctl/indexctl/pkg/controlservice/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lock manager", func() {
	var (
		ctx        context.Context
		controller *fake.Controller
		manager    *Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		controller = fake.New(nil)
		manager = NewManager(controller, "wine")
	})

	It("acquires a free lock", func() {
		acquired, err := manager.AcquireLock(ctx, UpdateFlag)
		Expect(err).ToNot(HaveOccurred())
		Expect(acquired).To(BeTrue())
		Expect(controller.Flags("wine")).To(Equal([]string{UpdateFlag}))
	})

	It("doesn't acquire a lock twice", func() {
		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())

		acquired, err := manager.AcquireLock(ctx, UpdateFlag)
		Expect(err).ToNot(HaveOccurred())
		Expect(acquired).To(BeFalse())
		Expect(controller.Flags("wine")).To(Equal([]string{UpdateFlag}))
	})

	It("scopes the locks to the application", func() {
		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())
		Expect(NewManager(controller, "beer").AcquireLock(ctx, UpdateFlag)).To(BeTrue())
	})

	It("releases a single lock", func() {
		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())
		Expect(manager.AcquireLock(ctx, BaselineDataReadyFlag)).To(BeTrue())

		Expect(manager.ReleaseLock(ctx, UpdateFlag)).To(Succeed())
		Expect(manager.IsLockSet(ctx, UpdateFlag)).To(BeFalse())
		Expect(manager.IsLockSet(ctx, BaselineDataReadyFlag)).To(BeTrue())
	})

	It("releases every lock and can do it more than once", func() {
		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())
		Expect(manager.AcquireLock(ctx, PartialDataReadyFlag)).To(BeTrue())

		Expect(manager.ReleaseAllLocks(ctx)).To(Succeed())
		Expect(manager.ReleaseAllLocks(ctx)).To(Succeed())
		Expect(manager.ListLocks(ctx)).To(BeEmpty())

		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())
	})

	It("lists the held locks sorted by name", func() {
		Expect(manager.AcquireLock(ctx, UpdateFlag)).To(BeTrue())
		Expect(manager.AcquireLock(ctx, BaselineDataReadyFlag)).To(BeTrue())
		Expect(manager.ListLocks(ctx)).To(Equal([]string{BaselineDataReadyFlag, UpdateFlag}))
	})

	It("reports controller failures", func() {
		controller.FailNext("SetFlag", errors.New("connection refused"))
		_, err := manager.AcquireLock(ctx, UpdateFlag)
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(controller.Flags("wine")).To(BeEmpty())
	})

	It("knows the flags used by indexctl", func() {
		Expect(KnownFlags.Has(UpdateFlag)).To(BeTrue())
		Expect(KnownFlags.Has("reindex")).To(BeFalse())
	})
})
