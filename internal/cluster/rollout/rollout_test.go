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

package rollout

import (
	"context"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/indexctl/indexctl/internal/testutils"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Rollout manager", func() {
	It("should coordinate rollouts when the delay is set", func() {
		startTime := time.Now()
		fakeClock := testingclock.NewFakeClock(startTime)

		const instancesRolloutDelay = 5 * time.Minute

		m := New(instancesRolloutDelay, fakeClock)

		By("allowing the first rollout immediately", func() {
			result := m.CoordinateRollout("Dgraph1")
			Expect(result.RolloutAllowed).To(BeTrue())
			Expect(result.TimeToWait).To(BeZero())
			m.InstanceStarted("Dgraph1")
		})

		By("waiting for one minute", func() {
			fakeClock.Step(1 * time.Minute)
		})

		By("checking that a rollout of an instance is not allowed", func() {
			result := m.CoordinateRollout("Dgraph2")
			Expect(result.RolloutAllowed).To(BeFalse())
			Expect(result.TimeToWait).To(Equal(4 * time.Minute))
			Expect(m.lastUpdate).To(Equal(startTime))
			Expect(m.lastInstance).To(Equal("Dgraph1"))
		})

		By("waiting for five minutes", func() {
			fakeClock.Step(5 * time.Minute)
		})

		By("checking that a rollout of an instance is allowed", func() {
			result := m.CoordinateRollout("Dgraph2")
			Expect(result.RolloutAllowed).To(BeTrue())
			Expect(result.TimeToWait).To(BeZero())
		})
	})

	It("should allow all rollouts when the delay is not set", func() {
		m := New(0, testingclock.NewFakeClock(time.Now()))

		Expect(m.CoordinateRollout("Dgraph1").RolloutAllowed).To(BeTrue())
		m.InstanceStarted("Dgraph1")
		Expect(m.CoordinateRollout("Dgraph2").RolloutAllowed).To(BeTrue())
	})

	It("should not delay the instance following a failed one", func() {
		m := New(time.Minute, testingclock.NewFakeClock(time.Now()))

		// Dgraph1 failed, so it's not recorded
		Expect(m.CoordinateRollout("Dgraph2").RolloutAllowed).To(BeTrue())
	})

	It("should wait for the remaining delay", func(ctx SpecContext) {
		startTime := time.Now()
		clk := testutils.NewSteppingClock(startTime)
		m := New(90*time.Second, clk)

		m.InstanceStarted("Dgraph1")
		clk.Step(30 * time.Second)
		Expect(m.WaitForRollout(ctx, "Dgraph2")).To(Succeed())
		Expect(clk.Since(startTime)).To(Equal(90 * time.Second))
	})

	It("should stop waiting when the context is cancelled", func() {
		m := New(time.Hour, testingclock.NewFakeClock(time.Now()))
		m.InstanceStarted("Dgraph1")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(m.WaitForRollout(ctx, "Dgraph2")).To(MatchError(context.Canceled))
	})
})
