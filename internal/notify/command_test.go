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
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Command notifier", func() {
	It("refuses empty commands", func() {
		_, err := NewCommandNotifier("   ")
		Expect(err).To(MatchError(ErrEmptyCommand))
	})

	It("refuses unbalanced quotes", func() {
		_, err := NewCommandNotifier(`mail -s "indexctl`)
		Expect(err).To(HaveOccurred())
	})

	It("passes the body on the standard input", func() {
		dir := GinkgoT().TempDir()
		script := filepath.Join(dir, "notify.sh")
		output := filepath.Join(dir, "notification.txt")
		Expect(os.WriteFile(script, []byte(
			"cat > \"$1\"\necho \"$INDEXCTL_EVENT|$INDEXCTL_SUBJECT|$INDEXCTL_APPLICATION\" >> \"$1\"\n",
		), 0o600)).To(Succeed())

		notifier, err := NewCommandNotifier(fmt.Sprintf("sh %s %s", script, output))
		Expect(err).ToNot(HaveOccurred())
		Expect(notifier.Notify(context.Background(), Message{
			AppID:   "wine",
			Event:   EventFailed,
			Subject: "Script failed",
			Body:    "01.Mar.24 12:30:45 - Running forge\n",
		})).To(Succeed())

		content, err := os.ReadFile(output)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("01.Mar.24 12:30:45 - Running forge\nfailed|Script failed|wine\n"))
	})

	It("fails when the command fails", func() {
		notifier, err := NewCommandNotifier("sh -c 'exit 2'")
		Expect(err).ToNot(HaveOccurred())
		Expect(notifier.Notify(context.Background(), Message{})).ToNot(Succeed())
	})
})
