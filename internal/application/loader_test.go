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

package application

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/controlservice/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Loading applications", func() {
	var (
		ctx        context.Context
		controller *fake.Controller
		remote     *component.Remote
	)

	BeforeEach(func() {
		ctx = context.Background()
		controller = fake.New(nil)
		remote = &component.Remote{Controller: controller}
	})

	Context("from the controller", func() {
		It("loads provisioned applications", func() {
			controller.AddApplication(wineDefinition())

			defined, err := IsDefined(ctx, controller, "wine")
			Expect(err).ToNot(HaveOccurred())
			Expect(defined).To(BeTrue())

			app, err := Load(ctx, "wine", remote, Options{ControllerHost: "eac01", ControllerPort: 8888})
			Expect(err).ToNot(HaveOccurred())
			Expect(app.Engines.Len()).To(Equal(3))
			Expect(app.ControllerHost).To(Equal("eac01"))
		})

		It("refuses applications that are not defined", func() {
			_, err := Load(ctx, "wine", remote, Options{})
			Expect(err).To(MatchError(ErrNotDefined))
			Expect(controller.Calls("GetApplication")).To(BeEmpty())
		})

		It("propagates controller errors", func() {
			controller.FailNext("ListApplicationIDs", errors.New("connection refused"))
			_, err := Load(ctx, "wine", remote, Options{})
			Expect(err).To(MatchError(ContainSubstring("connection refused")))
		})
	})

	Context("from a file", func() {
		writeDefinition := func(definition *controlservice.ApplicationDefinition) string {
			content, err := json.Marshal(definition)
			Expect(err).ToNot(HaveOccurred())
			fileName := filepath.Join(GinkgoT().TempDir(), "wine.json")
			Expect(os.WriteFile(fileName, content, 0o600)).To(Succeed())
			return fileName
		}

		It("loads valid definitions", func() {
			app, err := LoadFile(ctx, writeDefinition(wineDefinition()), remote, Options{})
			Expect(err).ToNot(HaveOccurred())
			Expect(app.ID).To(Equal("wine"))
			Expect(controller.Calls()).To(BeEmpty())
		})

		It("reads YAML definitions", func() {
			fileName := filepath.Join(GinkgoT().TempDir(), "wine.yaml")
			Expect(os.WriteFile(fileName, []byte(`
applicationID: wine
hosts:
- hostID: ITLHost
  hostname: itl01
components:
- type: forge
  componentID: Forge
  hostID: ITLHost
  workingDir: /apps/wine
- type: indexer
  componentID: Dgidx
  hostID: ITLHost
  workingDir: /apps/wine
  outputPrefix: ./data/dgidx_output/wine
- type: logserver
  componentID: LogServer
  hostID: ITLHost
  workingDir: /apps/wine
  port: 15010
`), 0o600)).To(Succeed())

			definition, err := ReadDefinitionFile(fileName)
			Expect(err).ToNot(HaveOccurred())
			Expect(definition.Components).To(HaveLen(3))
			Expect(definition.Components[2].Port).To(Equal(15010))
		})

		DescribeTable("refuses invalid definitions",
			func(mutate func(*controlservice.ApplicationDefinition)) {
				definition := wineDefinition()
				mutate(definition)
				_, err := LoadFile(ctx, writeDefinition(definition), remote, Options{})
				Expect(err).To(MatchError(ErrInvalidDefinition))
			},
			Entry("without id", func(d *controlservice.ApplicationDefinition) {
				d.ApplicationID = ""
			}),
			Entry("without hosts", func(d *controlservice.ApplicationDefinition) {
				d.Hosts = nil
			}),
			Entry("with less than three components", func(d *controlservice.ApplicationDefinition) {
				d.Components = d.Components[:2]
			}),
		)

		It("refuses malformed files", func() {
			fileName := filepath.Join(GinkgoT().TempDir(), "broken.json")
			Expect(os.WriteFile(fileName, []byte("{ not json"), 0o600)).To(Succeed())
			_, err := ReadDefinitionFile(fileName)
			Expect(err).To(MatchError(ErrInvalidDefinition))
		})
	})
})
