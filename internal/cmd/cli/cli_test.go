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

package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/indexctl/indexctl/internal/component"
	"github.com/indexctl/indexctl/internal/configuration"
	"github.com/indexctl/indexctl/pkg/controlservice"
	"github.com/indexctl/indexctl/pkg/controlservice/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const definitionYAML = `
applicationID: wine
hosts:
- hostID: ITLHost
  hostname: itl01
- hostID: MDEXHost1
  hostname: mdex01
components:
- type: forge
  componentID: Forge
  hostID: ITLHost
  workingDir: /apps/wine
  outputDir: ./data/forge_output
- type: indexer
  componentID: Dgidx
  hostID: ITLHost
  workingDir: /apps/wine
  outputPrefix: ./data/dgidx_output/wine
- type: engine
  componentID: Dgraph1
  hostID: MDEXHost1
  workingDir: /apps/wine
  inputPrefix: ./data/dgraphs/Dgraph1/wine
  port: 15000
  properties:
  - name: localIndexDir
    value: ./data/dgraphs/local_dgraph_input
`

var _ = Describe("Global flags", func() {
	var (
		flags  *Flags
		cmd    *cobra.Command
		config *configuration.Data
	)

	BeforeEach(func() {
		for _, name := range []string{"APP_NAME", "CONTROLLER_HOST", "CONTROLLER_PORT", "APPLICATION_FILE"} {
			GinkgoT().Setenv(name, "")
		}
		flags = &Flags{}
		cmd = &cobra.Command{Use: "indexctl"}
		flags.AddFlags(cmd.Flags())
		config = configuration.NewConfiguration()
	})

	It("keeps the configuration when no flag is passed", func() {
		config.ControllerHost = "eac01"
		Expect(cmd.Flags().Parse(nil)).To(Succeed())
		Expect(flags.apply(cmd.Flags(), config)).To(Succeed())
		Expect(config.ControllerHost).To(Equal("eac01"))
		Expect(config.ControllerPort).To(Equal(8888))
	})

	It("overrides the configuration file with the flags", func() {
		fileName := filepath.Join(GinkgoT().TempDir(), "indexctl.yaml")
		Expect(os.WriteFile(fileName, []byte("APP_NAME: wine\nCONTROLLER_HOST: eac01\nCONTROLLER_PORT: 9000\n"),
			0o600)).To(Succeed())

		Expect(cmd.Flags().Parse([]string{
			"--config", fileName,
			"--controller", "eac02",
			"--application-file", "/etc/indexctl/wine.yaml",
		})).To(Succeed())
		Expect(flags.apply(cmd.Flags(), config)).To(Succeed())

		Expect(config.ApplicationName).To(Equal("wine"))
		Expect(config.ControllerHost).To(Equal("eac02"))
		Expect(config.ControllerPort).To(Equal(9000))
		Expect(config.ApplicationFile).To(Equal("/etc/indexctl/wine.yaml"))
	})

	It("fails when the configuration file can't be read", func() {
		Expect(cmd.Flags().Parse([]string{"--config", "/no/such/file.yaml"})).To(Succeed())
		Expect(flags.apply(cmd.Flags(), config)).ToNot(Succeed())
	})
})

var _ = Describe("Application loading", func() {
	var (
		ctx        context.Context
		config     *configuration.Data
		controller *fake.Controller
		remote     *component.Remote
	)

	BeforeEach(func() {
		ctx = context.Background()
		config = configuration.NewConfiguration()
		config.ApplicationName = "wine"
		config.ControllerHost = "eac01"
		controller = fake.New(nil)
		remote = &component.Remote{Controller: controller}
	})

	It("validates the configuration first", func() {
		config.ApplicationName = ""
		_, err := LoadApplication(ctx, config, remote)
		Expect(err).To(MatchError(configuration.ErrMissingApplication))
		Expect(controller.Calls()).To(BeEmpty())
	})

	It("loads the application from the definition file", func() {
		fileName := filepath.Join(GinkgoT().TempDir(), "wine.yaml")
		Expect(os.WriteFile(fileName, []byte(definitionYAML), 0o600)).To(Succeed())
		config.ApplicationFile = fileName

		app, err := LoadApplication(ctx, config, remote)
		Expect(err).ToNot(HaveOccurred())
		Expect(app.ID).To(Equal("wine"))
		Expect(app.ControllerHost).To(Equal("eac01"))
		Expect(app.Engines.IDs()).To(Equal([]string{"Dgraph1"}))
		Expect(controller.Calls()).To(BeEmpty())
	})

	It("refuses definition files of other applications", func() {
		fileName := filepath.Join(GinkgoT().TempDir(), "wine.yaml")
		Expect(os.WriteFile(fileName, []byte(definitionYAML), 0o600)).To(Succeed())
		config.ApplicationFile = fileName
		config.ApplicationName = "books"

		_, err := LoadApplication(ctx, config, remote)
		Expect(err).To(MatchError(ContainSubstring(`instead of "books"`)))
	})

	It("loads the application from the controller", func() {
		controller.AddApplication(&controlservice.ApplicationDefinition{
			ApplicationID: "wine",
			Hosts:         []controlservice.HostDefinition{{HostID: "ITLHost", Hostname: "itl01"}},
			Components: []controlservice.ComponentDefinition{
				{Type: controlservice.ComponentTypeForge, ComponentID: "Forge", HostID: "ITLHost"},
			},
		})

		app, err := LoadApplication(ctx, config, remote)
		Expect(err).ToNot(HaveOccurred())
		Expect(app.Forges.IDs()).To(Equal([]string{"Forge"}))
		Expect(controller.Calls("GetApplication")).To(HaveLen(1))
	})

	It("builds the remote handles from the configuration", func() {
		remote := NewRemote(config)
		Expect(remote.Controller).ToNot(BeNil())
		Expect(remote.Admin).ToNot(BeNil())
		Expect(remote.CleanDirCommand).To(Equal(configuration.DefaultCleanDirCommand))
	})
})
