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

package configparser

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// FakeData is an example of the configuration structure
// that can be used with this configparser
type FakeData struct {
	// ApplicationName is the name of the controlled application
	ApplicationName string `json:"applicationName" env:"APP_NAME"`

	// CanaryHostIDs is the list of hosts receiving the index first
	CanaryHostIDs []string `json:"canaryHostIDs" env:"INDEX_TEST_HOST_IDS"`

	// Forges is a list of forge ids
	Forges []string `json:"forges" env:"FORGES"`

	// ControllerPort is the port of the application controller
	ControllerPort int `json:"controllerPort" env:"CONTROLLER_PORT"`

	// Pause is the time waited between engine restarts
	Pause time.Duration `json:"pause" env:"PAUSE"`

	// DryRun is a boolean switch
	DryRun bool `json:"dryRun" env:"DRY_RUN"`

	unexported string
}

var defaultCanaryHostIDs = []string{
	"first",
	"second",
	"third",
}

const appName = "wine"

// readConfigMap reads the configuration from the environment and the passed in data map
func (config *FakeData) readConfigMap(data map[string]string) {
	ReadConfigMap(config, &FakeData{CanaryHostIDs: defaultCanaryHostIDs}, data)
}

var _ = Describe("Data test suite", func() {
	It("correctly splits and trims lists", func() {
		list := splitAndTrim("string, with space , inside\t,,")
		Expect(list).To(Equal([]string{"string", "with space", "inside"}))
	})

	It("loads values from a map", func() {
		config := &FakeData{}
		GinkgoT().Setenv("APP_NAME", "")
		GinkgoT().Setenv("INDEX_TEST_HOST_IDS", "")
		GinkgoT().Setenv("FORGES", "")
		config.readConfigMap(map[string]string{
			"APP_NAME":            appName,
			"INDEX_TEST_HOST_IDS": "one, two",
			"FORGES":              "alpha, beta",
			"PAUSE":               "90s",
			"DRY_RUN":             "true",
		})
		Expect(config.ApplicationName).To(Equal(appName))
		Expect(config.CanaryHostIDs).To(Equal([]string{"one", "two"}))
		Expect(config.Forges).To(Equal([]string{"alpha", "beta"}))
		Expect(config.Pause).To(Equal(90 * time.Second))
		Expect(config.DryRun).To(BeTrue())
	})

	It("loads values from environment", func() {
		config := &FakeData{}
		GinkgoT().Setenv("APP_NAME", appName)
		GinkgoT().Setenv("INDEX_TEST_HOST_IDS", "one, two")
		GinkgoT().Setenv("FORGES", "alpha, beta")
		GinkgoT().Setenv("CONTROLLER_PORT", "2")
		config.readConfigMap(nil)
		Expect(config.ApplicationName).To(Equal(appName))
		Expect(config.CanaryHostIDs).To(Equal([]string{"one", "two"}))
		Expect(config.Forges).To(Equal([]string{"alpha", "beta"}))
		Expect(config.ControllerPort).To(Equal(2))
	})

	It("gives the precedence to the environment", func() {
		config := &FakeData{}
		ReadConfigMapWithEnv(config, &FakeData{}, map[string]string{
			"APP_NAME": "from-file",
			"PAUSE":    "10",
		}, MapEnvironment{"APP_NAME": "from-env"})
		Expect(config.ApplicationName).To(Equal("from-env"))
		Expect(config.Pause).To(Equal(10 * time.Second))
	})

	It("reset to default value if format is not correct", func() {
		config := &FakeData{
			ControllerPort: 90,
			Pause:          7 * time.Second,
		}
		GinkgoT().Setenv("PAUSE", "3600 minutes")
		GinkgoT().Setenv("CONTROLLER_PORT", "unknown")
		defaultData := &FakeData{
			ControllerPort: 8888,
			Pause:          time.Minute,
		}
		ReadConfigMap(config, defaultData, nil)
		Expect(config.Pause).To(Equal(time.Minute))
		Expect(config.ControllerPort).To(Equal(8888))
	})

	It("handles correctly default values of slices", func() {
		GinkgoT().Setenv("INDEX_TEST_HOST_IDS", "")
		GinkgoT().Setenv("FORGES", "")
		config := &FakeData{}
		config.readConfigMap(nil)
		Expect(config.CanaryHostIDs).To(Equal(defaultCanaryHostIDs))
		Expect(config.Forges).To(BeNil())
	})

	It("refuses targets that are not pointers to structs", func() {
		Expect(func() { ReadConfigMap(FakeData{}, &FakeData{}, nil) }).To(Panic())
	})
})
