/*
Copyright © 2021 - 2026 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/elemental-rollback/pkg/config"
	"github.com/rancher/elemental-rollback/pkg/rollback/tpmsim"
	"github.com/rancher/elemental-rollback/pkg/types"
)

var _ = Describe("Config", Label("config"), func() {
	It("builds a Core over an injected TPM backend", func() {
		sim := tpmsim.New()
		cfg, err := config.NewConfig(
			config.WithLogger(types.NewNullLogger()),
			config.WithTPM(sim),
			config.WithDeveloperMode(true),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.DeveloperMode).To(BeTrue())

		core, err := cfg.NewCore()
		Expect(err).NotTo(HaveOccurred())
		Expect(core).NotTo(BeNil())

		_, err = core.RollbackFirmwareSetup(cfg.DeveloperMode)
		Expect(err).NotTo(HaveOccurred())
	})

	It("builds a Core over the in-memory simulator via WithSimulator", func() {
		cfg, err := config.NewConfig(config.WithSimulator())
		Expect(err).NotTo(HaveOccurred())

		core, err := cfg.NewCore()
		Expect(err).NotTo(HaveOccurred())
		_, err = core.RollbackFirmwareSetup(false)
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates an error from a failing option", func() {
		boom := errors.New("boom")
		_, err := config.NewConfig(func(c *config.Config) error {
			return boom
		})
		Expect(errors.Is(err, boom)).To(BeTrue())
	})

	It("defaults to a logrus-backed logger when none is given", func() {
		cfg, err := config.NewConfig(config.WithTPM(tpmsim.New()))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Logger).NotTo(BeNil())
	})
})
