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

package config

import (
	"fmt"

	"github.com/rancher/elemental-rollback/pkg/rollback"
	"github.com/rancher/elemental-rollback/pkg/rollback/tpmhw"
	"github.com/rancher/elemental-rollback/pkg/rollback/tpmsim"
	"github.com/rancher/elemental-rollback/pkg/types"
)

// Config holds everything needed to build a rollback.Core: the TPM
// backend, the logger, and the boot-time flags read off the kernel
// command line or an install-time source.
type Config struct {
	Logger types.Logger

	// TPM is resolved lazily, either from a directly injected backend
	// (WithTPM, WithSimulator) or by opening the device named by
	// DevicePath each time NewCore is called; the opened device is not
	// stored here.
	TPM        types.TPM
	DevicePath string

	DeveloperMode bool
	RecoveryMode  bool
}

// Option mutates a Config while it is being built. Each Option returns an
// error instead of panicking so invalid combinations (e.g. a malformed
// device path) surface through NewConfig's return value.
type Option func(c *Config) error

func WithLogger(logger types.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithDevice selects the physical or virtual TPM character device to open.
// An empty path means "use the platform default".
func WithDevice(path string) Option {
	return func(c *Config) error {
		c.DevicePath = path
		return nil
	}
}

// WithTPM injects an already-constructed backend directly, bypassing
// DevicePath entirely. Primarily useful for tests.
func WithTPM(tpm types.TPM) Option {
	return func(c *Config) error {
		c.TPM = tpm
		return nil
	}
}

// WithSimulator selects the in-memory simulator instead of a hardware
// backend. The CLI's --simulate flag uses it.
func WithSimulator() Option {
	return func(c *Config) error {
		c.TPM = tpmsim.New()
		return nil
	}
}

func WithDeveloperMode(developer bool) Option {
	return func(c *Config) error {
		c.DeveloperMode = developer
		return nil
	}
}

func WithRecoveryMode(recovery bool) Option {
	return func(c *Config) error {
		c.RecoveryMode = recovery
		return nil
	}
}

// NewConfig builds a Config from the given options, defaulting to a
// logrus-backed logger and a hardware TPM opened at the platform default
// device path. Errors from option application are returned rather than
// logged and swallowed, unlike the config this was adapted from, since a
// misconfigured anti-rollback core must never silently fall back to
// defaults.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Logger: types.NewLogger(),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, fmt.Errorf("config: applying option: %w", err)
		}
	}
	return c, nil
}

// NewCore opens the configured TPM backend, if one wasn't injected
// directly, and returns a ready rollback.Core.
func (c *Config) NewCore() (*rollback.Core, error) {
	tpm := c.TPM
	if tpm == nil {
		dev, err := tpmhw.Open(c.DevicePath)
		if err != nil {
			return nil, fmt.Errorf("config: opening TPM device: %w", err)
		}
		tpm = dev
	}
	return rollback.New(tpm, c.Logger), nil
}
