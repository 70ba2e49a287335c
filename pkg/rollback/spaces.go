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

package rollback

import (
	"errors"

	"github.com/rancher/elemental-rollback/pkg/types"
)

// getSpacesInitialized reports whether TPM_IS_INITIALIZED exists. Its
// existence is the tombstone written last by initializeSpaces, so its
// absence means provisioning never completed (or hasn't started).
func (c *Core) getSpacesInitialized() (bool, error) {
	_, err := c.tpm.Read(TPMIsInitializedIndex, counterSize)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrBadIndex):
		return false, nil
	default:
		return false, err
	}
}

// initializeKernelVersionsSpaces defines KERNEL_VERSIONS and writes its
// zeroed counter plus the fixed UID tag, in one place since both the
// first-time provisioning path and (conceivably) a future re-provisioning
// path need the exact same init data.
func (c *Core) initializeKernelVersionsSpaces() error {
	if err := c.tpm.DefineSpace(KernelVersionsIndex, kernelPerm, KernelSpaceSize); err != nil {
		return err
	}
	initData := append(encodeUint32(0), KernelSpaceUID...)
	return c.safeWrite(KernelVersionsIndex, initData)
}

// initializeSpaces provisions every NVRAM space this core owns. It is only
// ever invoked after recoverKernelSpace has already failed, i.e. on a
// device's first boot or after a boot that was interrupted mid-provisioning.
//
// TPM_IS_INITIALIZED is defined last, without being written to: its mere
// existence is the tombstone that marks provisioning complete. This
// ordering is the core's power-loss recovery primitive — do not reorder
// it for convenience.
func (c *Core) initializeSpaces() error {
	c.log.Debug("initializing NVRAM spaces")

	if err := c.tpm.SetNvLocked(); err != nil {
		return err
	}

	if err := c.tpm.DefineSpace(FirmwareVersionsIndex, firmwarePerm, counterSize); err != nil {
		return err
	}
	if err := c.safeWrite(FirmwareVersionsIndex, encodeUint32(0)); err != nil {
		return err
	}

	if err := c.initializeKernelVersionsSpaces(); err != nil {
		return err
	}

	// KERNEL_VERSIONS_BACKUP protects the kernel counter; whether only the
	// backup is trusted is recorded in KERNEL_MUST_USE_BACKUP.
	if err := c.tpm.DefineSpace(KernelVersionsBackupIndex, firmwarePerm, counterSize); err != nil {
		return err
	}
	if err := c.safeWrite(KernelVersionsBackupIndex, encodeUint32(0)); err != nil {
		return err
	}

	if err := c.tpm.DefineSpace(KernelMustUseBackupIndex, firmwarePerm, counterSize); err != nil {
		return err
	}
	if err := c.safeWrite(KernelMustUseBackupIndex, encodeUint32(0)); err != nil {
		return err
	}

	if err := c.tpm.DefineSpace(DeveloperModeIndex, firmwarePerm, counterSize); err != nil {
		return err
	}
	if err := c.safeWrite(DeveloperModeIndex, encodeUint32(0)); err != nil {
		return err
	}

	// Tombstone: defined last, deliberately never written to. See the
	// doc comment above.
	return c.tpm.DefineSpace(TPMIsInitializedIndex, firmwarePerm, counterSize)
}
