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

// RollbackFirmwareSetup runs the boot-time state machine for a normal
// (non-recovery) boot. It must be called exactly once per boot, before any
// other method on Core.
func (c *Core) RollbackFirmwareSetup(developerMode bool) (BootContext, error) {
	return c.setupTPM(false, developerMode)
}

// RollbackFirmwareRead returns the current firmware key version and
// version.
func (c *Core) RollbackFirmwareRead() (keyVersion, version uint16, err error) {
	buf, err := c.tpm.Read(FirmwareVersionsIndex, counterSize)
	if err != nil {
		return 0, 0, err
	}
	keyVersion, version = unpackVersion(decodeUint32(buf))
	return keyVersion, version, nil
}

// RollbackFirmwareWrite advances the firmware counter.
func (c *Core) RollbackFirmwareWrite(keyVersion, version uint16) error {
	return c.safeWrite(FirmwareVersionsIndex, encodeUint32(packVersion(keyVersion, version)))
}

// RollbackFirmwareLock closes the firmware policy window: every
// global-lockable space (FIRMWARE_VERSIONS, KERNEL_VERSIONS_BACKUP,
// KERNEL_MUST_USE_BACKUP, DEVELOPER_MODE, TPM_IS_INITIALIZED) becomes
// read-only until the next power cycle.
func (c *Core) RollbackFirmwareLock() error {
	return c.tpm.SetGlobalLock()
}

// RollbackKernelRecovery runs the boot-time state machine for a recovery
// boot. Unlike RollbackFirmwareSetup, a failure here is deliberately
// swallowed (after being logged) so the recovery kernel still gets a
// chance to run and repair the device — the alternative is a device that
// can never boot again. Locking is skipped entirely in developer mode, to
// leave the TPM open for repair.
func (c *Core) RollbackKernelRecovery(developerMode bool) (BootContext, error) {
	if _, err := c.setupTPM(true, developerMode); err != nil {
		c.log.Warnf("ignoring SetupTPM failure during kernel recovery: %v", err)
	}
	ctx := BootContext{RecoveryMode: true}
	if developerMode {
		return ctx, nil
	}
	return ctx, c.tpm.SetGlobalLock()
}

// RollbackKernelRead returns the current kernel key version and version.
// During recovery it always returns (0, 0): a compromised recovery path
// must not be able to read a meaningful counter.
func (c *Core) RollbackKernelRead(ctx BootContext) (keyVersion, version uint16, err error) {
	if ctx.RecoveryMode {
		return 0, 0, nil
	}
	buf, err := c.tpm.Read(KernelVersionsIndex, counterSize)
	if err != nil {
		return 0, 0, err
	}
	keyVersion, version = unpackVersion(decodeUint32(buf))
	return keyVersion, version, nil
}

// RollbackKernelWrite advances the kernel counter. Only the leading 4-byte
// counter is rewritten; the UID tag after it is untouched. During recovery
// this is a no-op: a compromised recovery path must not be able to advance
// it.
func (c *Core) RollbackKernelWrite(ctx BootContext, keyVersion, version uint16) error {
	if ctx.RecoveryMode {
		return nil
	}
	return c.safeWrite(KernelVersionsIndex, encodeUint32(packVersion(keyVersion, version)))
}

// RollbackKernelLock closes the kernel policy window by turning physical
// presence off for the rest of the boot. During recovery this is a no-op:
// physical presence stays on for the whole of a recovery boot.
func (c *Core) RollbackKernelLock(ctx BootContext) error {
	if ctx.RecoveryMode {
		return nil
	}
	return c.tpm.LockPhysicalPresence()
}
