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

import "github.com/rancher/elemental-rollback/pkg/rollbackerr"

// setupTPM starts the TPM and establishes the root of trust for the
// anti-rollback mechanism. It can fail for three reasons: a bug, a TPM
// hardware failure, or an unexpected TPM state due to an attack. The
// caller's job for a normal boot is to propagate the error (typically
// rebooting into recovery); RollbackKernelRecovery instead discards it so
// the recovery kernel gets a chance to fix things, and skips global
// locking when in developer mode.
//
// As a side note: this sequence goes through considerable hoops to avoid
// session-scoped permissions on the index spaces, to avoid writing to TPM
// flashram at every reboot or wake-up given the limited NVRAM write
// endurance.
func (c *Core) setupTPM(recoveryMode, developerMode bool) (BootContext, error) {
	if err := c.tpm.LibInit(); err != nil {
		return BootContext{}, err
	}
	if err := c.tpm.Startup(); err != nil {
		return BootContext{}, err
	}
	if err := c.tpm.ContinueSelfTest(); err != nil {
		return BootContext{}, err
	}
	if err := c.tpm.AssertPhysicalPresence(); err != nil {
		return BootContext{}, err
	}

	disabled, deactivated, err := c.tpm.GetFlags()
	if err != nil {
		return BootContext{}, err
	}
	if disabled || deactivated {
		if err := c.tpm.SetEnable(); err != nil {
			return BootContext{}, err
		}
		if err := c.tpm.SetDeactivated(false); err != nil {
			return BootContext{}, err
		}
		return BootContext{}, rollbackerr.New(rollbackerr.MustReboot,
			"TPM was disabled or deactivated; re-enabled, needs a power cycle")
	}

	// This is expected to fail the very first time a device boots: the TPM
	// has not been provisioned yet.
	if err := c.recoverKernelSpace(); err != nil {
		initialized, ierr := c.getSpacesInitialized()
		if ierr != nil {
			return BootContext{}, ierr
		}
		if initialized {
			return BootContext{}, rollbackerr.New(rollbackerr.AlreadyInitialized,
				"kernel space recovery failed but spaces are already provisioned")
		}
		if err := c.initializeSpaces(); err != nil {
			return BootContext{}, err
		}
		if err := c.recoverKernelSpace(); err != nil {
			return BootContext{}, err
		}
	}

	if err := c.backupKernelSpace(); err != nil {
		return BootContext{}, err
	}
	if err := c.setDistrustKernelSpaceAtNextBoot(recoveryMode); err != nil {
		return BootContext{}, err
	}
	if err := c.checkDeveloperModeTransition(developerMode); err != nil {
		return BootContext{}, err
	}

	return BootContext{RecoveryMode: recoveryMode}, nil
}

// setDistrustKernelSpaceAtNextBoot arms or clears KERNEL_MUST_USE_BACKUP for
// the *next* boot: entering recovery arms it (the primary may go unlocked
// while recovery runs), and a clean non-recovery boot clears it.
func (c *Core) setDistrustKernelSpaceAtNextBoot(distrust bool) error {
	buf, err := c.tpm.Read(KernelMustUseBackupIndex, counterSize)
	if err != nil {
		return err
	}
	if decodeBool(buf) == distrust {
		return nil
	}
	return c.safeWrite(KernelMustUseBackupIndex, encodeBool(distrust))
}
