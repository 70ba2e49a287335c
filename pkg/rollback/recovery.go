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
	"bytes"

	"github.com/rancher/elemental-rollback/pkg/rollbackerr"
)

// recoverKernelSpace validates KERNEL_VERSIONS and, if the previous boot
// left it untrusted, restores it from the backup.
//
// A TPM owner can remove and redefine a PP-protected space at any time
// (just not write to it), so every boot re-checks both its permissions and
// its UID tag before trusting its contents.
func (c *Core) recoverKernelSpace() error {
	mustUseBackupBuf, err := c.tpm.Read(KernelMustUseBackupIndex, counterSize)
	if err != nil {
		return err
	}
	mustUseBackup := decodeBool(mustUseBackupBuf)

	buf, err := c.tpm.Read(KernelVersionsIndex, KernelSpaceSize)
	if err != nil {
		return err
	}
	perms, err := c.tpm.GetPermissions(KernelVersionsIndex)
	if err != nil {
		return err
	}
	if perms != kernelPerm || !bytes.Equal(buf[counterSize:], KernelSpaceUID) {
		return rollbackerr.New(rollbackerr.CorruptedState,
			"KERNEL_VERSIONS has unexpected permissions or UID tag")
	}

	if !mustUseBackup {
		return nil
	}

	// The primary space was left unlocked at the end of the preceding boot
	// and cannot be trusted; restore it from the backup.
	backupBuf, err := c.tpm.Read(KernelVersionsBackupIndex, counterSize)
	if err != nil {
		return err
	}
	// Only the counter is rewritten; the UID tag after it is untouched.
	if err := c.safeWrite(KernelVersionsIndex, backupBuf); err != nil {
		return err
	}
	// Clear the distrust flag with a full 4-byte write; a zero-length
	// write would leave the space's existing contents untouched.
	return c.safeWrite(KernelMustUseBackupIndex, encodeUint32(0))
}
