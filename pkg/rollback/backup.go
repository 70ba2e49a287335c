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

// backupKernelSpace copies the primary kernel counter into the backup space
// whenever it has advanced. The backup only ever follows the primary
// upward; if it is ever observed ahead of the primary, something is wrong
// in a way this core cannot safely proceed past.
func (c *Core) backupKernelSpace() error {
	primaryBuf, err := c.tpm.Read(KernelVersionsIndex, KernelSpaceSize)
	if err != nil {
		return err
	}
	backupBuf, err := c.tpm.Read(KernelVersionsBackupIndex, counterSize)
	if err != nil {
		return err
	}

	primary := decodeUint32(primaryBuf[:counterSize])
	backup := decodeUint32(backupBuf)

	switch {
	case primary == backup:
		return nil
	case primary < backup:
		return rollbackerr.New(rollbackerr.InternalInconsistency,
			"kernel backup counter is ahead of the primary counter")
	default:
		return c.safeWrite(KernelVersionsBackupIndex, encodeUint32(primary))
	}
}
