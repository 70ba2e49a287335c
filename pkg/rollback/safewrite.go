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

// tpmClearAndReenable force-clears TPM ownership and restores the enabled,
// activated state. It does not touch PP/platform-protected NV spaces.
func (c *Core) tpmClearAndReenable() error {
	if err := c.tpm.ForceClear(); err != nil {
		return err
	}
	if err := c.tpm.SetEnable(); err != nil {
		return err
	}
	return c.tpm.SetDeactivated(false)
}

// safeWrite writes data to index, retrying once after clearing the TPM if
// the write hit the anti-wear write limit. That limit can only be hit while
// the TPM is unowned, so clearing here is both safe and the only way
// forward.
func (c *Core) safeWrite(index uint32, data []byte) error {
	err := c.tpm.Write(index, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrMaxNVWrites) {
		return err
	}
	c.log.Warnf("hit NV write limit on space 0x%x, clearing TPM and retrying", index)
	if err := c.tpmClearAndReenable(); err != nil {
		return err
	}
	return c.tpm.Write(index, data)
}
