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
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Status is a read-only snapshot of the NV spaces this module owns, except
// KERNEL_VERSIONS_BACKUP, which it does not report. It is meant for
// diagnostics: a field technician or a support bundle script
// reading it must never be able to change TPM state just by asking.
type Status struct {
	Initialized bool

	FirmwareKeyVersion, FirmwareVersion uint16

	KernelKeyVersion, KernelVersion uint16
	KernelUIDValid                  bool

	KernelMustUseBackup bool
	DeveloperMode       bool
}

// Inspect reads every space except KERNEL_VERSIONS_BACKUP without mutating
// TPM state and reports every problem it finds rather than stopping at the
// first one, so a single status invocation can drive a full diagnostic
// report. It checks the KERNEL_VERSIONS UID tag but not the permissions of
// any space.
func (c *Core) Inspect() (Status, error) {
	var st Status
	var errs *multierror.Error

	initialized, err := c.getSpacesInitialized()
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("checking provisioning tombstone: %w", err))
	}
	st.Initialized = initialized
	if !initialized {
		return st, errs.ErrorOrNil()
	}

	if buf, err := c.tpm.Read(FirmwareVersionsIndex, counterSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("reading FIRMWARE_VERSIONS: %w", err))
	} else {
		st.FirmwareKeyVersion, st.FirmwareVersion = unpackVersion(decodeUint32(buf))
	}

	if buf, err := c.tpm.Read(KernelVersionsIndex, KernelSpaceSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("reading KERNEL_VERSIONS: %w", err))
	} else {
		st.KernelKeyVersion, st.KernelVersion = unpackVersion(decodeUint32(buf[:counterSize]))
		st.KernelUIDValid = bytes.Equal(buf[counterSize:], KernelSpaceUID)
		if !st.KernelUIDValid {
			errs = multierror.Append(errs, fmt.Errorf("KERNEL_VERSIONS UID tag mismatch"))
		}
	}

	if buf, err := c.tpm.Read(KernelMustUseBackupIndex, counterSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("reading KERNEL_MUST_USE_BACKUP: %w", err))
	} else {
		st.KernelMustUseBackup = decodeBool(buf)
	}

	if buf, err := c.tpm.Read(DeveloperModeIndex, counterSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("reading DEVELOPER_MODE: %w", err))
	} else {
		st.DeveloperMode = decodeBool(buf)
	}

	return st, errs.ErrorOrNil()
}
