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

// Package rollback implements the anti-rollback core: the NVRAM-backed
// firmware and kernel version counters, and the boot-time state machine
// that provisions, recovers, backs up and locks them.
package rollback

import "github.com/rancher/elemental-rollback/pkg/types"

// NV space indices. Stable across the lifetime of a device; changing one
// orphans whatever was provisioned under the old index.
const (
	FirmwareVersionsIndex    uint32 = 0x1007
	KernelVersionsIndex      uint32 = 0x1008
	KernelVersionsBackupIndex uint32 = 0x1009
	KernelMustUseBackupIndex uint32 = 0x100A
	DeveloperModeIndex       uint32 = 0x100B
	TPMIsInitializedIndex    uint32 = 0x100C
)

// counterSize is the width of every plain uint32 counter space.
const counterSize uint32 = 4

// KernelSpaceUID is the fixed tag appended after the 4-byte counter in
// KERNEL_VERSIONS. Its presence (and an exact byte match) is what lets
// RecoverKernelSpace tell a legitimately-provisioned space apart from one
// a TPM owner redefined out from under the firmware.
var KernelSpaceUID = []byte("ELEM-ROLLBACK-KERNEL-SPACE-V1\x00\x00")

// KernelSpaceSize is the total size of KERNEL_VERSIONS: the counter plus
// the UID tag.
var KernelSpaceSize = counterSize + uint32(len(KernelSpaceUID))

// firmwarePerm and kernelPerm are the two permission sets assigned below.
const (
	firmwarePerm = types.AttrGlobalLock | types.AttrPPWrite
	kernelPerm   = types.AttrPPWrite
)
