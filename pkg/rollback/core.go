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

import "github.com/rancher/elemental-rollback/pkg/types"

// Core carries the dependencies the anti-rollback state machine needs: the
// TPM command surface and a logger. It has no other mutable state — the
// per-boot recovery flag lives on BootContext, not here — so a Core is
// reusable across boots in tests that simulate several reboots over the
// same backing TPM.
//
// A Core is not safe for concurrent use: the firmware boot path it models
// is single-threaded, and TPM commands are not re-entrant.
type Core struct {
	tpm types.TPM
	log types.Logger
}

// New builds a Core over the given TPM backend and logger.
func New(tpm types.TPM, log types.Logger) *Core {
	return &Core{tpm: tpm, log: log}
}

// BootContext is the per-boot value threaded through the Kernel Read/Write/
// Lock calls, instead of a process-wide recovery flag: callers hold the
// BootContext returned by RollbackFirmwareSetup or RollbackKernelRecovery
// for the rest of the boot instead of relying on hidden global state.
type BootContext struct {
	// RecoveryMode is true only when this boot entered through
	// RollbackKernelRecovery. When true, Kernel Read returns zeroed
	// counters and Kernel Write/Lock are no-ops, so a compromised recovery
	// path cannot advance or freeze the counters it is meant to repair.
	RecoveryMode bool
}
