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

// Package rollbackerr provides the typed status codes the anti-rollback
// core surfaces to its callers, and the exit codes the CLI maps them to.
package rollbackerr

import "errors"

// Status is one of the result codes SetupTPM and its callers distinguish.
type Status int

const (
	// MustReboot means the TPM was found disabled or deactivated and has
	// been re-enabled; the settings only take effect after a power cycle.
	MustReboot Status = iota + 1
	// AlreadyInitialized means kernel-space recovery failed but
	// TPM_IS_INITIALIZED already exists, so re-provisioning would be
	// unsafe: the spaces are present but invalid.
	AlreadyInitialized
	// CorruptedState means KERNEL_VERSIONS has the wrong permissions or UID
	// tag, indicating a TPM owner redefined it.
	CorruptedState
	// InternalInconsistency means the backup kernel counter is ahead of the
	// primary, which should be impossible under normal operation.
	InternalInconsistency
)

func (s Status) String() string {
	switch s {
	case MustReboot:
		return "must reboot"
	case AlreadyInitialized:
		return "already initialized"
	case CorruptedState:
		return "corrupted state"
	case InternalInconsistency:
		return "internal inconsistency"
	default:
		return "unknown rollback status"
	}
}

// Exit codes for the rollbackctl CLI. Kept in the same file as the status
// codes they are derived from, since the two tables must stay in lockstep.
const (
	ExitMustReboot            = 10
	ExitAlreadyInitialized    = 11
	ExitCorruptedState        = 12
	ExitInternalInconsistency = 13
	ExitUnknown               = 255
)

// RollbackError is the typed error the core returns for conditions the
// caller must distinguish; everything else is an opaque wrapped TPM error.
type RollbackError struct {
	status Status
	msg    string
	err    error
}

// New builds a RollbackError carrying the given status and message.
func New(status Status, msg string) error {
	return &RollbackError{status: status, msg: msg}
}

// Wrap builds a RollbackError carrying the given status, annotating err.
func Wrap(status Status, msg string, err error) error {
	return &RollbackError{status: status, msg: msg, err: err}
}

func (e *RollbackError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap lets errors.Is/errors.As see through to the underlying TPM error,
// if any, so sentinels like types.ErrMaxNVWrites remain discoverable.
func (e *RollbackError) Unwrap() error {
	return e.err
}

// Status returns the status code carried by e.
func (e *RollbackError) Status() Status {
	return e.status
}

// ExitCode maps err to a process exit code. A nil error maps to 0; an error
// that is not a *RollbackError maps to ExitUnknown.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var rerr *RollbackError
	if !errors.As(err, &rerr) {
		return ExitUnknown
	}
	switch rerr.status {
	case MustReboot:
		return ExitMustReboot
	case AlreadyInitialized:
		return ExitAlreadyInitialized
	case CorruptedState:
		return ExitCorruptedState
	case InternalInconsistency:
		return ExitInternalInconsistency
	default:
		return ExitUnknown
	}
}
