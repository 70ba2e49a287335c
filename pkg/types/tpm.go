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

package types

import "errors"

// Attr is the NV space permission bitmask the rollback core reasons about.
// It deliberately mirrors the small subset of TPM 1.2 NV attributes that
// rollback_index.c relies on rather than the full TPM 2.0 attribute set,
// since that is the contract the core itself was specified against.
type Attr uint32

const (
	// AttrPPWrite requires physical presence to write the space.
	AttrPPWrite Attr = 1 << iota
	// AttrGlobalLock makes the space read-only once SetGlobalLock has run,
	// until the next power cycle.
	AttrGlobalLock
)

// Has reports whether all bits of want are set in a.
func (a Attr) Has(want Attr) bool {
	return a&want == want
}

// Sentinel TPM response conditions the core tests for explicitly. Every
// other non-nil error returned by a TPM implementation is treated as an
// opaque failure and propagated unchanged.
var (
	// ErrMaxNVWrites is returned by Write when the TPM's anti-wear write
	// counter for an NV index has been exhausted. It can only happen while
	// the TPM is unowned, which is also the only time it is safe to clear.
	ErrMaxNVWrites = errors.New("tpm: max NV writes exceeded")

	// ErrBadIndex is returned by Read/GetPermissions when the requested NV
	// index does not exist.
	ErrBadIndex = errors.New("tpm: bad NV index")
)

// TPM is the primitive command surface the rollback core consumes. It is a
// narrow, typed stand-in for the tlcl library used by the firmware this
// core was specified against: one command per method, no session or
// hierarchy-auth plumbing exposed, because the core never needs it.
//
// Implementations: tpmhw (a real TPM 2.0 device, via go-tpm2) and tpmsim
// (an in-memory fake used by tests). A TPM is not safe for concurrent use.
type TPM interface {
	// LibInit prepares the underlying transport. Called once per boot,
	// before Startup.
	LibInit() error

	// Startup issues the TPM startup command.
	Startup() error

	// ContinueSelfTest triggers the TPM's self test. It does not block on
	// the result; a failing self test will surface as a failure of a later
	// command.
	ContinueSelfTest() error

	// AssertPhysicalPresence asserts that a local operator is present,
	// which is a precondition for writing PP-protected spaces.
	AssertPhysicalPresence() error

	// GetFlags reports whether the TPM is administratively disabled or
	// deactivated. Either condition must be cleared, and takes effect only
	// after a power cycle.
	GetFlags() (disabled, deactivated bool, err error)

	// SetEnable clears the disabled flag (effective next boot).
	SetEnable() error

	// SetDeactivated sets the deactivated flag to the given value
	// (effective next boot).
	SetDeactivated(deactivated bool) error

	// ForceClear wipes TPM ownership and any owner-held secrets. It does
	// not touch NV spaces defined with platform/PP permissions.
	ForceClear() error

	// SetNvLocked prevents further NV spaces from being defined without
	// physical presence. Idempotent.
	SetNvLocked() error

	// DefineSpace creates an NV space with the given permissions and size.
	// Defining an index that already exists with the same permissions and
	// size is tolerated, since provisioning must be safe to retry.
	DefineSpace(index uint32, perm Attr, size uint32) error

	// Write writes all of data to the space at index, starting at offset 0.
	// Returns ErrMaxNVWrites if the anti-wear limit has been hit.
	Write(index uint32, data []byte) error

	// Read reads size bytes from the space at index. Returns ErrBadIndex if
	// the space does not exist.
	Read(index uint32, size uint32) ([]byte, error)

	// GetPermissions returns the permission bitmask a space was defined
	// with. Returns ErrBadIndex if the space does not exist.
	GetPermissions(index uint32) (Attr, error)

	// SetGlobalLock makes every AttrGlobalLock space read-only until the
	// next power cycle.
	SetGlobalLock() error

	// LockPhysicalPresence turns physical presence off for the remainder of
	// the boot, making every AttrPPWrite-only space read-only.
	LockPhysicalPresence() error
}
