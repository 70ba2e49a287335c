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

// Package tpmsim provides an in-memory TPM simulator implementing
// types.TPM, for use in tests and in the rollbackctl CLI's dry-run mode.
// It stands in for the hardware backend in pkg/rollback/tpmhw the same way
// an InMemorySimulator variant stands in for a real device in the
// reference TPM operator this was grounded on.
package tpmsim

import (
	"fmt"

	"github.com/rancher/elemental-rollback/pkg/types"
)

// MaxNVWrites is the anti-wear write limit simulated per space while the
// TPM is unowned, matching the real TPM's well-known 64-write ceiling.
const MaxNVWrites = 64

type space struct {
	perm    types.Attr
	size    uint32
	data    []byte
	defined bool
	writes  int
}

// Simulator is an in-memory TPM. The zero value is not usable; use New.
type Simulator struct {
	spaces map[uint32]*space

	disabled    bool
	deactivated bool
	owned       bool
	nvLocked    bool
	globalLock  bool
	ppAsserted  bool
	ppLocked    bool

	// crashed discards every write issued after Crash was called, modeling
	// a power loss mid-sequence.
	crashed bool
}

// New returns an empty, unprovisioned simulator: enabled and activated, with
// physical presence not yet asserted. Use SetDisabledForTest to model a TPM
// left disabled or deactivated.
func New() *Simulator {
	return &Simulator{
		spaces:      make(map[uint32]*space),
		disabled:    false,
		deactivated: false,
	}
}

func (s *Simulator) LibInit() error { return nil }

func (s *Simulator) Startup() error { return nil }

func (s *Simulator) ContinueSelfTest() error { return nil }

func (s *Simulator) AssertPhysicalPresence() error {
	s.ppAsserted = true
	return nil
}

func (s *Simulator) GetFlags() (disabled, deactivated bool, err error) {
	return s.disabled, s.deactivated, nil
}

// SetDisabledForTest forces the disabled/deactivated flags a subsequent
// GetFlags call reports, modeling a TPM a previous boot left in that state.
// Only meant for exercising the MustReboot path in tests; production code
// never sets these directly.
func (s *Simulator) SetDisabledForTest(disabled, deactivated bool) {
	s.disabled = disabled
	s.deactivated = deactivated
}

func (s *Simulator) SetEnable() error {
	s.disabled = false
	return nil
}

func (s *Simulator) SetDeactivated(deactivated bool) error {
	s.deactivated = deactivated
	return nil
}

// ForceClear wipes ownership and physical-presence state, but never touches
// NV space contents: those survive a clear by design, since they carry the
// anti-rollback counters across the event that made clearing necessary.
// The per-space anti-wear write counter is reset, matching real hardware:
// the 64-write ceiling is scoped to the period since the last clear, which
// is exactly what makes SafeWrite's clear-and-retry safe.
func (s *Simulator) ForceClear() error {
	s.owned = false
	s.ppLocked = false
	s.globalLock = false
	for _, sp := range s.spaces {
		sp.writes = 0
	}
	return nil
}

func (s *Simulator) SetNvLocked() error {
	s.nvLocked = true
	return nil
}

func (s *Simulator) DefineSpace(index uint32, perm types.Attr, size uint32) error {
	if s.crashed {
		return fmt.Errorf("tpmsim: power lost, cannot define space 0x%x", index)
	}
	if existing, ok := s.spaces[index]; ok && existing.defined {
		if existing.perm != perm || existing.size != size {
			return fmt.Errorf("tpmsim: space 0x%x redefined with different perm/size", index)
		}
		return nil
	}
	s.spaces[index] = &space{perm: perm, size: size, data: make([]byte, size), defined: true}
	return nil
}

func (s *Simulator) Write(index uint32, data []byte) error {
	if s.crashed {
		return fmt.Errorf("tpmsim: power lost, cannot write space 0x%x", index)
	}
	sp, ok := s.spaces[index]
	if !ok {
		return types.ErrBadIndex
	}
	if sp.perm.Has(types.AttrGlobalLock) && s.globalLock {
		return fmt.Errorf("tpmsim: space 0x%x is globally locked", index)
	}
	if sp.perm.Has(types.AttrPPWrite) && s.ppLocked {
		return fmt.Errorf("tpmsim: space 0x%x requires physical presence, which is locked off", index)
	}
	if !s.owned && sp.writes >= MaxNVWrites {
		return types.ErrMaxNVWrites
	}
	if len(data) > int(sp.size) {
		return fmt.Errorf("tpmsim: write of %d bytes exceeds space 0x%x size %d", len(data), index, sp.size)
	}
	copy(sp.data, data)
	sp.writes++
	return nil
}

func (s *Simulator) Read(index uint32, size uint32) ([]byte, error) {
	sp, ok := s.spaces[index]
	if !ok {
		return nil, types.ErrBadIndex
	}
	if size > sp.size {
		return nil, fmt.Errorf("tpmsim: read of %d bytes exceeds space 0x%x size %d", size, index, sp.size)
	}
	out := make([]byte, size)
	copy(out, sp.data[:size])
	return out, nil
}

func (s *Simulator) GetPermissions(index uint32) (types.Attr, error) {
	sp, ok := s.spaces[index]
	if !ok {
		return 0, types.ErrBadIndex
	}
	return sp.perm, nil
}

func (s *Simulator) SetGlobalLock() error {
	s.globalLock = true
	return nil
}

func (s *Simulator) LockPhysicalPresence() error {
	s.ppLocked = true
	return nil
}

// Reboot clears every per-boot flag (physical presence, global lock, crash
// injection) while leaving NV contents untouched, modeling a power cycle.
func (s *Simulator) Reboot() {
	s.ppAsserted = false
	s.ppLocked = false
	s.globalLock = false
	s.crashed = false
}

// Crash causes every subsequent DefineSpace/Write call to fail, modeling a
// power loss. Pair with Reboot to resume after the simulated outage.
func (s *Simulator) Crash() {
	s.crashed = true
}

// OwnerRedefine simulates a TPM owner removing and redefining a
// PP-protected space with different contents and no UID tag, without
// going through DefineSpace's idempotence check. Used by the tamper
// detection scenario.
func (s *Simulator) OwnerRedefine(index uint32, perm types.Attr, size uint32, data []byte) {
	sp := &space{perm: perm, size: size, data: make([]byte, size), defined: true}
	copy(sp.data, data)
	s.spaces[index] = sp
}

// Poke directly overwrites the contents of an already-defined space,
// bypassing every write-protection check. Used to hand-craft invariant
// violations (e.g. backup ahead of primary) in tests.
func (s *Simulator) Poke(index uint32, data []byte) {
	sp, ok := s.spaces[index]
	if !ok {
		return
	}
	copy(sp.data, data)
}

var _ types.TPM = (*Simulator)(nil)
