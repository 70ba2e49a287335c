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

// Package tpmhw adapts a physical or virtual TPM 2.0 device, reached through
// github.com/canonical/go-tpm2, to the types.TPM contract. The device only
// ever speaks TPM 2.0 commands; NV index attributes, hierarchy auth and
// startup semantics are mapped onto the narrower TPM 1.2-shaped contract
// that the rest of this module is written against.
package tpmhw

import (
	"fmt"
	"sync"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/linux"

	"github.com/rancher/elemental-rollback/pkg/types"
)

// Device wraps an open TPM 2.0 connection. The zero value is not usable;
// construct one with Open.
type Device struct {
	mu  sync.Mutex
	tpm *tpm2.TPMContext

	// nvAttrs records the Attr each DefineSpace call was issued with, since
	// the device itself stores TPMA_NV bits rather than our Attr bitmask.
	nvAttrs map[uint32]types.Attr
}

// Open connects to the platform's default TPM 2.0 character device (or the
// device named by path, if non-empty) and returns a Device ready for use.
func Open(path string) (*Device, error) {
	var (
		tcti interface {
			tpm2.TCTI
		}
		err error
	)
	if path == "" {
		tcti, err = linux.DefaultTPM2Device()
	} else {
		tcti, err = linux.OpenDevice(path)
	}
	if err != nil {
		return nil, fmt.Errorf("tpmhw: cannot open TPM device: %w", err)
	}
	return &Device{
		tpm:     tpm2.NewTPMContext(tcti),
		nvAttrs: make(map[uint32]types.Attr),
	}, nil
}

// Close releases the underlying device handle.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tpm.Close()
}

func (d *Device) LibInit() error {
	return nil
}

func (d *Device) Startup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.Startup(tpm2.StartupClear); err != nil {
		if tpm2.IsTPMWarning(err, tpm2.WarningInitialize, tpm2.AnyCommandCode) {
			return nil
		}
		return fmt.Errorf("tpmhw: startup: %w", err)
	}
	return nil
}

func (d *Device) ContinueSelfTest() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.SelfTest(true); err != nil {
		return fmt.Errorf("tpmhw: self test: %w", err)
	}
	return nil
}

// AssertPhysicalPresence is a no-op on TPM 2.0 devices: physical presence
// is asserted through platform firmware (e.g. a GPIO or a firmware vendor
// command), not through a TPM command this package issues directly.
func (d *Device) AssertPhysicalPresence() error {
	return nil
}

func (d *Device) GetFlags() (disabled, deactivated bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	props, err := d.tpm.GetCapabilityTPMProperties(tpm2.PropertyStartupClear, 1)
	if err != nil {
		return false, false, fmt.Errorf("tpmhw: get flags: %w", err)
	}
	if len(props) == 0 {
		return false, false, fmt.Errorf("tpmhw: get flags: no properties returned")
	}
	attrs := tpm2.StartupClearAttributes(props[0].Value)
	enabled := attrs&(tpm2.AttrShEnable|tpm2.AttrEhEnable) == (tpm2.AttrShEnable | tpm2.AttrEhEnable)
	return !enabled, false, nil
}

func (d *Device) SetEnable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.HierarchyControl(d.tpm.OwnerHandleContext(), tpm2.HandleOwner, true, nil); err != nil {
		return fmt.Errorf("tpmhw: set enable: %w", err)
	}
	return nil
}

// SetDeactivated is unsupported on TPM 2.0 hardware: deactivation was a
// TPM 1.2 concept superseded by per-hierarchy enable bits. This backend
// treats it as satisfied whenever deactivated is false, and refuses the
// reverse.
func (d *Device) SetDeactivated(deactivated bool) error {
	if deactivated {
		return fmt.Errorf("tpmhw: deactivation is not supported on TPM 2.0 hardware")
	}
	return nil
}

func (d *Device) ForceClear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.Clear(d.tpm.PlatformHandleContext(), nil); err != nil {
		return fmt.Errorf("tpmhw: force clear: %w", err)
	}
	return nil
}

// SetNvLocked is a no-op on this backend: it issues no TPM command. Write
// protection of the spaces comes from SetGlobalLock and
// LockPhysicalPresence.
func (d *Device) SetNvLocked() error {
	return nil
}

func (d *Device) DefineSpace(index uint32, perm types.Attr, size uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	attrs := tpm2.AttrNVOwnerRead | tpm2.AttrNVOwnerWrite
	if perm.Has(types.AttrPPWrite) {
		attrs |= tpm2.AttrNVPPWrite
	}
	if perm.Has(types.AttrGlobalLock) {
		attrs |= tpm2.AttrNVGlobalLock
	}

	pub := &tpm2.NVPublic{
		Index:   tpm2.Handle(tpm2.HandleNVIndexFirst + index),
		NameAlg: tpm2.HashAlgorithmSHA256,
		Attrs:   tpm2.NVAttributes(attrs),
		Size:    uint16(size),
	}
	if _, err := d.tpm.NVDefineSpace(d.tpm.OwnerHandleContext(), nil, pub, nil); err != nil {
		if tpm2.IsTPMHandleError(err, tpm2.ErrorNVDefined, tpm2.CommandNVDefineSpace, 1) {
			d.nvAttrs[index] = perm
			return nil
		}
		return fmt.Errorf("tpmhw: define space 0x%x: %w", index, err)
	}
	d.nvAttrs[index] = perm
	return nil
}

func (d *Device) Write(index uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rc, err := d.tpm.NewResourceContext(tpm2.Handle(tpm2.HandleNVIndexFirst + index))
	if err != nil {
		return types.ErrBadIndex
	}
	if err := d.tpm.NVWrite(d.tpm.OwnerHandleContext(), rc, data, 0, nil); err != nil {
		if tpm2.IsTPMError(err, tpm2.ErrorNVMaxWrites, tpm2.CommandNVWrite) {
			return types.ErrMaxNVWrites
		}
		return fmt.Errorf("tpmhw: write 0x%x: %w", index, err)
	}
	return nil
}

func (d *Device) Read(index uint32, size uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rc, err := d.tpm.NewResourceContext(tpm2.Handle(tpm2.HandleNVIndexFirst + index))
	if err != nil {
		return nil, types.ErrBadIndex
	}
	data, err := d.tpm.NVRead(d.tpm.OwnerHandleContext(), rc, uint16(size), 0, nil)
	if err != nil {
		return nil, fmt.Errorf("tpmhw: read 0x%x: %w", index, err)
	}
	return data, nil
}

func (d *Device) GetPermissions(index uint32) (types.Attr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	perm, ok := d.nvAttrs[index]
	if !ok {
		return 0, types.ErrBadIndex
	}
	return perm, nil
}

func (d *Device) SetGlobalLock() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.NVGlobalWriteLock(d.tpm.OwnerHandleContext(), nil); err != nil {
		return fmt.Errorf("tpmhw: global write lock: %w", err)
	}
	return nil
}

// LockPhysicalPresence turns physical presence off for the remainder of
// the boot by clearing the platform hierarchy's authorization value,
// which this module never otherwise touches.
func (d *Device) LockPhysicalPresence() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tpm.HierarchyChangeAuth(d.tpm.PlatformHandleContext(), nil, nil); err != nil {
		return fmt.Errorf("tpmhw: lock physical presence: %w", err)
	}
	return nil
}

var _ types.TPM = (*Device)(nil)
