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

import "encoding/binary"

// Counters are persisted little-endian. Both writer and reader are this
// same core, so any fixed order would do; little-endian is chosen and
// documented here so an NVRAM image stays portable across re-implementations.
var byteOrder = binary.LittleEndian

// packVersion combines a key version and a version into the on-disk 32-bit
// counter representation. Bitwise OR, not AND: ANDing two nonzero halves
// together loses bits and can silently fold distinct versions onto the
// same combined counter.
func packVersion(keyVersion, version uint16) uint32 {
	return uint32(keyVersion)<<16 | uint32(version)
}

// unpackVersion splits a combined 32-bit counter back into its key version
// and version halves.
func unpackVersion(combined uint32) (keyVersion, version uint16) {
	return uint16(combined >> 16), uint16(combined)
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, counterSize)
	byteOrder.PutUint32(buf, v)
	return buf
}

func decodeUint32(buf []byte) uint32 {
	return byteOrder.Uint32(buf)
}

func encodeBool(v bool) []byte {
	if v {
		return encodeUint32(1)
	}
	return encodeUint32(0)
}

func decodeBool(buf []byte) bool {
	return decodeUint32(buf) != 0
}
