// Copyright 2024 The VexOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package usermem governs access to user memory.
package usermem

import (
	"encoding/binary"

	"vexos.dev/vexos/pkg/kernelerr"
)

// Addr represents an address in a user address space.
type Addr uintptr

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow the range of Addr.
//
// Note: This function is usually used to get the end of an address range
// defined by its start address and length. Since the resulting end is
// exclusive, end == 0 is technically valid, and corresponds to a range that
// extends to the end of the address space, but ok will be false.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v
	return
}

// RoundDown returns the address rounded down to the nearest multiple of
// align, which must be a power of 2.
func (v Addr) RoundDown(align uint) Addr {
	return v &^ Addr(align-1)
}

// ByteOrder is the native byte order of the simulated machine.
var ByteOrder = binary.LittleEndian

// IO provides access to the contents of a virtual memory space.
//
// All methods fail with EFAULT if the requested range is not entirely
// contained in the space; no partial transfer is performed in that case.
// Word-granularity loops built on top of IO (such as the sigprocmask copy
// loop) get their partial-application semantics from issuing multiple calls,
// not from partial IO transfers.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr.
	CopyOut(addr Addr, src []byte) error

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	CopyIn(addr Addr, dst []byte) error

	// ZeroOut sets toZero bytes to 0, starting at addr.
	//
	// Preconditions: toZero >= 0.
	ZeroOut(addr Addr, toZero int64) error
}

// BytesIO implements IO using a byte slice as the backing user address
// space. Addresses are offsets into the slice. BytesIO is used by tests and
// by the simulator's fake user processes.
type BytesIO struct {
	Bytes []byte
}

// NewBytesIO returns an IO backed by b.
func NewBytesIO(b []byte) *BytesIO {
	return &BytesIO{Bytes: b}
}

func (b *BytesIO) rangeCheck(addr Addr, length int) error {
	if length == 0 {
		return nil
	}
	if length < 0 {
		return kernelerr.EFAULT
	}
	end, ok := addr.AddLength(uint64(length))
	if !ok || end > Addr(len(b.Bytes)) {
		return kernelerr.EFAULT
	}
	return nil
}

// CopyOut implements IO.CopyOut.
func (b *BytesIO) CopyOut(addr Addr, src []byte) error {
	if err := b.rangeCheck(addr, len(src)); err != nil {
		return err
	}
	copy(b.Bytes[addr:], src)
	return nil
}

// CopyIn implements IO.CopyIn.
func (b *BytesIO) CopyIn(addr Addr, dst []byte) error {
	if err := b.rangeCheck(addr, len(dst)); err != nil {
		return err
	}
	copy(dst, b.Bytes[addr:])
	return nil
}

// ZeroOut implements IO.ZeroOut.
func (b *BytesIO) ZeroOut(addr Addr, toZero int64) error {
	if err := b.rangeCheck(addr, int(toZero)); err != nil {
		return err
	}
	for i := int64(0); i < toZero; i++ {
		b.Bytes[addr+Addr(i)] = 0
	}
	return nil
}

// CopyUint64Out copies a native-endian uint64 to addr.
func CopyUint64Out(uio IO, addr Addr, val uint64) error {
	var buf [8]byte
	ByteOrder.PutUint64(buf[:], val)
	return uio.CopyOut(addr, buf[:])
}

// CopyUint64In copies a native-endian uint64 from addr.
func CopyUint64In(uio IO, addr Addr) (uint64, error) {
	var buf [8]byte
	if err := uio.CopyIn(addr, buf[:]); err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(buf[:]), nil
}
