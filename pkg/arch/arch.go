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

// Package arch provides the architecture-dependent representation of a
// task's saved execution context. The modeled machine is a single-core
// riscv64-style CPU: names and bit positions of the status word follow the
// RISC-V sstatus register.
package arch

import (
	"fmt"
	"unsafe"

	"vexos.dev/vexos/pkg/usermem"
)

// Status word bits. The "Prev" bits record the privilege and
// interrupt-enable state at the last trap entry and are what the hardware
// restores on trap return.
const (
	// StatusInterruptEnable enables supervisor interrupts (SIE).
	StatusInterruptEnable = uint64(1) << 1

	// StatusPrevInterruptEnable is the interrupt-enable bit to restore on
	// trap return (SPIE).
	StatusPrevInterruptEnable = uint64(1) << 5

	// StatusPrevPrivileged is set if the trap came from supervisor mode
	// (SPP). A task whose saved status has this bit clear is returning to
	// user mode.
	StatusPrevPrivileged = uint64(1) << 8

	// StatusFPU is the floating-point unit state field (FS). Any non-zero
	// value means the FPU has been enabled for the context; the hardware
	// sets the dirty bits on first use.
	StatusFPU = uint64(3) << 13

	// StatusUserMemoryAccess permits supervisor access to user pages (SUM).
	StatusUserMemoryAccess = uint64(1) << 18
)

// Synthetic linker-symbol addresses. In a native kernel these come from the
// assembly trap-entry code; the hosted kernel pins them so that saved
// register contexts carry realistic, stable values that the test platform
// can recognize.
const (
	// TrapEntryResumeAddr is the one-time resume point inside the
	// trap-entry code that a freshly created context passes through before
	// jumping to its entry function.
	TrapEntryResumeAddr = uint64(0xffffffc000002000)

	// KthreadExitAddr is the return address installed for kernel thread
	// entry functions; falling off the entry function lands in the
	// thread-exit routine.
	KthreadExitAddr = uint64(0xffffffc000002800)

	// PostSignalHandlerVaddr is the user-space vDSO address that signal
	// handler frames return to.
	PostSignalHandlerVaddr = uint64(0x00007fff00001000)

	// KthreadEntryBaseAddr is the base of the synthetic code range that
	// kernel thread entry points are assigned from.
	KthreadEntryBaseAddr = uint64(0xffffffc000100000)
)

const (
	// UserStackAlign is the platform's user stack alignment requirement.
	UserStackAlign = 16

	// SignalHandlerAlignAdjust is subtracted from the user stack pointer
	// when building a signal-handler frame so that, together with the
	// pushed signal number slot, the resulting stack satisfies
	// UserStackAlign.
	SignalHandlerAlignAdjust = UserStackAlign - 8
)

// Registers is the saved execution context of a task: everything the
// low-level context switch needs to resume it. The layout is relied upon by
// the trap-entry trampoline code and is pinned by assertions at package
// init; fields must not be reordered.
type Registers struct {
	// KernelResumePC is the kernel-mode program counter at which the
	// low-level switch resumes this context. For freshly built contexts it
	// is TrapEntryResumeAddr.
	KernelResumePC uint64

	// PC is the trap program counter (sepc): where execution continues
	// after the trap-entry code returns to the context's own mode.
	PC uint64

	// Status is the saved status word (sstatus).
	Status uint64

	// RA is the return address register.
	RA uint64

	// SP is the kernel-mode stack pointer.
	SP uint64

	// UserSP is the user-mode stack pointer.
	UserSP uint64

	// Args holds the argument/return registers a0-a7. Args[0] doubles as
	// the syscall return slot.
	Args [8]uint64
}

// RegistersSize is the size in bytes of the saved register area pushed on
// the kernel stack by the trap-entry code.
const RegistersSize = 14 * 8

func init() {
	if size := unsafe.Sizeof(Registers{}); size != RegistersSize {
		panic(fmt.Sprintf("Registers layout changed: size %d, trampoline expects %d", size, RegistersSize))
	}
	if off := unsafe.Offsetof(Registers{}.KernelResumePC); off != 0 {
		panic(fmt.Sprintf("Registers.KernelResumePC moved to offset %d, trampoline expects 0", off))
	}
	if off := unsafe.Offsetof(Registers{}.SP); off != 4*8 {
		panic(fmt.Sprintf("Registers.SP moved to offset %d, trampoline expects %d", off, 4*8))
	}
}

// IP returns the instruction pointer at which the context resumes.
func (r *Registers) IP() uint64 {
	return r.PC
}

// SetIP sets the instruction pointer.
func (r *Registers) SetIP(value uint64) {
	r.PC = value
}

// SetUserSP sets the user-mode stack pointer.
func (r *Registers) SetUserSP(value usermem.Addr) {
	r.UserSP = uint64(value)
}

// GetUserSP returns the user-mode stack pointer.
func (r *Registers) GetUserSP() usermem.Addr {
	return usermem.Addr(r.UserSP)
}

// SetReturnRegister sets the first argument/return register (a0).
func (r *Registers) SetReturnRegister(value uint64) {
	r.Args[0] = value
}

// SetReturnAddr sets the return address register.
func (r *Registers) SetReturnAddr(value uint64) {
	r.RA = value
}

// ReturningToUser returns true if the context, when resumed, drops back to
// user mode.
func (r *Registers) ReturningToUser() bool {
	return r.Status&StatusPrevPrivileged == 0
}

// FPUEnabled returns true if the status word indicates the floating-point
// unit was enabled for this context.
func (r *Registers) FPUEnabled() bool {
	return r.Status&StatusFPU != 0
}

// SetupUserRegisters initializes r as the initial context of a user task
// entering at entry with the given user stack.
func SetupUserRegisters(r *Registers, entry uint64, stack usermem.Addr) {
	*r = Registers{
		KernelResumePC: TrapEntryResumeAddr,
		PC:             entry,
		SP:             0,
		UserSP:         uint64(stack),
		// User mode, interrupts enabled on return.
		Status: StatusPrevInterruptEnable | StatusUserMemoryAccess,
	}
}

// Marshal encodes r into b, which must be at least RegistersSize bytes, in
// the layout the trampoline expects. It returns the number of bytes written.
func (r *Registers) Marshal(b []byte) int {
	bo := usermem.ByteOrder
	bo.PutUint64(b[0:], r.KernelResumePC)
	bo.PutUint64(b[8:], r.PC)
	bo.PutUint64(b[16:], r.Status)
	bo.PutUint64(b[24:], r.RA)
	bo.PutUint64(b[32:], r.SP)
	bo.PutUint64(b[40:], r.UserSP)
	for i, a := range r.Args {
		bo.PutUint64(b[48+8*i:], a)
	}
	return RegistersSize
}

// Unmarshal decodes r from b, the inverse of Marshal.
func (r *Registers) Unmarshal(b []byte) {
	bo := usermem.ByteOrder
	r.KernelResumePC = bo.Uint64(b[0:])
	r.PC = bo.Uint64(b[8:])
	r.Status = bo.Uint64(b[16:])
	r.RA = bo.Uint64(b[24:])
	r.SP = bo.Uint64(b[32:])
	r.UserSP = bo.Uint64(b[40:])
	for i := range r.Args {
		r.Args[i] = bo.Uint64(b[48+8*i:])
	}
}
