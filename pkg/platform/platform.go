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

// Package platform defines the narrow hardware contract the kernel core
// runs against: interrupt control, the low-level context transfer, lazy FPU
// save/restore, and address-space switching. Everything else the kernel
// does is expressed in terms of these primitives, which keeps the core
// testable without real hardware.
package platform

import (
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/arch/fpu"
	"vexos.dev/vexos/pkg/mm"
)

// Platform abstracts the machine.
type Platform interface {
	// DisableInterrupts unconditionally masks interrupts on the current
	// core. It is not counted; callers pair it with EnableInterrupts
	// themselves.
	DisableInterrupts()

	// EnableInterrupts unconditionally unmasks interrupts.
	EnableInterrupts()

	// ContextSwitch performs the low-level transfer of control into the
	// given saved register context. In the native kernel this call does
	// not return; execution continues wherever state encodes. Hosted
	// implementations record the resumption and return, and the kernel's
	// RunState discipline keeps callers from running past it.
	ContextSwitch(state *arch.Registers)

	// SaveFPU stores the floating-point register file into s.
	//
	// Preconditions: s is non-nil and the FPU is enabled.
	SaveFPU(s fpu.State)

	// RestoreFPU loads the floating-point register file from s.
	RestoreFPU(s fpu.State)

	// PageDirectory returns the currently installed page directory.
	PageDirectory() *mm.PageDirectory

	// SetPageDirectory installs pd as the active address space.
	SetPageDirectory(pd *mm.PageDirectory)

	// Halt stops the machine with the given message. It does not return.
	Halt(format string, v ...any)
}
