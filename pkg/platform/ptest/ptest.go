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

// Package ptest provides a recording platform implementation for kernel
// tests and for the simulator.
package ptest

import (
	"fmt"

	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/arch/fpu"
	"vexos.dev/vexos/pkg/mm"
)

// HaltError is the panic value raised by Platform.Halt. Tests recover it to
// assert that a fatal path was taken.
type HaltError struct {
	Message string
}

// Error implements error.Error.
func (h *HaltError) Error() string {
	return "machine halted: " + h.Message
}

// Platform is a recording platform.Platform implementation. The zero value
// is ready for use.
type Platform struct {
	// IRQDisabled is the current interrupt mask state.
	IRQDisabled bool

	// Switches records every saved register context passed to
	// ContextSwitch, in order.
	Switches []arch.Registers

	// FPUSaves and FPURestores count lazy FPU traffic.
	FPUSaves    int
	FPURestores int

	// CurrentPageDir is the installed address space; PageDirSwitches
	// counts installs.
	CurrentPageDir  *mm.PageDirectory
	PageDirSwitches int
}

// DisableInterrupts implements platform.Platform.DisableInterrupts.
func (p *Platform) DisableInterrupts() {
	p.IRQDisabled = true
}

// EnableInterrupts implements platform.Platform.EnableInterrupts.
func (p *Platform) EnableInterrupts() {
	p.IRQDisabled = false
}

// ContextSwitch implements platform.Platform.ContextSwitch by recording the
// resumed context.
func (p *Platform) ContextSwitch(state *arch.Registers) {
	p.Switches = append(p.Switches, *state)
}

// SaveFPU implements platform.Platform.SaveFPU.
func (p *Platform) SaveFPU(s fpu.State) {
	p.FPUSaves++
}

// RestoreFPU implements platform.Platform.RestoreFPU.
func (p *Platform) RestoreFPU(s fpu.State) {
	p.FPURestores++
}

// PageDirectory implements platform.Platform.PageDirectory.
func (p *Platform) PageDirectory() *mm.PageDirectory {
	return p.CurrentPageDir
}

// SetPageDirectory implements platform.Platform.SetPageDirectory.
func (p *Platform) SetPageDirectory(pd *mm.PageDirectory) {
	p.CurrentPageDir = pd
	p.PageDirSwitches++
}

// Halt implements platform.Platform.Halt by panicking with a *HaltError.
func (p *Platform) Halt(format string, v ...any) {
	panic(&HaltError{Message: fmt.Sprintf(format, v...)})
}

// LastSwitch returns the most recently resumed context, or nil if no switch
// has happened.
func (p *Platform) LastSwitch() *arch.Registers {
	if len(p.Switches) == 0 {
		return nil
	}
	return &p.Switches[len(p.Switches)-1]
}
