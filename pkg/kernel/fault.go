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

package kernel

import (
	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/log"
)

// The fault bridge maps synchronous hardware faults to process-directed
// signals. A fault with no user task to charge it to, because no task is
// current or the current task is kernel-only, is unrecoverable and halts
// the machine.

// HandleUserFault handles an access fault (page fault that cannot be
// resolved, protection violation) with the faulting context r.
func (k *Kernel) HandleUserFault(r *arch.Registers, faultName string) RunState {
	return k.handleFault(r, faultName, vex.SIGSEGV)
}

// HandleIllegalInstrFault handles an illegal instruction fault.
func (k *Kernel) HandleIllegalInstrFault(r *arch.Registers) RunState {
	return k.handleFault(r, "illegal instruction", vex.SIGILL)
}

// HandleBusFault handles a misaligned or otherwise unservable bus access.
func (k *Kernel) HandleBusFault(r *arch.Registers) RunState {
	return k.handleFault(r, "bus error", vex.SIGBUS)
}

func (k *Kernel) handleFault(r *arch.Registers, faultName string, sig vex.Signal) RunState {
	curr := k.cpu.current
	if curr == nil || curr.IsKernelThread() {
		k.platform.Halt("FAULT: %s at pc %#x in kernel context", faultName, r.IP())
	}

	log.Warningf("%s at pc %#x, killing pid %d with %v", faultName, r.IP(), curr.proc.pid, sig)

	// Delivery bypasses the send-side target validation: the target is the
	// faulting task itself, by construction alive and user-owned.
	k.cpu.DisablePreemption()
	rs := k.deliverSignal(curr, sig, SendProcess|SendFault)
	if rs == RunContinue {
		k.cpu.EnablePreemption()
	}
	return rs
}
