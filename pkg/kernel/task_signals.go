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
	"fmt"

	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/abi/vex/errno"
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/kernelerr"
)

// sigState identifies the kernel exit path a handler frame is built on. The
// paths differ in what the interrupted context's return register must hold
// when the handler eventually returns.
type sigState int

const (
	// sigPreSyscall means the signal fires before a syscall body ran; the
	// interrupted context must observe EINTR.
	sigPreSyscall sigState = iota

	// sigInUsermode means the signal interrupts plain user code; the
	// interrupted context is restored as-is.
	sigInUsermode
)

// setupSignalHandlerFrame rewrites r so that the task resumes in its user
// signal handler instead of where it was interrupted. For the outermost
// handler the interrupted context is first spilled to the user stack, to be
// restored when the handler returns through the post-handler trampoline.
func (k *Kernel) setupSignalHandlerFrame(t *Task, st sigState, r *arch.Registers, handler uint64, sig vex.Signal) error {
	if t.nestedSigHandlers < 0 {
		panic(fmt.Sprintf("task %d: negative handler nesting", t.tid))
	}

	if t.nestedSigHandlers == 0 {
		if st == sigPreSyscall {
			// The interrupted syscall fails with EINTR once the handler
			// chain unwinds.
			r.SetReturnRegister(^uint64(errno.EINTR) + 1)
		}
		if err := t.saveContextOnUserStack(r); err != nil {
			return err
		}
	}

	r.SetIP(handler)
	r.SetUserSP(r.GetUserSP() - arch.SignalHandlerAlignAdjust - 8)
	r.SetReturnRegister(uint64(sig))
	r.SetReturnAddr(arch.PostSignalHandlerVaddr)
	t.nestedSigHandlers++

	if r.GetUserSP()%arch.UserStackAlign != 0 {
		panic(fmt.Sprintf("task %d: misaligned handler stack %#x", t.tid, r.GetUserSP()))
	}
	return nil
}

// saveContextOnUserStack spills the interrupted register context below the
// task's user stack pointer.
func (t *Task) saveContextOnUserStack(r *arch.Registers) error {
	sp := r.GetUserSP() - arch.RegistersSize
	var buf [arch.RegistersSize]byte
	r.Marshal(buf[:])
	if err := t.proc.mem.CopyOut(sp, buf[:]); err != nil {
		return kernelerr.EFAULT
	}
	r.SetUserSP(sp)
	return nil
}

// restoreContextFromUserStack undoes saveContextOnUserStack when the
// outermost handler returns through the post-handler trampoline.
func (t *Task) restoreContextFromUserStack(r *arch.Registers) error {
	sp := r.GetUserSP()
	var buf [arch.RegistersSize]byte
	if err := t.proc.mem.CopyIn(sp, buf[:]); err != nil {
		return kernelerr.EFAULT
	}
	r.Unmarshal(buf[:])
	return nil
}

// HandlerReturn unwinds one user signal handler frame for the current task.
// It is the kernel side of the post-handler trampoline.
func (k *Kernel) HandlerReturn() (RunState, error) {
	t := k.cpu.current
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()

	if t.nestedSigHandlers <= 0 {
		return RunContinue, kernelerr.EINVAL
	}
	t.nestedSigHandlers--
	if t.nestedSigHandlers > 0 {
		return RunContinue, nil
	}
	// Drop the alignment pad and the adjust slot, then restore the saved
	// context from the user stack.
	r := t.regs
	r.SetUserSP(r.GetUserSP() + arch.SignalHandlerAlignAdjust + 8)
	if err := t.restoreContextFromUserStack(r); err != nil {
		return RunContinue, err
	}
	return RunContinue, nil
}
