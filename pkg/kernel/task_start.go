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
	"vexos.dev/vexos/pkg/kernelerr"
	"vexos.dev/vexos/pkg/mm"
	"vexos.dev/vexos/pkg/usermem"
	"vexos.dev/vexos/pkg/waiter"
)

// KthreadFunc is a kernel thread entry function.
type KthreadFunc func(k *Kernel, arg any)

// KthreadFlags select kernel thread factory options.
type KthreadFlags int

const (
	// KthreadAllocBufs reserves the thread's floating point buffer at
	// creation time instead of on first use.
	KthreadAllocBufs KthreadFlags = 1 << iota

	// KthreadWorker marks the thread as a work queue servant.
	KthreadWorker
)

// NewKernelThread creates a runnable kernel thread executing entry(k, arg)
// and returns its thread id.
//
// The returned id may already refer to a dead task: a short-lived thread can
// be scheduled, run to completion and become a zombie before the caller
// observes the return value. Callers must not assume the task is still
// alive.
func (k *Kernel) NewKernelThread(entry KthreadFunc, name string, flags KthreadFlags, arg any) (ThreadID, error) {
	if entry == nil || name == "" {
		panic("NewKernelThread: no entry function or name")
	}

	r := arch.Registers{
		// Resume path for a context that has never run: jump straight to
		// the trap return sequence, which pops the initial frame below.
		KernelResumePC: arch.TrapEntryResumeAddr,
		PC:             k.entryPC(),
		Status: arch.StatusPrevInterruptEnable | arch.StatusPrevPrivileged |
			arch.StatusInterruptEnable | arch.StatusUserMemoryAccess,
		// Returning from entry lands in the thread teardown stub.
		RA: arch.KthreadExitAddr,
	}
	r.Args[0] = argRegister(arg)

	// The new task must not become visible to the scheduler half built.
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()

	if k.tasks.Len() >= TasksLimit {
		return 0, kernelerr.ENOMEM
	}
	tid, err := k.tasks.allocateKernelTID()
	if err != nil {
		return 0, err
	}

	t := k.allocateThread(k.kernelProcess, tid, flags&KthreadAllocBufs != 0)
	t.name = name
	t.state = TaskRunnable
	t.runningInKernel = true
	t.worker = flags&KthreadWorker != 0
	t.kthreadEntry = entry
	t.kthreadArg = arg

	// The initial frame lives at the top of the fresh kernel stack; SP in
	// the saved context points at it.
	t.resetKernelStack()
	r.SP = uint64(t.stateRegsAt)
	*t.regs = r

	k.tasks.add(t)
	return tid, nil
}

// entryPC assigns a synthetic code address to a kernel thread entry. Entry
// functions are Go values with no machine address of their own; the saved
// context still needs a distinct, stable PC per thread for debuggability.
func (k *Kernel) entryPC() uint64 {
	k.nextEntryPC++
	return arch.KthreadEntryBaseAddr + k.nextEntryPC*16
}

// argRegister derives the initial argument register value. Numeric
// arguments pass through; anything else is referenced indirectly through
// the task and gets a zero register.
func argRegister(arg any) uint64 {
	switch v := arg.(type) {
	case nil:
		return 0
	case int:
		return uint64(v)
	case uint64:
		return v
	case uintptr:
		return uint64(v)
	case usermem.Addr:
		return uint64(v)
	default:
		return 0
	}
}

// RunKthread executes the current kernel thread's entry function and tears
// the thread down when it returns. The caller is the run loop, immediately
// after a switch to a kernel thread. A thread whose entry already ran (or
// the boot task, which has none) is left alone.
func (k *Kernel) RunKthread() RunState {
	t := k.cpu.current
	if !t.IsKernelThread() {
		panic("RunKthread: current task is not a kernel thread")
	}
	if t.kthreadEntry == nil {
		return RunContinue
	}
	entry, arg := t.kthreadEntry, t.kthreadArg
	t.kthreadEntry = nil
	entry(k, arg)
	return k.kthreadExit()
}

// kthreadExit terminates the current kernel thread, mirroring the teardown
// stub a thread's entry returns into.
func (k *Kernel) kthreadExit() RunState {
	t := k.cpu.current
	if !t.IsKernelThread() {
		panic("kthreadExit: current task is not a kernel thread")
	}
	k.cpu.assertPreemptionEnabled()
	k.cpu.DisablePreemption()
	t.changeState(TaskZombie)
	t.wstatus = vex.WaitStatusExit(0)
	t.signalQueue.Notify(waiter.EventExit)
	return k.yieldPreemptDisabled()
}

// NewUserProcess creates a process with a single leader thread that will
// enter user mode at entry with the given stack, and returns that thread.
// The task is published runnable.
func (k *Kernel) NewUserProcess(entry uint64, stack usermem.Addr, pdir *mm.PageDirectory, mem usermem.IO) (*Task, error) {
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()

	if k.tasks.Len() >= TasksLimit {
		return nil, kernelerr.ENOMEM
	}
	pid, err := k.tasks.allocateUserTID()
	if err != nil {
		return nil, err
	}
	p := &Process{
		pid:  pid,
		pdir: pdir,
		mem:  mem,
	}
	t, err := k.newUserTask(p, pid, entry, stack)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewUserThread creates an additional thread in an existing user process.
func (k *Kernel) NewUserThread(p *Process, entry uint64, stack usermem.Addr) (*Task, error) {
	if p.kernel {
		panic("NewUserThread: kernel process")
	}
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()

	if k.tasks.Len() >= TasksLimit {
		return nil, kernelerr.ENOMEM
	}
	tid, err := k.tasks.allocateUserTID()
	if err != nil {
		return nil, err
	}
	return k.newUserTask(p, tid, entry, stack)
}

func (k *Kernel) newUserTask(p *Process, tid ThreadID, entry uint64, stack usermem.Addr) (*Task, error) {
	t := k.allocateThread(p, tid, true)
	if err := t.setupArchState(); err != nil {
		return nil, err
	}
	arch.SetupUserRegisters(t.regs, entry, stack)
	t.regs.SP = uint64(t.stateRegsAt)
	t.state = TaskRunnable
	k.tasks.add(t)
	return t, nil
}

// setupArchState prepares the task's machine-specific buffers. A recycled
// floating point buffer is zeroed in place rather than reallocated.
func (t *Task) setupArchState() error {
	if t.fpu != nil {
		t.fpu.Reset()
	}
	return nil
}
