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
	"vexos.dev/vexos/pkg/arch/fpu"
	"vexos.dev/vexos/pkg/usermem"
	"vexos.dev/vexos/pkg/waiter"
)

// kernelStackSize is the size of each task's kernel stack.
const kernelStackSize = 16 * 1024

// Task represents one kernel-schedulable thread of execution: a thread of a
// user process, or a kernel-only thread belonging to the kernel process.
type Task struct {
	k *Kernel

	tid  ThreadID
	proc *Process

	// name is the entry function name for kernel threads, empty for user
	// tasks.
	name string

	// state is the task's owner state. Mutated only via changeState, under
	// the preemption gate.
	state TaskState

	// regs is the task's saved register context. While the task is running
	// on the CPU the contents are stale.
	regs *arch.Registers

	// kstackTop is the highest address of the task's kernel stack;
	// stateRegsAt is where on that stack the saved context lives.
	kstackTop   usermem.Addr
	stateRegsAt usermem.Addr

	// fpu is the task's floating point state buffer. Nil means the task
	// has no FPU state to save or restore.
	fpu fpu.State

	// pending is the set of signals sent but not yet delivered.
	pending vex.SignalSet

	// runningInKernel is true while the task executes kernel code rather
	// than user code.
	runningInKernel bool

	// stopped is set by a stop signal and cleared by a continue or
	// terminate signal. Orthogonal to state: a stopped task keeps its
	// owner state but is not eligible to run.
	stopped bool

	// vforkStopped is true while the task is suspended for a vfork child.
	// Signal actions against it are deferred to the pending set.
	vforkStopped bool

	// nestedSigHandlers counts user signal handler frames live on the user
	// stack.
	nestedSigHandlers int32

	// nestedInterrupts is the interrupt nesting depth recorded when the
	// task was last switched away from inside the kernel.
	nestedInterrupts int32

	// timerReady is true when a timer tick has elapsed for the task and it
	// has not been rescheduled since.
	timerReady bool

	// timeslice is the number of ticks consumed in the current quantum.
	timeslice int32

	// wait describes what the task sleeps on. Non-nil iff state is
	// TaskSleeping.
	wait *WaitObject

	// wstatus is the wait-status readable by the parent: exit code,
	// termination signal, stop or continue notification.
	wstatus vex.WaitStatus

	// kthreadEntry and kthreadArg are the entry function and argument of a
	// kernel thread.
	kthreadEntry KthreadFunc
	kthreadArg   any

	// worker is true for kernel threads servicing a work queue.
	worker bool

	// signalQueue notifies waiters of exit, stop and continue events.
	signalQueue waiter.Queue
}

// allocateThread builds a task in its embryonic state: no schedulable state
// yet, not published. allocFPU additionally reserves the task's floating
// point buffer.
func (k *Kernel) allocateThread(p *Process, tid ThreadID, allocFPU bool) *Task {
	t := &Task{
		k:         k,
		tid:       tid,
		proc:      p,
		regs:      &arch.Registers{},
		kstackTop: usermem.Addr(0xffffffc040000000 + uintptr(tid)*kernelStackSize),
	}
	t.stateRegsAt = t.kstackTop - arch.RegistersSize
	if allocFPU {
		t.fpu = fpu.NewState()
	}
	return t
}

// resetKernelStack places the saved context back at the top of the kernel
// stack. Done when the task will resume in user mode, where the whole stack
// is dead.
func (t *Task) resetKernelStack() {
	t.stateRegsAt = t.kstackTop - arch.RegistersSize
}

// Kernel returns the kernel the task belongs to.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ThreadID returns the task's thread id.
func (t *Task) ThreadID() ThreadID {
	return t.tid
}

// Process returns the process the task belongs to.
func (t *Task) Process() *Process {
	return t.proc
}

// Name returns the kernel thread's entry name, empty for user tasks.
func (t *Task) Name() string {
	return t.name
}

// IsKernelThread returns true if the task belongs to the kernel process.
func (t *Task) IsKernelThread() bool {
	return t.proc.kernel
}

// IsWorker returns true for kernel threads servicing a work queue.
func (t *Task) IsWorker() bool {
	return t.worker
}

// State returns the task's owner state.
func (t *Task) State() TaskState {
	return t.state
}

// Stopped returns true if the task is held by a stop signal.
func (t *Task) Stopped() bool {
	return t.stopped
}

// Registers returns the task's saved register context. Stale while the task
// is running.
func (t *Task) Registers() *arch.Registers {
	return t.regs
}

// FPUState returns the task's floating point buffer, nil if none.
func (t *Task) FPUState() fpu.State {
	return t.fpu
}

// fpuEnabled reports whether the task has live FPU state that a context
// switch must save: a buffer exists and the task has touched the FPU since
// last restore.
func (t *Task) fpuEnabled() bool {
	return t.fpu != nil && t.regs.FPUEnabled()
}

// PendingSignals returns the set of signals sent but not yet delivered.
func (t *Task) PendingSignals() vex.SignalSet {
	return t.pending
}

// WaitStatus returns the parent-readable wait status.
func (t *Task) WaitStatus() vex.WaitStatus {
	return t.wstatus
}

// WaitObj returns what the task is sleeping on, nil if not sleeping.
func (t *Task) WaitObj() *WaitObject {
	return t.wait
}

// VforkStopped returns true while the task is suspended for a vfork child.
func (t *Task) VforkStopped() bool {
	return t.vforkStopped
}

// BeginVforkStop suspends the task for the duration of a child's vfork.
func (t *Task) BeginVforkStop() {
	t.vforkStopped = true
}

// EndVforkStop releases a vfork suspension. Signal actions deferred while
// suspended sit in the pending set and take effect at the task's next
// return-to-user boundary.
func (t *Task) EndVforkStop() {
	t.vforkStopped = false
}

// SignalQueue returns the queue notified on exit, stop and continue events.
func (t *Task) SignalQueue() *waiter.Queue {
	return &t.signalQueue
}

// NestedSignalHandlers returns the number of user handler frames live on
// the user stack.
func (t *Task) NestedSignalHandlers() int32 {
	return t.nestedSigHandlers
}
