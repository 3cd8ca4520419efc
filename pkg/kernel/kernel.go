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

// Package kernel implements the task-switching and signal-delivery core:
// the context switch engine, the kernel thread factory, the per-task state
// machine, and POSIX-like signal semantics (pending sets, default actions,
// dispositions, blocking masks).
//
// Shared scheduler-visible state (task states, pending-signal sets, signal
// dispositions) is serialized by the CPU's preemption gate, a counted
// disable/enable of task switching. All mutation paths in this package
// assert that the gate is held.
package kernel

import (
	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/log"
	"vexos.dev/vexos/pkg/platform"
)

// SignalDeliveredHook observes actual signal deliveries, for tracing. It is
// invoked with the target thread id and the delivered signal, with the
// preemption gate held; implementations must not block.
type SignalDeliveredHook func(tid ThreadID, sig vex.Signal)

// Args holds the arguments to New.
type Args struct {
	// Platform is the machine the kernel runs on.
	Platform platform.Platform

	// SignalDelivered, if non-nil, is called whenever a signal is actually
	// delivered to a task.
	SignalDelivered SignalDeliveredHook
}

// Kernel represents the kernel core. It owns the task set, the (single
// modeled) CPU, and the kernel process that all kernel-only threads belong
// to.
type Kernel struct {
	platform platform.Platform

	// tasks is the set of all live tasks.
	tasks *TaskSet

	// cpu is the single modeled core.
	cpu *CPU

	// kernelProcess owns all kernel-only threads. It has no user image, no
	// page directory and no user memory.
	kernelProcess *Process

	// bootTask is the task the machine boots on; it doubles as the idle
	// task that Schedule falls back to when nothing else is runnable.
	bootTask *Task

	signalDelivered SignalDeliveredHook

	// nextEntryPC assigns synthetic code addresses to kernel thread entry
	// functions; see Kernel.entryPC.
	nextEntryPC uint64
}

// New returns an initialized kernel, booted onto its first kernel task.
func New(args Args) *Kernel {
	if args.Platform == nil {
		panic("kernel.New: nil platform")
	}
	k := &Kernel{
		platform:        args.Platform,
		tasks:           newTaskSet(),
		signalDelivered: args.SignalDelivered,
	}
	k.cpu = &CPU{k: k}
	k.kernelProcess = &Process{pid: 0, kernel: true}

	// The boot task is the context the machine is already executing when
	// the kernel comes up; it is created directly rather than through the
	// thread factory.
	tid, err := k.tasks.allocateKernelTID()
	if err != nil {
		panic("kernel.New: tid space exhausted at boot")
	}
	t := k.allocateThread(k.kernelProcess, tid, false)
	t.name = "main"
	t.state = TaskRunning
	t.runningInKernel = true
	k.tasks.add(t)
	k.bootTask = t
	k.cpu.current = t

	return k
}

// Platform returns the machine the kernel runs on.
func (k *Kernel) Platform() platform.Platform {
	return k.platform
}

// TaskSet returns the set of all live tasks.
func (k *Kernel) TaskSet() *TaskSet {
	return k.tasks
}

// CurrentTask returns the task currently executing on the CPU.
func (k *Kernel) CurrentTask() *Task {
	return k.cpu.current
}

// KernelProcess returns the process owning all kernel-only threads.
func (k *Kernel) KernelProcess() *Process {
	return k.kernelProcess
}

// DisablePreemption closes the preemption gate. Calls nest.
func (k *Kernel) DisablePreemption() {
	k.cpu.DisablePreemption()
}

// EnablePreemption reopens the preemption gate.
func (k *Kernel) EnablePreemption() {
	k.cpu.EnablePreemption()
}

// PreemptionEnabled returns true if task switching is currently allowed.
func (k *Kernel) PreemptionEnabled() bool {
	return k.cpu.PreemptionEnabled()
}

// traceSignalDelivered records an actual delivery on the observability side
// channel. Absence of a listener is a no-op.
func (k *Kernel) traceSignalDelivered(t *Task, sig vex.Signal) {
	if log.IsLogging(log.Debug) {
		log.Debugf("delivering %v to tid %d", sig, t.tid)
	}
	if k.signalDelivered != nil {
		k.signalDelivered(t.tid, sig)
	}
}
