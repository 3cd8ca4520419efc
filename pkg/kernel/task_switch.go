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

import "fmt"

// SwitchTo hands the CPU to ti, restoring its saved context. The caller
// holds the preemption gate; the gate is released on the switch tail. If ti
// is the current task the switch degenerates to resuming it.
//
// If ti is about to resume in user mode and has deliverable pending
// signals, they are acted on here instead of completing the switch; a
// terminating signal tears the process down and SwitchTo returns
// RunTerminated. Otherwise the return value is RunSwitch and the calling
// context is dead until switched back to.
func (k *Kernel) SwitchTo(ti *Task) RunState {
	cpu := k.cpu
	curr := cpu.current
	state := ti.regs

	if ti != curr {
		if curr.state == TaskRunning {
			panic(fmt.Sprintf("SwitchTo: current task %d still RUNNING", curr.tid))
		}
		ti.assertState(TaskRunnable)
	}
	cpu.assertPreemptionDisabled()

	ti.changeStateIdempotent(TaskRunning)
	ti.timeslice = 0

	// Lazily save the outgoing task's FPU state. Kernel threads never own
	// FPU state and a zombie's state is dead with it.
	if !curr.IsKernelThread() && curr.state != TaskZombie && curr.fpuEnabled() {
		k.platform.SaveFPU(curr.fpu)
	}

	if !ti.IsKernelThread() {
		if k.platform.PageDirectory() != ti.proc.pdir {
			k.platform.SetPageDirectory(ti.proc.pdir)
		}
		// Pending signals are acted on only when resuming user mode;
		// kernel-mode resumption must complete undisturbed.
		if !ti.runningInKernel && state.ReturningToUser() {
			if rs := k.processPendingSignals(ti, sigInUsermode); rs != RunContinue {
				return rs
			}
		}
		if ti.fpuEnabled() {
			k.platform.RestoreFPU(ti.fpu)
		}
	}

	// From here to the final jump the window must stay closed: no
	// interrupts, no reschedule.
	k.platform.DisableInterrupts()
	curr.nestedInterrupts = cpu.nestedInterrupts
	cpu.popNestedInterrupts()
	cpu.EnablePreemptionNoResched()

	if !ti.runningInKernel {
		ti.resetKernelStack()
	} else {
		cpu.adjustNestedInterrupts(ti)
	}

	cpu.current = ti
	ti.timerReady = false
	k.platform.ContextSwitch(state)
	return RunSwitch
}

// Schedule picks the next runnable task and switches to it. The current
// task, if still running, is demoted to runnable and competes again. Falls
// back to the boot task when nothing else is runnable.
func (k *Kernel) Schedule() RunState {
	k.cpu.DisablePreemption()
	return k.yieldPreemptDisabled()
}

// yieldPreemptDisabled is Schedule with the preemption gate already held.
// The gate is released on the switch tail.
func (k *Kernel) yieldPreemptDisabled() RunState {
	cpu := k.cpu
	cpu.assertPreemptionDisabled()

	curr := cpu.current
	if curr.state == TaskRunning {
		curr.changeState(TaskRunnable)
	}

	next := k.pickRunnable(curr)
	if next == nil {
		k.platform.Halt("no runnable tasks")
	}
	return k.SwitchTo(next)
}

// pickRunnable selects the lowest-tid runnable task, preferring any task
// over curr and curr over the boot task. Stopped and vfork-suspended tasks
// are not eligible.
func (k *Kernel) pickRunnable(curr *Task) *Task {
	var best *Task
	k.tasks.ForEach(func(t *Task) {
		if t.state != TaskRunnable || t.stopped || t.vforkStopped {
			return
		}
		if t == curr || t == k.bootTask {
			return
		}
		if best == nil || t.tid < best.tid {
			best = t
		}
	})
	if best != nil {
		return best
	}
	if curr.state == TaskRunnable && !curr.stopped && !curr.vforkStopped {
		return curr
	}
	if k.bootTask.state == TaskRunnable && !k.bootTask.stopped {
		return k.bootTask
	}
	return nil
}
