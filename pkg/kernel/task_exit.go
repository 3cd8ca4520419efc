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
	"vexos.dev/vexos/pkg/log"
	"vexos.dev/vexos/pkg/waiter"
)

// terminateProcess tears down t's process: every thread becomes a zombie,
// the wait status records the exit code or the terminating signal, and exit
// waiters are notified. Called with the preemption gate released; on real
// hardware it never returns, here the caller propagates RunTerminated.
func (k *Kernel) terminateProcess(t *Task, exitCode int, sig vex.Signal) RunState {
	k.cpu.assertPreemptionEnabled()
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()

	if t.IsKernelThread() {
		panic(fmt.Sprintf("terminateProcess: kernel thread %d", t.tid))
	}

	var ws vex.WaitStatus
	if sig != 0 {
		ws = vex.WaitStatusTerminationSignal(sig)
	} else {
		ws = vex.WaitStatusExit(exitCode)
	}

	if log.IsLogging(log.Debug) {
		log.Debugf("terminating pid %d (wstatus %#x)", t.proc.pid, uint32(ws))
	}

	p := t.proc
	k.tasks.ForEach(func(ti *Task) {
		if ti.proc != p || ti.state == TaskZombie {
			return
		}
		// t itself may be RUNNING without owning the CPU yet: a switch
		// target acting on pending signals has been marked RUNNING before
		// cpu.current is updated.
		if ti.state == TaskRunning && ti != k.cpu.current && ti != t {
			panic(fmt.Sprintf("terminateProcess: task %d RUNNING off-CPU", ti.tid))
		}
		switch ti.state {
		case TaskRunning:
			ti.changeState(TaskRunnable)
		case TaskSleeping:
			ti.Wakeup()
		}
		ti.changeState(TaskZombie)
		ti.stopped = false
		ti.vforkStopped = false
		ti.wstatus = ws
		ti.signalQueue.Notify(waiter.EventExit)
	})

	return RunTerminated
}

// ExitGroup terminates the current task's process with the given exit code.
// Returns RunTerminated; the caller must propagate it to its run loop.
func (k *Kernel) ExitGroup(exitCode int) RunState {
	return k.terminateProcess(k.cpu.current, exitCode, 0)
}

// ReapTask removes a zombie from the task set, releasing its thread id.
func (k *Kernel) ReapTask(t *Task) {
	k.cpu.DisablePreemption()
	defer k.cpu.EnablePreemption()
	t.assertState(TaskZombie)
	k.tasks.remove(t)
}
