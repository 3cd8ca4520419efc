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
	"testing"

	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/waiter"
)

func TestNewKernelThreadContext(t *testing.T) {
	env := newTestEnv(t)
	k := env.k

	tid, err := k.NewKernelThread(func(*Kernel, any) {}, "kworker", 0, 42)
	if err != nil {
		t.Fatalf("NewKernelThread: %v", err)
	}
	ti := k.TaskSet().TaskWithID(tid)
	if ti == nil {
		t.Fatal("created thread not in the task set")
	}

	// The thread may legitimately have run and died already; here nothing
	// schedules, so it must still be runnable.
	if got := ti.State(); got != TaskRunnable && got != TaskZombie {
		t.Errorf("state = %v, want RUNNABLE or ZOMBIE", got)
	}
	if !ti.IsKernelThread() {
		t.Error("created thread not owned by the kernel process")
	}
	if ti.Name() != "kworker" {
		t.Errorf("name = %q, want %q", ti.Name(), "kworker")
	}

	r := ti.Registers()
	if r.KernelResumePC != arch.TrapEntryResumeAddr {
		t.Errorf("resume pc = %#x, want trap-entry resume %#x", r.KernelResumePC, arch.TrapEntryResumeAddr)
	}
	if r.RA != arch.KthreadExitAddr {
		t.Errorf("ra = %#x, want thread-exit stub %#x", r.RA, arch.KthreadExitAddr)
	}
	wantStatus := uint64(arch.StatusPrevInterruptEnable | arch.StatusPrevPrivileged |
		arch.StatusInterruptEnable | arch.StatusUserMemoryAccess)
	if r.Status != wantStatus {
		t.Errorf("status = %#x, want %#x", r.Status, wantStatus)
	}
	if r.ReturningToUser() {
		t.Error("kernel thread context drops to user mode")
	}
	if r.Args[0] != 42 {
		t.Errorf("a0 = %d, want argument 42", r.Args[0])
	}
	if r.SP != uint64(ti.stateRegsAt) {
		t.Errorf("sp = %#x, want initial frame at %#x", r.SP, uint64(ti.stateRegsAt))
	}
	if ti.FPUState() != nil {
		t.Error("kernel thread allocated FPU state")
	}
}

func TestKernelThreadRunsAndExits(t *testing.T) {
	env := newTestEnv(t)
	k := env.k

	var got any
	tid, err := k.NewKernelThread(func(_ *Kernel, arg any) { got = arg }, "echo", 0, 7)
	if err != nil {
		t.Fatalf("NewKernelThread: %v", err)
	}
	ti := k.TaskSet().TaskWithID(tid)

	e, ch := waiter.NewChannelEntry(nil)
	ti.SignalQueue().EventRegister(&e, waiter.EventExit)

	if rs := k.Schedule(); rs != RunSwitch {
		t.Fatalf("Schedule = %v, want switch", rs)
	}
	if k.CurrentTask() != ti {
		t.Fatal("kernel thread not scheduled")
	}
	if rs := k.RunKthread(); rs != RunSwitch {
		t.Fatalf("RunKthread = %v, want switch", rs)
	}

	if got != 7 {
		t.Errorf("entry argument = %v, want 7", got)
	}
	ti.assertState(TaskZombie)
	if ws := ti.WaitStatus(); !ws.Exited() || ws.ExitCode() != 0 {
		t.Errorf("wstatus = %#x, want clean exit", uint32(ws))
	}
	select {
	case <-ch:
	default:
		t.Error("exit waiters not notified")
	}
	if k.CurrentTask() == ti {
		t.Error("zombie still owns the CPU")
	}
}

func TestKernelThreadWorkerFlag(t *testing.T) {
	env := newTestEnv(t)
	tid, err := env.k.NewKernelThread(func(*Kernel, any) {}, "wq", KthreadWorker, nil)
	if err != nil {
		t.Fatalf("NewKernelThread: %v", err)
	}
	if !env.k.TaskSet().TaskWithID(tid).IsWorker() {
		t.Error("worker flag not set")
	}
}

func TestNewUserProcessContext(t *testing.T) {
	env := newTestEnv(t)
	ti := env.newUserTask(t)

	r := ti.Registers()
	if r.PC != testUserEntry {
		t.Errorf("pc = %#x, want entry %#x", r.PC, uint64(testUserEntry))
	}
	if got := r.GetUserSP(); got != testUserStack {
		t.Errorf("user sp = %#x, want %#x", got, uint64(testUserStack))
	}
	if !r.ReturningToUser() {
		t.Error("initial context does not drop to user mode")
	}
	if ti.FPUState() == nil {
		t.Error("user task has no FPU buffer")
	}
	if r.FPUEnabled() {
		t.Error("fresh context marked as having used the FPU")
	}
	ti.assertState(TaskRunnable)
}
