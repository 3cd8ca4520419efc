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

	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/mm"
	"vexos.dev/vexos/pkg/platform/ptest"
	"vexos.dev/vexos/pkg/usermem"
)

const (
	testUserEntry = 0x4000
	testUserStack = 0x8000
	testMemSize   = 0x10000
)

type delivered struct {
	tid ThreadID
	sig vex.Signal
}

type testEnv struct {
	k    *Kernel
	plat *ptest.Platform
	mem  *usermem.BytesIO

	delivered []delivered
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		plat: &ptest.Platform{},
		mem:  usermem.NewBytesIO(make([]byte, testMemSize)),
	}
	env.k = New(Args{
		Platform: env.plat,
		SignalDelivered: func(tid ThreadID, sig vex.Signal) {
			env.delivered = append(env.delivered, delivered{tid, sig})
		},
	})
	return env
}

// newUserTask creates a one-thread user process backed by the test memory
// image.
func (e *testEnv) newUserTask(t *testing.T) *Task {
	t.Helper()
	task, err := e.k.NewUserProcess(testUserEntry, testUserStack, mm.NewPageDirectory(0x1000), e.mem)
	if err != nil {
		t.Fatalf("NewUserProcess: %v", err)
	}
	return task
}

// makeCurrent parks the real current task and puts ti on the CPU, as if it
// had been switched to.
func (e *testEnv) makeCurrent(ti *Task) {
	curr := e.k.cpu.current
	if curr != ti && curr.state == TaskRunning {
		curr.changeState(TaskRunnable)
	}
	if ti.state != TaskRunning {
		ti.changeState(TaskRunning)
	}
	e.k.cpu.current = ti
}

func TestBoot(t *testing.T) {
	env := newTestEnv(t)
	k := env.k

	curr := k.CurrentTask()
	if curr == nil {
		t.Fatal("no current task after boot")
	}
	if !curr.IsKernelThread() {
		t.Error("boot task is not a kernel thread")
	}
	if got := curr.State(); got != TaskRunning {
		t.Errorf("boot task state = %v, want RUNNING", got)
	}
	if curr.ThreadID() <= maxUserTID {
		t.Errorf("boot task tid %d inside the user id range", curr.ThreadID())
	}
	if !k.PreemptionEnabled() {
		t.Error("preemption disabled after boot")
	}
}

func TestUserTIDAndKernelTIDRangesDisjoint(t *testing.T) {
	env := newTestEnv(t)

	ut := env.newUserTask(t)
	if ut.ThreadID() != InitTID {
		t.Errorf("first user pid = %d, want %d", ut.ThreadID(), InitTID)
	}
	kt, err := env.k.NewKernelThread(func(*Kernel, any) {}, "noop", 0, nil)
	if err != nil {
		t.Fatalf("NewKernelThread: %v", err)
	}
	if kt <= maxUserTID {
		t.Errorf("kernel thread tid %d inside the user id range", kt)
	}
}

func TestProcessLeaderPID(t *testing.T) {
	env := newTestEnv(t)

	leader := env.newUserTask(t)
	p := leader.Process()
	if p.PID() != leader.ThreadID() {
		t.Errorf("leader pid %d != tid %d", p.PID(), leader.ThreadID())
	}

	th, err := env.k.NewUserThread(p, testUserEntry, testUserStack)
	if err != nil {
		t.Fatalf("NewUserThread: %v", err)
	}
	if th.Process() != p {
		t.Error("second thread not in leader's process")
	}
	if th.ThreadID() == p.PID() {
		t.Error("second thread reused the leader tid")
	}
}
