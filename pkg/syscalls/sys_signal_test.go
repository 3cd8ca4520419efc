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

package syscalls

import (
	"testing"

	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/kernel"
	"vexos.dev/vexos/pkg/kernelerr"
	"vexos.dev/vexos/pkg/mm"
	"vexos.dev/vexos/pkg/platform/ptest"
	"vexos.dev/vexos/pkg/usermem"
)

const (
	testEntry = 0x4000
	testStack = 0x8000
	// Scratch addresses inside the test image for syscall buffers.
	actAddr    = 0x9000
	oldActAddr = 0x9100
	setAddr    = 0x9200
	oldSetAddr = 0x9300
)

type testEnv struct {
	k   *kernel.Kernel
	mem *usermem.BytesIO
	ti  *kernel.Task
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		mem: usermem.NewBytesIO(make([]byte, 0x10000)),
	}
	env.k = kernel.New(kernel.Args{Platform: &ptest.Platform{}})
	ti, err := env.k.NewUserProcess(testEntry, testStack, mm.NewPageDirectory(0x1000), env.mem)
	if err != nil {
		t.Fatalf("NewUserProcess: %v", err)
	}
	env.ti = ti
	return env
}

func sysArgs(vals ...uintptr) arch.SyscallArguments {
	var args arch.SyscallArguments
	for i, v := range vals {
		args[i] = arch.SyscallArgument{Value: v}
	}
	return args
}

func (e *testEnv) writeSigAction(t *testing.T, addr usermem.Addr, sa vex.SigAction) {
	t.Helper()
	if err := copyOutSigAction(e.mem, addr, sa); err != nil {
		t.Fatalf("writing sigaction at %#x: %v", uintptr(addr), err)
	}
}

func TestRtSigactionInstallAndQuery(t *testing.T) {
	const handler = 0x5000

	env := newTestEnv(t)
	env.writeSigAction(t, actAddr, vex.SigAction{Handler: handler})

	if _, rs, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), actAddr, 0, vex.SignalSetSize)); err != nil || rs != kernel.RunContinue {
		t.Fatalf("install = %v, %v", rs, err)
	}
	if got := env.ti.Process().SignalHandler(vex.SIGUSR1); got != handler {
		t.Errorf("installed handler = %#x, want %#x", got, uint64(handler))
	}

	// Query-only call returns the installed action.
	if _, _, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), 0, oldActAddr, vex.SignalSetSize)); err != nil {
		t.Fatalf("query: %v", err)
	}
	got, err := copyInSigAction(env.mem, oldActAddr)
	if err != nil {
		t.Fatalf("reading old action: %v", err)
	}
	if got.Handler != handler {
		t.Errorf("queried handler = %#x, want %#x", got.Handler, uint64(handler))
	}
}

func TestRtSigactionRejectedArguments(t *testing.T) {
	env := newTestEnv(t)
	env.writeSigAction(t, actAddr, vex.SigAction{Handler: vex.SIG_IGN})

	for _, tc := range []struct {
		name string
		args arch.SyscallArguments
	}{
		{"signal 0", sysArgs(0, actAddr, 0, vex.SignalSetSize)},
		{"signal out of range", sysArgs(uintptr(vex.SignalMaximum + 1), actAddr, 0, vex.SignalSetSize)},
		{"SIGKILL", sysArgs(uintptr(vex.SIGKILL), actAddr, 0, vex.SignalSetSize)},
		{"SIGSTOP", sysArgs(uintptr(vex.SIGSTOP), actAddr, 0, vex.SignalSetSize)},
		{"bad sigsetsize", sysArgs(uintptr(vex.SIGUSR1), actAddr, 0, 4)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := RtSigaction(env.ti, tc.args); err != kernelerr.EINVAL {
				t.Errorf("RtSigaction = %v, want EINVAL", err)
			}
		})
	}
}

func TestRtSigactionUnsupportedFlags(t *testing.T) {
	env := newTestEnv(t)

	// Flags that change delivery semantics are rejected...
	for _, flag := range []uint64{vex.SA_NOCLDSTOP, vex.SA_NOCLDWAIT, vex.SA_SIGINFO, vex.SA_ONSTACK} {
		env.writeSigAction(t, actAddr, vex.SigAction{Handler: vex.SIG_IGN, Flags: flag})
		if _, _, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), actAddr, 0, vex.SignalSetSize)); err != kernelerr.EINVAL {
			t.Errorf("flag %#x: err = %v, want EINVAL", flag, err)
		}
	}

	// ...while the restart/reset/nodefer family is accepted and ignored.
	for _, flag := range []uint64{vex.SA_RESETHAND, vex.SA_NODEFER, vex.SA_RESTART} {
		env.writeSigAction(t, actAddr, vex.SigAction{Handler: vex.SIG_IGN, Flags: flag})
		if _, _, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), actAddr, 0, vex.SignalSetSize)); err != nil {
			t.Errorf("flag %#x: err = %v, want nil", flag, err)
		}
	}
}

func TestRtSigactionFaultingBuffers(t *testing.T) {
	env := newTestEnv(t)
	badAddr := uintptr(0x100000) // beyond the test image

	if _, _, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), badAddr, 0, vex.SignalSetSize)); err != kernelerr.EFAULT {
		t.Errorf("faulting new-action buffer: err = %v, want EFAULT", err)
	}
	if _, _, err := RtSigaction(env.ti, sysArgs(uintptr(vex.SIGUSR1), 0, badAddr, vex.SignalSetSize)); err != kernelerr.EFAULT {
		t.Errorf("faulting old-action buffer: err = %v, want EFAULT", err)
	}
}

func writeSigSet(t *testing.T, mem usermem.IO, addr usermem.Addr, set vex.SignalSet) {
	t.Helper()
	if err := usermem.CopyUint64Out(mem, addr, uint64(set)); err != nil {
		t.Fatalf("writing sigset at %#x: %v", uintptr(addr), err)
	}
}

func readSigSet(t *testing.T, mem usermem.IO, addr usermem.Addr) vex.SignalSet {
	t.Helper()
	v, err := usermem.CopyUint64In(mem, addr)
	if err != nil {
		t.Fatalf("reading sigset at %#x: %v", uintptr(addr), err)
	}
	return vex.SignalSet(v)
}

func TestRtSigprocmaskHowOps(t *testing.T) {
	env := newTestEnv(t)
	p := env.ti.Process()

	// SETMASK establishes a baseline.
	writeSigSet(t, env.mem, setAddr, vex.MakeSignalSet(vex.SIGUSR1, vex.SIGUSR2))
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_SETMASK, setAddr, 0, vex.SignalSetSize)); err != nil {
		t.Fatalf("SIG_SETMASK: %v", err)
	}
	if got, want := p.SignalMask(), vex.MakeSignalSet(vex.SIGUSR1, vex.SIGUSR2); got != want {
		t.Fatalf("mask = %#x, want %#x", got, want)
	}

	// BLOCK adds, UNBLOCK removes.
	writeSigSet(t, env.mem, setAddr, vex.SignalSetOf(vex.SIGTERM))
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_BLOCK, setAddr, 0, vex.SignalSetSize)); err != nil {
		t.Fatalf("SIG_BLOCK: %v", err)
	}
	if got, want := p.SignalMask(), vex.MakeSignalSet(vex.SIGUSR1, vex.SIGUSR2, vex.SIGTERM); got != want {
		t.Fatalf("mask after block = %#x, want %#x", got, want)
	}

	writeSigSet(t, env.mem, setAddr, vex.SignalSetOf(vex.SIGUSR1))
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_UNBLOCK, setAddr, 0, vex.SignalSetSize)); err != nil {
		t.Fatalf("SIG_UNBLOCK: %v", err)
	}
	if got, want := p.SignalMask(), vex.MakeSignalSet(vex.SIGUSR2, vex.SIGTERM); got != want {
		t.Fatalf("mask after unblock = %#x, want %#x", got, want)
	}

	// The old mask is returned before any update applies.
	writeSigSet(t, env.mem, setAddr, 0)
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_SETMASK, setAddr, oldSetAddr, vex.SignalSetSize)); err != nil {
		t.Fatalf("SETMASK with oldset: %v", err)
	}
	if got, want := readSigSet(t, env.mem, oldSetAddr), vex.MakeSignalSet(vex.SIGUSR2, vex.SIGTERM); got != want {
		t.Errorf("old mask = %#x, want %#x", got, want)
	}
	if p.SignalMask() != 0 {
		t.Errorf("mask = %#x after clearing, want 0", p.SignalMask())
	}
}

func TestRtSigprocmaskBadHow(t *testing.T) {
	env := newTestEnv(t)
	writeSigSet(t, env.mem, setAddr, vex.SignalSetOf(vex.SIGTERM))
	if _, _, err := RtSigprocmask(env.ti, sysArgs(99, setAddr, 0, vex.SignalSetSize)); err != kernelerr.EINVAL {
		t.Errorf("bad how: err = %v, want EINVAL", err)
	}
}

func TestRtSigprocmaskWideOldsetZeroPadded(t *testing.T) {
	env := newTestEnv(t)
	p := env.ti.Process()

	env.k.DisablePreemption()
	p.SetSignalMask(vex.SignalSetOf(vex.SIGTERM))
	env.k.EnablePreemption()

	// Pre-fill the tail of the wide buffer to prove it gets zeroed.
	if err := env.mem.CopyOut(oldSetAddr+vex.SignalSetSize, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("pre-filling buffer: %v", err)
	}
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_SETMASK, 0, oldSetAddr, 2*vex.SignalSetSize)); err != nil {
		t.Fatalf("RtSigprocmask: %v", err)
	}
	if got := readSigSet(t, env.mem, oldSetAddr); got != vex.SignalSetOf(vex.SIGTERM) {
		t.Errorf("old mask = %#x, want %#x", got, vex.SignalSetOf(vex.SIGTERM))
	}
	if tail := readSigSet(t, env.mem, oldSetAddr+vex.SignalSetSize); tail != 0 {
		t.Errorf("wide buffer tail = %#x, want zero padding", tail)
	}
}

func TestRtSigprocmaskFaultAfterOldset(t *testing.T) {
	env := newTestEnv(t)
	p := env.ti.Process()

	env.k.DisablePreemption()
	p.SetSignalMask(vex.SignalSetOf(vex.SIGTERM))
	env.k.EnablePreemption()

	// The oldset write lands, then the set copy faults; the mask stays
	// untouched and the syscall reports the fault.
	badAddr := uintptr(0x100000)
	if _, _, err := RtSigprocmask(env.ti, sysArgs(vex.SIG_SETMASK, badAddr, oldSetAddr, vex.SignalSetSize)); err != kernelerr.EFAULT {
		t.Fatalf("err = %v, want EFAULT", err)
	}
	if got := readSigSet(t, env.mem, oldSetAddr); got != vex.SignalSetOf(vex.SIGTERM) {
		t.Errorf("old mask = %#x, want %#x", got, vex.SignalSetOf(vex.SIGTERM))
	}
	if p.SignalMask() != vex.SignalSetOf(vex.SIGTERM) {
		t.Errorf("mask changed to %#x on faulting update", p.SignalMask())
	}
}

func TestKillValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := Kill(env.ti, sysArgs(0, uintptr(vex.SIGTERM))); err != kernelerr.EINVAL {
		t.Errorf("pid 0: err = %v, want EINVAL", err)
	}
	if _, _, err := Kill(env.ti, sysArgs(uintptr(^uintptr(0)), uintptr(vex.SIGTERM))); err != kernelerr.EINVAL {
		t.Errorf("negative pid: err = %v, want EINVAL", err)
	}
	if _, _, err := Kill(env.ti, sysArgs(4242, uintptr(vex.SIGTERM))); err != kernelerr.ESRCH {
		t.Errorf("unknown pid: err = %v, want ESRCH", err)
	}
	// Probe an existing process with signal 0.
	if _, rs, err := Kill(env.ti, sysArgs(uintptr(env.ti.ThreadID()), 0)); err != nil || rs != kernel.RunContinue {
		t.Errorf("probe = %v, %v; want continue, nil", rs, err)
	}
}

func TestTkillTargetsSingleThread(t *testing.T) {
	env := newTestEnv(t)
	second, err := env.k.NewUserThread(env.ti.Process(), testEntry, testStack)
	if err != nil {
		t.Fatalf("NewUserThread: %v", err)
	}

	if _, rs, err := Tkill(env.ti, sysArgs(uintptr(second.ThreadID()), uintptr(vex.SIGTERM))); err != nil || rs != kernel.RunContinue {
		t.Fatalf("Tkill = %v, %v", rs, err)
	}
	if !second.PendingSignals().Contains(vex.SIGTERM) {
		t.Error("SIGTERM not pending on the targeted thread")
	}
	if env.ti.PendingSignals() != 0 {
		t.Error("signal leaked to the calling thread")
	}

	if _, _, err := Tkill(env.ti, sysArgs(4242, uintptr(vex.SIGTERM))); err != kernelerr.ESRCH {
		t.Errorf("unknown tid: err = %v, want ESRCH", err)
	}
}

func TestLegacyEntryPointsNotImplemented(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		name string
		fn   Handler
	}{
		{"sigaction", Sigaction},
		{"sigprocmask", Sigprocmask},
		{"signal", Signal},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, rs, err := tc.fn(env.ti, sysArgs()); err != kernelerr.ENOSYS || rs != kernel.RunContinue {
				t.Errorf("legacy %s = %v, %v; want continue, ENOSYS", tc.name, rs, err)
			}
		})
	}
}
