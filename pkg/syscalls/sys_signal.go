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
	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/kernel"
	"vexos.dev/vexos/pkg/kernelerr"
	"vexos.dev/vexos/pkg/log"
	"vexos.dev/vexos/pkg/usermem"
)

// RtSigaction implements rt_sigaction(2).
func RtSigaction(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	sig := vex.Signal(args[0].Int())
	newActAddr := args[1].Pointer()
	oldActAddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()

	if !sig.IsValid() {
		return 0, kernel.RunContinue, kernelerr.EINVAL
	}
	// The dispositions of SIGKILL and SIGSTOP are immutable.
	if sig == vex.SIGKILL || sig == vex.SIGSTOP {
		return 0, kernel.RunContinue, kernelerr.EINVAL
	}
	if sigsetsize != vex.SignalSetSize {
		return 0, kernel.RunContinue, kernelerr.EINVAL
	}

	k := t.Kernel()
	p := t.Process()
	mem := p.Memory()

	k.DisablePreemption()
	oldAct := vex.SigAction{
		Handler: p.SignalHandler(sig),
		Mask:    p.SignalMask(),
	}
	var err error
	if newActAddr != 0 {
		err = installSigAction(p, mem, sig, newActAddr)
	}
	k.EnablePreemption()
	if err != nil {
		return 0, kernel.RunContinue, err
	}

	if oldActAddr != 0 {
		if err := copyOutSigAction(mem, oldActAddr, oldAct); err != nil {
			return 0, kernel.RunContinue, err
		}
	}
	return 0, kernel.RunContinue, nil
}

// installSigAction validates and installs a new disposition. Called with
// the preemption gate held.
func installSigAction(p *kernel.Process, mem usermem.IO, sig vex.Signal, addr usermem.Addr) error {
	act, err := copyInSigAction(mem, addr)
	if err != nil {
		return err
	}

	// SA_RESETHAND, SA_NODEFER and SA_RESTART are accepted and ignored;
	// the remaining flags change delivery semantics and cannot be silently
	// dropped.
	if act.Flags&(vex.SA_NOCLDSTOP|vex.SA_NOCLDWAIT|vex.SA_SIGINFO|vex.SA_ONSTACK) != 0 {
		return kernelerr.EINVAL
	}

	p.SetSignalHandler(sig, act.Handler)
	return nil
}

// RtSigprocmask implements rt_sigprocmask(2).
//
// The new mask is copied from user memory and applied one word at a time.
// If a later word faults, the words already read have been applied and
// stay applied; the syscall then returns EFAULT.
func RtSigprocmask(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	how := args[0].Int()
	setAddr := args[1].Pointer()
	oldSetAddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()

	k := t.Kernel()
	p := t.Process()
	mem := p.Memory()

	k.DisablePreemption()
	defer k.EnablePreemption()

	if oldSetAddr != 0 {
		if err := copyOutSigSet(mem, oldSetAddr, p.SignalMask(), sigsetsize); err != nil {
			return 0, kernel.RunContinue, err
		}
	}

	if setAddr != 0 {
		for i := 0; i < vex.SignalSetWords; i++ {
			w, err := usermem.CopyUint64In(mem, setAddr+usermem.Addr(8*i))
			if err != nil {
				return 0, kernel.RunContinue, kernelerr.EFAULT
			}
			mask := p.SignalMask()
			switch how {
			case vex.SIG_BLOCK:
				mask |= vex.SignalSet(w) << (64 * i)
			case vex.SIG_UNBLOCK:
				mask &^= vex.SignalSet(w) << (64 * i)
			case vex.SIG_SETMASK:
				mask = vex.SignalSet(w) << (64 * i)
			default:
				return 0, kernel.RunContinue, kernelerr.EINVAL
			}
			p.SetSignalMask(mask)
		}
	}
	return 0, kernel.RunContinue, nil
}

// Kill implements kill(2). Process groups are not supported: pid must be
// positive and name a process, which receives a process-directed signal.
func Kill(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	pid := kernel.ThreadID(args[0].Int())
	sig := vex.Signal(args[1].Int())

	if pid <= 0 {
		return 0, kernel.RunContinue, kernelerr.EINVAL
	}
	rs, err := t.Kernel().SendSignal(pid, pid, sig, true)
	return 0, rs, err
}

// Tkill implements tkill(2): a signal directed at one specific thread.
func Tkill(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	tid := kernel.ThreadID(args[0].Int())
	sig := vex.Signal(args[1].Int())

	if tid <= 0 {
		return 0, kernel.RunContinue, kernelerr.EINVAL
	}
	target := t.Kernel().TaskSet().TaskWithID(tid)
	if target == nil {
		return 0, kernel.RunContinue, kernelerr.ESRCH
	}
	rs, err := t.Kernel().SendSignal(target.Process().PID(), tid, sig, false)
	return 0, rs, err
}

// RtSigreturn implements the kernel side of the post-signal-handler
// trampoline.
func RtSigreturn(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	rs, err := t.Kernel().HandlerReturn()
	return 0, rs, err
}

// The pre-rt legacy entry points are deliberately not implemented; modern
// userspace goes through the rt_ variants. They fail loudly so that a stray
// caller is visible in the logs.

// Sigaction implements the legacy sigaction(2) entry point.
func Sigaction(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	log.Warningf("legacy sigaction(2) called by pid %d: not implemented", t.Process().PID())
	return 0, kernel.RunContinue, kernelerr.ENOSYS
}

// Sigprocmask implements the legacy sigprocmask(2) entry point.
func Sigprocmask(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	log.Warningf("legacy sigprocmask(2) called by pid %d: not implemented", t.Process().PID())
	return 0, kernel.RunContinue, kernelerr.ENOSYS
}

// Signal implements the legacy signal(2) entry point.
func Signal(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error) {
	log.Warningf("legacy signal(2) called by pid %d: not implemented", t.Process().PID())
	return 0, kernel.RunContinue, kernelerr.ENOSYS
}
