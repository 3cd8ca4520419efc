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
	"vexos.dev/vexos/pkg/bits"
	"vexos.dev/vexos/pkg/kernelerr"
	"vexos.dev/vexos/pkg/log"
	"vexos.dev/vexos/pkg/waiter"
)

// SendFlags qualify a signal send.
type SendFlags int

const (
	// SendProcess directs the signal at the whole process rather than one
	// thread.
	SendProcess SendFlags = 1 << iota

	// SendFault marks the signal as originated by a hardware fault.
	SendFault
)

// Pending-set primitives. All run under the preemption gate.

// addPendingSignal marks sig pending on t. Signals beyond the supported
// range are silently dropped.
func (t *Task) addPendingSignal(sig vex.Signal) {
	if sig <= 0 {
		panic(fmt.Sprintf("addPendingSignal: bad signal %d", sig))
	}
	if int(sig) > vex.SignalMaximum {
		return
	}
	t.pending |= vex.SignalSetOf(sig)
}

// delPendingSignal clears sig from t's pending set. Out-of-range signals
// are silently ignored.
func (t *Task) delPendingSignal(sig vex.Signal) {
	if sig <= 0 {
		panic(fmt.Sprintf("delPendingSignal: bad signal %d", sig))
	}
	if int(sig) > vex.SignalMaximum {
		return
	}
	t.pending &^= vex.SignalSetOf(sig)
}

// isPendingSignal returns true if sig is pending on t. Out-of-range signals
// are never pending.
func (t *Task) isPendingSignal(sig vex.Signal) bool {
	if sig <= 0 {
		panic(fmt.Sprintf("isPendingSignal: bad signal %d", sig))
	}
	if int(sig) > vex.SignalMaximum {
		return false
	}
	return t.pending&vex.SignalSetOf(sig) != 0
}

// firstPendingSignal returns the lowest-numbered pending signal, or ok
// false if none is pending.
func (t *Task) firstPendingSignal() (vex.Signal, bool) {
	if t.pending == 0 {
		return 0, false
	}
	return vex.Signal(bits.TrailingZeros64(uint64(t.pending)) + 1), true
}

// signalAction is a default disposition class.
type signalAction int

const (
	actionTerminate signalAction = iota
	actionIgnore
	actionStop
	actionContinue
)

// defaultActions maps each supported signal to its default action. Signals
// absent from the table fall back to terminate.
var defaultActions = map[vex.Signal]signalAction{
	vex.SIGHUP:    actionTerminate,
	vex.SIGINT:    actionTerminate,
	vex.SIGQUIT:   actionTerminate,
	vex.SIGILL:    actionTerminate,
	vex.SIGABRT:   actionTerminate,
	vex.SIGFPE:    actionTerminate,
	vex.SIGKILL:   actionTerminate,
	vex.SIGSEGV:   actionTerminate,
	vex.SIGPIPE:   actionTerminate,
	vex.SIGALRM:   actionTerminate,
	vex.SIGTERM:   actionTerminate,
	vex.SIGUSR1:   actionTerminate,
	vex.SIGUSR2:   actionTerminate,
	vex.SIGBUS:    actionTerminate,
	vex.SIGPROF:   actionTerminate,
	vex.SIGSYS:    actionTerminate,
	vex.SIGTRAP:   actionTerminate,
	vex.SIGVTALRM: actionTerminate,
	vex.SIGXCPU:   actionTerminate,
	vex.SIGXFSZ:   actionTerminate,

	vex.SIGCHLD: actionIgnore,
	vex.SIGURG:  actionIgnore,

	vex.SIGCONT: actionContinue,

	vex.SIGSTOP: actionStop,
	vex.SIGTSTP: actionStop,
	vex.SIGTTIN: actionStop,
	vex.SIGTTOU: actionStop,
}

func defaultAction(sig vex.Signal) signalAction {
	if a, ok := defaultActions[sig]; ok {
		return a
	}
	return actionTerminate
}

// String implements fmt.Stringer.
func (a signalAction) String() string {
	switch a {
	case actionTerminate:
		return "terminate"
	case actionIgnore:
		return "ignore"
	case actionStop:
		return "stop"
	case actionContinue:
		return "continue"
	default:
		return fmt.Sprintf("signalAction(%d)", int(a))
	}
}

// DefaultActionName returns the name of the default action taken for sig.
func DefaultActionName(sig vex.Signal) string {
	return defaultAction(sig).String()
}

// SendSignal sends sig to the task tid of process pid. wholeProcess directs
// the signal at the process as a whole, in which case tid must be the
// process id. Signal 0 only probes that the target exists.
//
// If the action taken tears down the calling task's own process, SendSignal
// returns RunTerminated and the caller must propagate it without touching
// task state.
func (k *Kernel) SendSignal(pid, tid ThreadID, sig vex.Signal, wholeProcess bool) (RunState, error) {
	if sig < 0 || int(sig) > vex.SignalMaximum {
		return RunContinue, kernelerr.EINVAL
	}
	flags := SendFlags(0)
	if wholeProcess {
		flags |= SendProcess
	}

	k.cpu.DisablePreemption()
	rs, err := k.sendSignal(pid, tid, sig, flags)
	if rs == RunContinue {
		k.cpu.EnablePreemption()
	}
	return rs, err
}

// sendSignal validates the target and dispatches. The caller holds the
// preemption gate; on any divergent RunState the gate has already been
// rebalanced by the action.
func (k *Kernel) sendSignal(pid, tid ThreadID, sig vex.Signal, flags SendFlags) (RunState, error) {
	ti := k.tasks.TaskWithID(tid)
	if ti == nil {
		return RunContinue, kernelerr.ESRCH
	}
	// Kernel threads are not signalable.
	if ti.IsKernelThread() {
		return RunContinue, kernelerr.ESRCH
	}
	// A process-directed signal must name the process by its leader.
	if flags&SendProcess != 0 && ti.proc.pid != tid {
		return RunContinue, kernelerr.ESRCH
	}
	if ti.proc.pid != pid {
		return RunContinue, kernelerr.ESRCH
	}
	if sig == 0 {
		// Existence probe only.
		return RunContinue, nil
	}
	if ti.state == TaskZombie {
		return RunContinue, nil
	}
	return k.deliverSignal(ti, sig, flags), nil
}

// deliverSignal resolves sig's disposition for ti and applies the action.
// The caller holds the preemption gate.
func (k *Kernel) deliverSignal(ti *Task, sig vex.Signal, flags SendFlags) RunState {
	h := ti.proc.SignalHandler(sig)
	switch h {
	case vex.SIG_IGN:
		return k.actionIgnore(ti, sig)
	case vex.SIG_DFL:
		// Fall through to the default action below.
	default:
		// A user handler is installed. Handler invocation happens at the
		// task's own return-to-user boundary; here the signal only becomes
		// pending.
		ti.addPendingSignal(sig)
		if ti.state == TaskSleeping && ti.wait.interruptible() {
			ti.Wakeup()
		}
		return RunContinue
	}

	if flags&SendFault != 0 {
		log.Debugf("fault signal %v for tid %d", sig, ti.tid)
	}

	switch defaultAction(sig) {
	case actionTerminate:
		return k.actionTerminate(ti, sig)
	case actionIgnore:
		return k.actionIgnore(ti, sig)
	case actionStop:
		return k.actionStop(ti, sig)
	case actionContinue:
		return k.actionContinue(ti, sig)
	}
	panic("unreachable")
}

// actionTerminate kills ti's process. If ti is the current task the
// teardown happens now and the call diverges with RunTerminated; otherwise
// the signal is left pending and ti is kicked toward a delivery point.
func (k *Kernel) actionTerminate(ti *Task, sig vex.Signal) RunState {
	k.cpu.assertPreemptionDisabled()
	if ti.IsKernelThread() {
		panic(fmt.Sprintf("actionTerminate: kernel thread %d", ti.tid))
	}

	if ti == k.cpu.current {
		k.traceSignalDelivered(ti, sig)
		k.cpu.EnablePreemption()
		return k.terminateProcess(ti, 0, sig)
	}

	ti.addPendingSignal(sig)

	if !ti.vforkStopped {
		if ti.state == TaskSleeping {
			// Tasks blocked on a mutex or semaphore hold a place in the
			// primitive's wait list and are left to wake on their own; the
			// pending signal fires at their next return-to-user boundary.
			if ti.wait.interruptible() {
				ti.Wakeup()
			}
		}
		ti.stopped = false
	}
	// A vfork-suspended task keeps the signal pending until the
	// suspension ends.
	return RunContinue
}

// actionIgnore discards the signal. Ignoring a signal sent to init is
// legal but suspicious enough to log.
func (k *Kernel) actionIgnore(ti *Task, sig vex.Signal) RunState {
	if ti.tid == InitTID {
		log.Warningf("ignoring signal %v [%d] sent to init (pid 1)", sig, int(sig))
	}
	return RunContinue
}

// actionStop holds ti until a continue or terminate signal. Stopping the
// current task gives up the CPU immediately.
func (k *Kernel) actionStop(ti *Task, sig vex.Signal) RunState {
	if ti.IsKernelThread() {
		panic(fmt.Sprintf("actionStop: kernel thread %d", ti.tid))
	}
	k.traceSignalDelivered(ti, sig)
	ti.stopped = true
	ti.wstatus = vex.WaitStatusStopped(sig)
	ti.signalQueue.Notify(waiter.EventChildStop)
	if ti == k.cpu.current {
		return k.yieldPreemptDisabled()
	}
	return RunContinue
}

// actionContinue releases a stop. A vfork suspension is not a stop and is
// left alone.
func (k *Kernel) actionContinue(ti *Task, sig vex.Signal) RunState {
	if ti.IsKernelThread() {
		panic(fmt.Sprintf("actionContinue: kernel thread %d", ti.tid))
	}
	if ti.vforkStopped {
		return RunContinue
	}
	k.traceSignalDelivered(ti, sig)
	ti.stopped = false
	ti.wstatus = vex.WaitStatusContinued
	ti.signalQueue.Notify(waiter.EventChildContinue)
	return RunContinue
}

// processPendingSignals acts on pending signals at a return-to-user
// boundary, lowest signal number first: a user handler gets a frame built
// on the user stack, a default disposition tears the process down. The
// caller holds the preemption gate; on RunTerminated the gate has been
// rebalanced.
func (k *Kernel) processPendingSignals(t *Task, st sigState) RunState {
	k.cpu.assertPreemptionDisabled()
	for {
		sig, ok := t.firstPendingSignal()
		if !ok {
			return RunContinue
		}
		switch h := t.proc.SignalHandler(sig); h {
		case vex.SIG_IGN:
			// The disposition changed to ignore after the signal was
			// queued; drop it and look at the next one.
			t.delPendingSignal(sig)

		case vex.SIG_DFL:
			k.traceSignalDelivered(t, sig)
			k.cpu.EnablePreemption()
			return k.terminateProcess(t, 0, sig)

		default:
			t.delPendingSignal(sig)
			if err := k.setupSignalHandlerFrame(t, st, t.regs, h, sig); err != nil {
				// An unwritable user stack leaves no way to run the
				// handler.
				log.Warningf("cannot build signal frame for tid %d: %v", t.tid, err)
				k.traceSignalDelivered(t, sig)
				k.cpu.EnablePreemption()
				return k.terminateProcess(t, 0, vex.SIGSEGV)
			}
			k.traceSignalDelivered(t, sig)
			return RunContinue
		}
	}
}

// ProcessPendingSignals is the return-to-user delivery point for the
// current task.
func (k *Kernel) ProcessPendingSignals() RunState {
	k.cpu.DisablePreemption()
	rs := k.processPendingSignals(k.cpu.current, sigInUsermode)
	if rs == RunContinue {
		k.cpu.EnablePreemption()
	}
	return rs
}

// ProcessPendingSignalsPreSyscall is the delivery point on syscall entry,
// before the syscall body runs. A handled signal makes the interrupted
// syscall fail with EINTR.
func (k *Kernel) ProcessPendingSignalsPreSyscall() RunState {
	k.cpu.DisablePreemption()
	rs := k.processPendingSignals(k.cpu.current, sigPreSyscall)
	if rs == RunContinue {
		k.cpu.EnablePreemption()
	}
	return rs
}
