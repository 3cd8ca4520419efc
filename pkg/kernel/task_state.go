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

// TaskState is a task's owner state. Every task is in exactly one state at
// any time; the stopped flag is tracked separately (see Task.Stopped).
type TaskState int32

const (
	// TaskRunnable means the task is eligible to be picked by the
	// scheduler.
	TaskRunnable TaskState = iota

	// TaskRunning means the task owns the CPU.
	TaskRunning

	// TaskSleeping means the task waits on a wait object and is not
	// eligible to run.
	TaskSleeping

	// TaskZombie means the task has terminated and awaits reaping. The
	// state is terminal.
	TaskZombie
)

// String implements fmt.Stringer.
func (s TaskState) String() string {
	switch s {
	case TaskRunnable:
		return "RUNNABLE"
	case TaskRunning:
		return "RUNNING"
	case TaskSleeping:
		return "SLEEPING"
	case TaskZombie:
		return "ZOMBIE"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// WaitKind identifies the kind of object a sleeping task waits on. Wakeup
// policy for terminating signals depends on it.
type WaitKind int

const (
	// WaitKindNone is the zero kind; never held by a sleeping task.
	WaitKindNone WaitKind = iota

	// WaitKindMutex and WaitKindSemaphore are kernel synchronization
	// primitives. Tasks sleeping on them hold a place in the primitive's
	// wait list and must not be woken by signal delivery.
	WaitKindMutex
	WaitKindSemaphore

	// WaitKindCondition is a condition wait; interruptible by signals.
	WaitKindCondition

	// WaitKindTimer is a timed sleep; interruptible by signals.
	WaitKindTimer
)

// String implements fmt.Stringer.
func (k WaitKind) String() string {
	switch k {
	case WaitKindNone:
		return "none"
	case WaitKindMutex:
		return "mutex"
	case WaitKindSemaphore:
		return "semaphore"
	case WaitKindCondition:
		return "condition"
	case WaitKindTimer:
		return "timer"
	default:
		return fmt.Sprintf("WaitKind(%d)", int(k))
	}
}

// WaitObject describes what a sleeping task waits on.
type WaitObject struct {
	Kind WaitKind

	// Object is the primitive waited on, opaque to the scheduler.
	Object any
}

// interruptible reports whether signal delivery may wake a task sleeping on
// w. Mutex and semaphore sleepers keep their place in the primitive's wait
// list; waking them there would corrupt it.
func (w *WaitObject) interruptible() bool {
	return w.Kind != WaitKindMutex && w.Kind != WaitKindSemaphore
}

// changeState moves the task to a new owner state, enforcing the legal
// transitions. The caller holds the preemption gate.
func (t *Task) changeState(next TaskState) {
	if t.state == next {
		panic(fmt.Sprintf("task %d: no-op state change %v", t.tid, t.state))
	}
	if t.state == TaskZombie {
		panic(fmt.Sprintf("task %d: state change %v -> %v from terminal state", t.tid, t.state, next))
	}
	switch next {
	case TaskRunning:
		if t.state != TaskRunnable {
			panic(fmt.Sprintf("task %d: %v -> RUNNING, want RUNNABLE", t.tid, t.state))
		}
	case TaskSleeping:
		if t.wait == nil {
			panic(fmt.Sprintf("task %d: SLEEPING without a wait object", t.tid))
		}
	}
	prev := t.state
	t.state = next
	if prev == TaskSleeping && next != TaskSleeping {
		t.wait = nil
	}
}

// changeStateIdempotent is changeState tolerating an already-reached
// TaskRunning, for the current task re-entering the switch path.
func (t *Task) changeStateIdempotent(next TaskState) {
	if next == TaskRunning && t.state == TaskRunning {
		return
	}
	t.changeState(next)
}

func (t *Task) assertState(want TaskState) {
	if t.state != want {
		panic(fmt.Sprintf("task %d: state %v, want %v", t.tid, t.state, want))
	}
}

// SleepOn puts the task to sleep on w. The caller holds the preemption
// gate; the task must not be a zombie.
func (t *Task) SleepOn(w *WaitObject) {
	if w == nil || w.Kind == WaitKindNone {
		panic("SleepOn: no wait object")
	}
	t.wait = w
	t.changeState(TaskSleeping)
}

// Wakeup makes a sleeping task runnable, detaching it from its wait object.
// The caller holds the preemption gate.
func (t *Task) Wakeup() {
	t.assertState(TaskSleeping)
	t.changeState(TaskRunnable)
}
