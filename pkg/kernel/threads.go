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
	"sync"

	"vexos.dev/vexos/pkg/kernelerr"
)

// ThreadID is a kernel thread identifier. For a process's leader thread the
// ThreadID doubles as the process id.
type ThreadID int32

// InitTID is the thread id of the init process.
const InitTID ThreadID = 1

const (
	// maxUserTID bounds the id space for user threads and processes.
	// Kernel-only threads live strictly above it, so the two ranges never
	// collide.
	maxUserTID ThreadID = 32768

	// kernelTIDBase is the first id handed to kernel-only threads.
	kernelTIDBase ThreadID = maxUserTID + 1

	// maxKernelTID bounds the kernel thread id space.
	maxKernelTID ThreadID = kernelTIDBase + 4096

	// TasksLimit is the maximum number of live tasks.
	TasksLimit = 1 << 15
)

// TaskSet holds all live tasks, indexed by thread id. Zombies stay in the
// set until reaped.
type TaskSet struct {
	mu sync.RWMutex

	tasks map[ThreadID]*Task

	// lastUser and lastKernel are the most recently allocated ids in each
	// range; allocation searches forward from them with wrap-around.
	lastUser   ThreadID
	lastKernel ThreadID
}

func newTaskSet() *TaskSet {
	return &TaskSet{
		tasks:      make(map[ThreadID]*Task),
		lastUser:   0,
		lastKernel: kernelTIDBase - 1,
	}
}

// TaskWithID returns the task with the given thread id, or nil if no such
// task exists.
func (ts *TaskSet) TaskWithID(tid ThreadID) *Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tasks[tid]
}

// Len returns the number of live tasks, zombies included.
func (ts *TaskSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tasks)
}

// ForEach calls f on every live task, in no particular order. f must not
// mutate the set.
func (ts *TaskSet) ForEach(f func(*Task)) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	for _, t := range ts.tasks {
		f(t)
	}
}

// add publishes t in the set. The caller holds the preemption gate, making
// the new task visible to the scheduler atomically with its initial state.
func (ts *TaskSet) add(t *Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.tasks[t.tid]; ok {
		panic("TaskSet: duplicate tid")
	}
	ts.tasks[t.tid] = t
}

// remove unpublishes t, after it has been reaped.
func (ts *TaskSet) remove(t *Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tasks, t.tid)
}

// allocateUserTID returns an unused id in the user range.
func (ts *TaskSet) allocateUserTID() (ThreadID, error) {
	return ts.allocateTID(&ts.lastUser, 1, maxUserTID)
}

// allocateKernelTID returns an unused id in the kernel thread range.
func (ts *TaskSet) allocateKernelTID() (ThreadID, error) {
	return ts.allocateTID(&ts.lastKernel, kernelTIDBase, maxKernelTID)
}

func (ts *TaskSet) allocateTID(last *ThreadID, lo, hi ThreadID) (ThreadID, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	tid := *last
	for i := lo; i <= hi; i++ {
		tid++
		if tid > hi {
			tid = lo
		}
		if _, ok := ts.tasks[tid]; !ok {
			*last = tid
			return tid, nil
		}
	}
	return 0, kernelerr.EAGAIN
}
