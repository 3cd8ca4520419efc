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

// CPU models the single core the kernel runs on: the task that currently
// owns it, the counted preemption gate, and the depth of nested interrupt
// contexts.
type CPU struct {
	k *Kernel

	// current is the task owning the core. Always non-nil after boot.
	current *Task

	// preemptCount > 0 means task switching is disabled. Increments nest.
	preemptCount int32

	// nestedInterrupts is the number of interrupt contexts live on the
	// current kernel stack.
	nestedInterrupts int32
}

// DisablePreemption closes the preemption gate. Calls nest; every call must
// be paired with EnablePreemption or EnablePreemptionNoResched.
func (c *CPU) DisablePreemption() {
	c.preemptCount++
}

// EnablePreemption reopens the preemption gate.
func (c *CPU) EnablePreemption() {
	c.preemptCount--
	if c.preemptCount < 0 {
		panic("CPU: unbalanced EnablePreemption")
	}
}

// EnablePreemptionNoResched reopens the gate without offering the CPU to
// another task. Used on the context switch tail, where the switch itself is
// the reschedule.
func (c *CPU) EnablePreemptionNoResched() {
	c.EnablePreemption()
}

// PreemptionEnabled returns true if task switching is currently allowed.
func (c *CPU) PreemptionEnabled() bool {
	return c.preemptCount == 0
}

func (c *CPU) assertPreemptionDisabled() {
	if c.preemptCount <= 0 {
		panic("CPU: preemption gate not held")
	}
}

func (c *CPU) assertPreemptionEnabled() {
	if c.preemptCount != 0 {
		panic(fmt.Sprintf("CPU: preemption gate held (count %d)", c.preemptCount))
	}
}

// popNestedInterrupts clears the CPU's interrupt nesting once the outgoing
// task has recorded its depth. The incoming task either starts on a fresh
// kernel stack or re-adopts its own depth via adjustNestedInterrupts.
func (c *CPU) popNestedInterrupts() {
	c.nestedInterrupts = 0
}

// adjustNestedInterrupts restores the interrupt nesting recorded when ti was
// last switched away from inside the kernel.
func (c *CPU) adjustNestedInterrupts(ti *Task) {
	c.nestedInterrupts = ti.nestedInterrupts
}
