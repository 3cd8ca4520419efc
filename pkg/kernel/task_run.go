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

// RunState is the continuation returned by control-transfer operations. On
// real hardware several of these operations never return to their caller;
// here the divergence is reified as a value the caller must immediately
// propagate up to its run loop without touching task state on the way.
type RunState int

const (
	// RunContinue means control stays with the calling task; the caller
	// proceeds normally.
	RunContinue RunState = iota

	// RunSwitch means the CPU was handed to another task. The calling
	// context is dead until the task is switched back to.
	RunSwitch

	// RunTerminated means the calling task's process was torn down. The
	// calling context never resumes.
	RunTerminated
)

// String implements fmt.Stringer.
func (s RunState) String() string {
	switch s {
	case RunContinue:
		return "continue"
	case RunSwitch:
		return "switch"
	case RunTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}
