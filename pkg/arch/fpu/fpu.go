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

// Package fpu provides basic floating point helpers.
package fpu

// StateSize is the size in bytes of the saved floating-point register file:
// 32 doubles plus the fcsr word, rounded to alignment.
const StateSize = 32*8 + 8

// State represents floating point state.
//
// This is a simple byte slice, but may have architecture-specific methods
// attached to it. A nil State means the task has never used the FPU and has
// no buffer allocated.
type State []byte

// NewState returns an initialized floating point state.
func NewState() State {
	return make(State, StateSize)
}

// Reset zeroes the state in place, reusing the buffer. This is what a
// fork/exec boundary does instead of reallocating.
func (s State) Reset() {
	for i := range s {
		s[i] = 0
	}
}
