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

package vex

// WaitStatus is the wait status returned by wait(2)-family syscalls,
// using the standard encoding.
type WaitStatus uint32

// WaitStatusContinued indicates that the task was resumed by SIGCONT.
const WaitStatusContinued = WaitStatus(0xffff)

// WaitStatusExit returns a WaitStatus indicating normal termination with the
// given exit code.
func WaitStatusExit(code int) WaitStatus {
	return WaitStatus(code&0xff) << 8
}

// WaitStatusTerminationSignal returns a WaitStatus indicating termination by
// the given signal.
func WaitStatusTerminationSignal(sig Signal) WaitStatus {
	return WaitStatus(sig & 0x7f)
}

// WaitStatusStopped returns a WaitStatus indicating a job-control stop by the
// given signal.
func WaitStatusStopped(sig Signal) WaitStatus {
	return WaitStatus(sig)<<8 | 0x7f
}

// Exited returns true if s indicates normal termination.
func (s WaitStatus) Exited() bool {
	return s&0xff == 0
}

// Signaled returns true if s indicates termination by a signal.
func (s WaitStatus) Signaled() bool {
	return s&0x7f != 0x7f && s&0x7f != 0
}

// Stopped returns true if s indicates a job-control stop.
func (s WaitStatus) Stopped() bool {
	return s != WaitStatusContinued && s&0xff == 0x7f
}

// Continued returns true if s indicates a job-control continue.
func (s WaitStatus) Continued() bool {
	return s == WaitStatusContinued
}

// TerminationSignal returns the signal that terminated the task.
//
// Preconditions: s.Signaled().
func (s WaitStatus) TerminationSignal() Signal {
	return Signal(s & 0x7f)
}

// StopSignal returns the signal that stopped the task.
//
// Preconditions: s.Stopped().
func (s WaitStatus) StopSignal() Signal {
	return Signal(s >> 8 & 0xff)
}

// ExitCode returns the exit code of a normally-terminated task.
//
// Preconditions: s.Exited().
func (s WaitStatus) ExitCode() int {
	return int(s >> 8 & 0xff)
}
