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
	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/mm"
	"vexos.dev/vexos/pkg/usermem"
)

// Process groups the threads sharing one user image. The leader thread's id
// is the process id.
//
// Signal dispositions and the blocking mask are per-process, shared by all
// of its threads. TODO: move the blocking mask to Task once thread-directed
// delivery targets individual threads.
type Process struct {
	pid ThreadID

	// kernel is true for the singleton process owning kernel-only threads.
	kernel bool

	// pdir is the process's page directory. Nil for the kernel process.
	pdir *mm.PageDirectory

	// mem accesses the process's user address space. Nil for the kernel
	// process.
	mem usermem.IO

	// sigHandlers maps each signal (by Index) to its disposition: SIG_DFL,
	// SIG_IGN, or a user handler address.
	sigHandlers [vex.SignalMaximum]uint64

	// sigMask is the set of blocked signals.
	sigMask vex.SignalSet
}

// PID returns the process id.
func (p *Process) PID() ThreadID {
	return p.pid
}

// IsKernelProcess returns true for the process owning kernel-only threads.
func (p *Process) IsKernelProcess() bool {
	return p.kernel
}

// PageDirectory returns the process's page directory, nil for the kernel
// process.
func (p *Process) PageDirectory() *mm.PageDirectory {
	return p.pdir
}

// Memory returns the accessor for the process's user address space.
func (p *Process) Memory() usermem.IO {
	return p.mem
}

// SignalHandler returns the disposition installed for sig.
func (p *Process) SignalHandler(sig vex.Signal) uint64 {
	return p.sigHandlers[sig.Index()]
}

// SetSignalHandler installs a disposition for sig. The caller holds the
// preemption gate.
func (p *Process) SetSignalHandler(sig vex.Signal, handler uint64) {
	p.sigHandlers[sig.Index()] = handler
}

// SignalMask returns the set of blocked signals.
func (p *Process) SignalMask() vex.SignalSet {
	return p.sigMask
}

// SetSignalMask replaces the set of blocked signals. The caller holds the
// preemption gate.
func (p *Process) SetSignalMask(mask vex.SignalSet) {
	p.sigMask = mask
}
