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

// Package syscalls implements the signal-related syscall surface on top of
// the kernel core.
package syscalls

import (
	"vexos.dev/vexos/pkg/arch"
	"vexos.dev/vexos/pkg/kernel"
)

// Handler implements one syscall. The returned RunState is RunContinue
// unless the syscall handed the CPU away or tore the calling process down,
// in which case the trap return path must propagate it instead of resuming
// the caller.
type Handler func(t *kernel.Task, args arch.SyscallArguments) (uintptr, kernel.RunState, error)
