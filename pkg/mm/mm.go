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

// Package mm exposes the page-directory handle consumed by the context
// switch engine. The paging internals live behind the platform; this core
// only compares and installs handles.
package mm

import (
	"vexos.dev/vexos/pkg/usermem"
)

// PageDirectory is an opaque handle to a process's top-level page table.
// Two tasks share an address space iff they reference the same
// PageDirectory.
type PageDirectory struct {
	// Root is the physical address of the top-level table. Immutable.
	Root usermem.Addr
}

// NewPageDirectory returns a distinct page directory handle.
func NewPageDirectory(root usermem.Addr) *PageDirectory {
	return &PageDirectory{Root: root}
}
