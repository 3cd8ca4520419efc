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

// Package sim runs scripted task and signal scenarios against the kernel
// core on the recording platform. Scenarios are TOML files listing tasks to
// create and events to apply; the result is the final task table.
package sim

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/kernel"
	"vexos.dev/vexos/pkg/mm"
	"vexos.dev/vexos/pkg/platform/ptest"
	"vexos.dev/vexos/pkg/usermem"
)

// Config is a scenario file.
type Config struct {
	// Tasks are created in order before any event runs.
	Tasks []TaskConfig `toml:"task"`

	// Events are applied in order.
	Events []EventConfig `toml:"event"`
}

// TaskConfig describes one task to create.
type TaskConfig struct {
	// Kind is "user" or "kthread".
	Kind string `toml:"kind"`

	// Name is the kernel thread name; ignored for user tasks.
	Name string `toml:"name"`

	// Entry and Stack are the initial program counter and user stack for
	// user tasks. Both default to scenario-provided scratch addresses.
	Entry uint64 `toml:"entry"`
	Stack uint64 `toml:"stack"`
}

// EventConfig describes one scripted event.
type EventConfig struct {
	// Op is "send", "schedule" or "run-kthread".
	Op string `toml:"op"`

	// PID and TID name the signal target for "send".
	PID int32 `toml:"pid"`
	TID int32 `toml:"tid"`

	// Signal is the signal number for "send".
	Signal int `toml:"signal"`

	// WholeProcess directs the signal at the process rather than the
	// thread.
	WholeProcess bool `toml:"whole_process"`
}

// TaskStatus is one row of the final task table.
type TaskStatus struct {
	TID        int32
	Name       string
	State      string
	Stopped    bool
	Pending    uint64
	WaitStatus uint32
}

// Result is the outcome of a scenario.
type Result struct {
	Tasks []TaskStatus

	// Delivered records every actual signal delivery, in order.
	Delivered []string
}

const (
	defaultEntry   = 0x4000
	defaultStack   = 0x8000
	defaultMemSize = 0x10000
)

// Load reads a scenario file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decoding scenario %q: %w", path, err)
	}
	return &cfg, nil
}

// Run executes cfg on a fresh kernel and returns the final task table.
func Run(cfg *Config) (*Result, error) {
	res := &Result{}
	k := kernel.New(kernel.Args{
		Platform: &ptest.Platform{},
		SignalDelivered: func(tid kernel.ThreadID, sig vex.Signal) {
			res.Delivered = append(res.Delivered, fmt.Sprintf("tid %d <- %v", tid, sig))
		},
	})

	mem := usermem.NewBytesIO(make([]byte, defaultMemSize))
	for i, tc := range cfg.Tasks {
		switch tc.Kind {
		case "user":
			entry, stack := tc.Entry, tc.Stack
			if entry == 0 {
				entry = defaultEntry
			}
			if stack == 0 {
				stack = defaultStack
			}
			if _, err := k.NewUserProcess(entry, usermem.Addr(stack), mm.NewPageDirectory(usermem.Addr(0x1000*(i+1))), mem); err != nil {
				return nil, fmt.Errorf("task %d: creating user process: %w", i, err)
			}
		case "kthread":
			name := tc.Name
			if name == "" {
				name = fmt.Sprintf("kthread%d", i)
			}
			if _, err := k.NewKernelThread(func(*kernel.Kernel, any) {}, name, 0, nil); err != nil {
				return nil, fmt.Errorf("task %d: creating kernel thread: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("task %d: unknown kind %q", i, tc.Kind)
		}
	}

	for i, ev := range cfg.Events {
		if err := apply(k, ev); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Op, err)
		}
	}

	k.TaskSet().ForEach(func(t *kernel.Task) {
		res.Tasks = append(res.Tasks, TaskStatus{
			TID:        int32(t.ThreadID()),
			Name:       t.Name(),
			State:      t.State().String(),
			Stopped:    t.Stopped(),
			Pending:    uint64(t.PendingSignals()),
			WaitStatus: uint32(t.WaitStatus()),
		})
	})
	sort.Slice(res.Tasks, func(i, j int) bool { return res.Tasks[i].TID < res.Tasks[j].TID })
	return res, nil
}

func apply(k *kernel.Kernel, ev EventConfig) error {
	switch ev.Op {
	case "send":
		tid := kernel.ThreadID(ev.TID)
		pid := kernel.ThreadID(ev.PID)
		if tid == 0 {
			tid = pid
		}
		if pid == 0 {
			pid = tid
		}
		_, err := k.SendSignal(pid, tid, vex.Signal(ev.Signal), ev.WholeProcess)
		return err
	case "schedule":
		k.Schedule()
		return nil
	case "run-kthread":
		k.Schedule()
		if k.CurrentTask().IsKernelThread() {
			k.RunKthread()
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
}
