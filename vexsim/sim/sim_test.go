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

package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const stopContinueScenario = `
[[task]]
kind = "user"

[[event]]
op = "send"
pid = 1
signal = 19          # SIGSTOP
whole_process = true

[[event]]
op = "send"
pid = 1
signal = 18          # SIGCONT
whole_process = true
`

func TestLoadAndRunScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := os.WriteFile(path, []byte(stopContinueScenario), 0o644); err != nil {
		t.Fatalf("writing scenario: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tasks) != 1 || len(cfg.Events) != 2 {
		t.Fatalf("decoded %d tasks, %d events; want 1, 2", len(cfg.Tasks), len(cfg.Events))
	}

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The boot task plus the scripted user task.
	if len(res.Tasks) != 2 {
		t.Fatalf("%d tasks in result, want 2", len(res.Tasks))
	}
	user := res.Tasks[0]
	if user.TID != 1 {
		t.Fatalf("first row tid = %d, want 1", user.TID)
	}
	want := TaskStatus{
		TID:        1,
		State:      "RUNNABLE",
		Stopped:    false,
		WaitStatus: 0xffff, // continued
	}
	if diff := cmp.Diff(want, user); diff != "" {
		t.Errorf("user task status mismatch (-want +got):\n%s", diff)
	}
	// SIGSTOP and SIGCONT both count as actual deliveries.
	if len(res.Delivered) != 2 {
		t.Errorf("%d deliveries recorded, want 2", len(res.Delivered))
	}
}

func TestRunRejectsUnknownOps(t *testing.T) {
	if _, err := Run(&Config{Events: []EventConfig{{Op: "frobnicate"}}}); err == nil {
		t.Error("unknown op accepted")
	}
	if _, err := Run(&Config{Tasks: []TaskConfig{{Kind: "plan9"}}}); err == nil {
		t.Error("unknown task kind accepted")
	}
}

func TestKthreadScenario(t *testing.T) {
	cfg := &Config{
		Tasks:  []TaskConfig{{Kind: "kthread", Name: "worker"}},
		Events: []EventConfig{{Op: "run-kthread"}},
	}
	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var found bool
	for _, ts := range res.Tasks {
		if ts.Name == "worker" {
			found = true
			if ts.State != "ZOMBIE" {
				t.Errorf("worker state = %s, want ZOMBIE", ts.State)
			}
		}
	}
	if !found {
		t.Error("worker thread missing from result")
	}
}
