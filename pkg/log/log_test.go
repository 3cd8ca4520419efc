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

package log

import (
	"fmt"
	"testing"
	"time"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debugf(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *captureLogger) Infof(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *captureLogger) Warningf(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *captureLogger) IsLogging(level Level) bool {
	return true
}

func TestSetTarget(t *testing.T) {
	old := Log()
	defer SetTarget(old)

	c := &captureLogger{}
	SetTarget(c)

	Warningf("signal %d ignored", 9)
	Infof("boot complete")

	want := []string{"signal 9 ignored", "boot complete"}
	if len(c.lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(c.lines), len(want), c.lines)
	}
	for i, line := range want {
		if c.lines[i] != line {
			t.Errorf("line %d: got %q, want %q", i, c.lines[i], line)
		}
	}
}

func TestRateLimitedLogger(t *testing.T) {
	c := &captureLogger{}
	rl := RateLimitedLogger(c, time.Hour)

	for i := 0; i < 10; i++ {
		rl.Warningf("flood %d", i)
	}

	if len(c.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(c.lines), c.lines)
	}
	if c.lines[0] != "flood 0" {
		t.Errorf("got %q, want %q", c.lines[0], "flood 0")
	}
	if !rl.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false, want true")
	}
}
