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

import "testing"

func TestWaitStatusEncoding(t *testing.T) {
	exit := WaitStatusExit(3)
	if !exit.Exited() || exit.ExitCode() != 3 {
		t.Errorf("WaitStatusExit(3) = %#x: Exited %t, code %d", uint32(exit), exit.Exited(), exit.ExitCode())
	}
	if exit.Signaled() || exit.Stopped() || exit.Continued() {
		t.Errorf("WaitStatusExit(3) = %#x claims another outcome", uint32(exit))
	}

	sig := WaitStatusTerminationSignal(SIGTERM)
	if !sig.Signaled() || sig.TerminationSignal() != SIGTERM {
		t.Errorf("termination status = %#x: Signaled %t, sig %v", uint32(sig), sig.Signaled(), sig.TerminationSignal())
	}

	stop := WaitStatusStopped(SIGTSTP)
	if !stop.Stopped() || stop.StopSignal() != SIGTSTP {
		t.Errorf("stop status = %#x: Stopped %t, sig %v", uint32(stop), stop.Stopped(), stop.StopSignal())
	}
	if stop.Exited() || stop.Continued() {
		t.Errorf("stop status = %#x claims another outcome", uint32(stop))
	}

	if !WaitStatusContinued.Continued() || WaitStatusContinued.Stopped() {
		t.Error("WaitStatusContinued misclassified")
	}
}
