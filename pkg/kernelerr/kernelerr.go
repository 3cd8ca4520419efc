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

// Package kernelerr holds the singleton error values returned by the
// kernel's recoverable failure paths. Invariant violations are not
// represented here; those panic.
//
// Every errno the kernel can surface has exactly one *Error value, so
// callers compare errors by identity (err == kernelerr.EINVAL). Equals
// exists for code paths that may hold a wrapped or foreign error.
package kernelerr

import (
	"vexos.dev/vexos/pkg/abi/vex/errno"
)

// Error is an error carrying the errno surfaced to user code.
type Error struct {
	no  errno.Errno
	msg string
}

// Error implements error.Error.
func (e *Error) Error() string { return e.msg }

// Errno returns the errno written to the syscall return register.
func (e *Error) Errno() errno.Errno { return e.no }

// All values are allocated here once; no constructor is exported.
func newError(no errno.Errno, msg string) *Error {
	return &Error{no: no, msg: msg}
}

var (
	// EPERM is returned when the caller lacks permission for the operation.
	EPERM = newError(errno.EPERM, "operation not permitted")

	// ESRCH is returned when no task matches the given thread/process id.
	ESRCH = newError(errno.ESRCH, "no such process")

	// EINTR is returned when a blocked operation is interrupted by a signal.
	EINTR = newError(errno.EINTR, "interrupted system call")

	// EAGAIN is returned when a resource (such as the thread id space) is
	// temporarily exhausted.
	EAGAIN = newError(errno.EAGAIN, "try again")

	// ENOMEM is returned when task or buffer allocation fails.
	ENOMEM = newError(errno.ENOMEM, "out of memory")

	// EFAULT is returned when a user memory access faults.
	EFAULT = newError(errno.EFAULT, "bad address")

	// EINVAL is returned for invalid arguments and unsupported flag
	// combinations.
	EINVAL = newError(errno.EINVAL, "invalid argument")

	// ENOSYS is returned by deprecated or unimplemented syscall entry
	// points.
	ENOSYS = newError(errno.ENOSYS, "function not implemented")
)

// Equals compares a kernelerr to any error value by errno.
func Equals(e *Error, err error) bool {
	if err == nil {
		return false
	}
	other, ok := err.(*Error)
	return ok && other.no == e.no
}
