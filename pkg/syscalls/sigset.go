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

package syscalls

import (
	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/kernelerr"
	"vexos.dev/vexos/pkg/usermem"
)

// copyOutSigSet writes mask to a user sigset buffer of sigsetsize bytes.
// A buffer wider than the kernel's mask is zero-padded.
func copyOutSigSet(mem usermem.IO, addr usermem.Addr, mask vex.SignalSet, sigsetsize uint) error {
	n := int(sigsetsize)
	if n > vex.SignalSetSize {
		n = vex.SignalSetSize
	}
	var buf [vex.SignalSetSize]byte
	usermem.ByteOrder.PutUint64(buf[:], uint64(mask))
	if err := mem.CopyOut(addr, buf[:n]); err != nil {
		return kernelerr.EFAULT
	}
	if pad := int64(sigsetsize) - int64(n); pad > 0 {
		if err := mem.ZeroOut(addr+usermem.Addr(n), pad); err != nil {
			return kernelerr.EFAULT
		}
	}
	return nil
}

// copyInSigAction reads a struct sigaction from user memory.
func copyInSigAction(mem usermem.IO, addr usermem.Addr) (vex.SigAction, error) {
	var buf [vex.SigActionSize]byte
	if err := mem.CopyIn(addr, buf[:]); err != nil {
		return vex.SigAction{}, kernelerr.EFAULT
	}
	bo := usermem.ByteOrder
	return vex.SigAction{
		Handler: bo.Uint64(buf[0:]),
		Flags:   bo.Uint64(buf[8:]),
		Mask:    vex.SignalSet(bo.Uint64(buf[16:])),
	}, nil
}

// copyOutSigAction writes a struct sigaction to user memory.
func copyOutSigAction(mem usermem.IO, addr usermem.Addr, sa vex.SigAction) error {
	var buf [vex.SigActionSize]byte
	bo := usermem.ByteOrder
	bo.PutUint64(buf[0:], sa.Handler)
	bo.PutUint64(buf[8:], sa.Flags)
	bo.PutUint64(buf[16:], uint64(sa.Mask))
	if err := mem.CopyOut(addr, buf[:]); err != nil {
		return kernelerr.EFAULT
	}
	return nil
}
