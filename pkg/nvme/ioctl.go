// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package nvme

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NVME_IOCTL_ADMIN_CMD from linux/nvme_ioctl.h: _IOWR('N', 0x41, struct nvme_admin_cmd).
const nvmeIoctlAdminCmd = 0xC0484E41

// Admin command opcodes.
const (
	opcodeGetLogPage uint8 = 0x02
	opcodeIdentify   uint8 = 0x06
)

// NSIDAll addresses a log page at controller scope.
const NSIDAll uint32 = 0xFFFFFFFF

// Identify CNS values (command dword 10).
const (
	cnsIdentifyNamespace  uint32 = 0x00
	cnsIdentifyController uint32 = 0x01
)

// passthruCmd mirrors struct nvme_admin_cmd from the kernel ioctl ABI.
// Field order and widths must match the 72-byte kernel layout exactly.
type passthruCmd struct {
	Opcode      uint8
	Flags       uint8
	Rsvd1       uint16
	NSID        uint32
	Cdw2        uint32
	Cdw3        uint32
	Metadata    uint64
	Addr        uint64
	MetadataLen uint32
	DataLen     uint32
	Cdw10       uint32
	Cdw11       uint32
	Cdw12       uint32
	Cdw13       uint32
	Cdw14       uint32
	Cdw15       uint32
	TimeoutMS   uint32
	Result      uint32
}

// IdentifyController issues an identify command with CNS 0x01 and returns
// the raw 4096-byte controller structure.
func IdentifyController(fd int, device string, timeoutMS uint32) ([]byte, error) {
	buf := make([]byte, IdentifyBytes)
	cmd := passthruCmd{
		Opcode:    opcodeIdentify,
		Addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
		DataLen:   IdentifyBytes,
		Cdw10:     cnsIdentifyController,
		TimeoutMS: timeoutMS,
	}

	if err := adminCmd(fd, device, &cmd); err != nil {
		return nil, err
	}
	runtime.KeepAlive(buf)
	return buf, nil
}

// IdentifyNamespace issues an identify command with CNS 0x00 for the given
// namespace and returns the raw 4096-byte namespace structure.
func IdentifyNamespace(fd int, device string, nsid, timeoutMS uint32) ([]byte, error) {
	buf := make([]byte, IdentifyBytes)
	cmd := passthruCmd{
		Opcode:    opcodeIdentify,
		NSID:      nsid,
		Addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
		DataLen:   IdentifyBytes,
		Cdw10:     cnsIdentifyNamespace,
		TimeoutMS: timeoutMS,
	}

	if err := adminCmd(fd, device, &cmd); err != nil {
		return nil, err
	}
	runtime.KeepAlive(buf)
	return buf, nil
}

// GetLogPage issues a get-log-page admin command and returns the raw
// payload buffer. The buffer is not interpreted here; decoding belongs to
// the log page decoders.
func GetLogPage(fd int, device string, nsid uint32, lid uint8, dataLen int, timeoutMS uint32) ([]byte, error) {
	if dataLen <= 0 || dataLen%4 != 0 {
		return nil, NewError(ErrCodeInvalidData,
			fmt.Sprintf("log page length %d must be non-zero and divisible by 4", dataLen))
	}
	if int64(dataLen) > math.MaxUint32 {
		return nil, NewError(ErrCodeInvalidData, "log page length is too large")
	}

	// NUMD is the dword count minus one, split across cdw10 bits 31:16.
	numd := uint32(dataLen/4 - 1)

	buf := make([]byte, dataLen)
	cmd := passthruCmd{
		Opcode:    opcodeGetLogPage,
		NSID:      nsid,
		Addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
		DataLen:   uint32(dataLen),
		Cdw10:     numd<<16 | uint32(lid),
		TimeoutMS: timeoutMS,
	}

	if err := adminCmd(fd, device, &cmd); err != nil {
		return nil, err
	}
	runtime.KeepAlive(buf)
	return buf, nil
}

// GetControllerLogPage fetches a log page at controller scope (all namespaces).
func GetControllerLogPage(fd int, device string, lid uint8, dataLen int, timeoutMS uint32) ([]byte, error) {
	return GetLogPage(fd, device, NSIDAll, lid, dataLen, timeoutMS)
}

// adminCmd submits one admin command and classifies the outcome. The ioctl
// blocks at the OS level with no cancellation; callers enforce timeouts by
// isolating the submission in its own goroutine.
func adminCmd(fd int, device string, cmd *passthruCmd) error {
	ret, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(cmd)))
	runtime.KeepAlive(cmd)

	if errno != 0 {
		return classifyErrno(device, errno)
	}

	// A positive return value is the NVMe completion status field.
	if ret != 0 {
		return WrapErrorWithContext(ErrCodeProtocolStatus,
			fmt.Sprintf("admin command failed on %s", device), nil,
			map[string]any{"status": uint32(ret), "opcode": cmd.Opcode})
	}

	return nil
}

func classifyErrno(device string, errno unix.Errno) error {
	switch errno {
	case unix.EACCES, unix.EPERM:
		return WrapError(ErrCodePermissionDenied,
			fmt.Sprintf("permission denied on %s (need CAP_SYS_RAWIO or root)", device), errno)
	case unix.ENODEV, unix.ENXIO, unix.ENOENT:
		return WrapError(ErrCodeDeviceGone,
			fmt.Sprintf("device %s is gone", device), errno)
	case unix.ETIMEDOUT:
		return WrapError(ErrCodeTimeout,
			fmt.Sprintf("admin command timed out on %s", device), errno)
	default:
		return WrapError(ErrCodeInternal,
			fmt.Sprintf("ioctl failed on %s", device), errno)
	}
}
