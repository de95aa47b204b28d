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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPassthruCmdMatchesKernelLayout(t *testing.T) {
	// struct nvme_admin_cmd is 72 bytes; the ioctl number encodes that size
	// so a layout drift would corrupt the submission.
	assert.Equal(t, uintptr(72), unsafe.Sizeof(passthruCmd{}))
}

func TestGetLogPageRejectsBadLength(t *testing.T) {
	for _, dataLen := range []int{0, -4, 7, 513} {
		_, err := GetLogPage(-1, "nvme0", NSIDAll, LogPageSmartHealth, dataLen, 1000)
		require.Error(t, err, "dataLen %d", dataLen)
		assert.Equal(t, ErrCodeInvalidData, CodeOf(err))
	}
}

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		errno unix.Errno
		want  ErrorCode
	}{
		{unix.EACCES, ErrCodePermissionDenied},
		{unix.EPERM, ErrCodePermissionDenied},
		{unix.ENODEV, ErrCodeDeviceGone},
		{unix.ENXIO, ErrCodeDeviceGone},
		{unix.ENOENT, ErrCodeDeviceGone},
		{unix.ETIMEDOUT, ErrCodeTimeout},
		{unix.EIO, ErrCodeInternal},
	}
	for _, tc := range tests {
		err := classifyErrno("nvme0", tc.errno)
		assert.Equal(t, tc.want, CodeOf(err), tc.errno.Error())
		assert.ErrorIs(t, err, tc.errno)
	}
}
