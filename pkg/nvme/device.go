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
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Device is an open NVMe controller character device. It issues admin
// commands and decodes their payloads; it holds no scrape state.
type Device struct {
	path string
	file *os.File
}

// Open opens the controller character device read-only, the minimal access
// the admin passthru ioctl requires.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}
	return &Device{path: path, file: file}, nil
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return WrapError(ErrCodeDeviceGone, fmt.Sprintf("device %s is gone", path), err)
	case errors.Is(err, os.ErrPermission):
		return WrapError(ErrCodePermissionDenied,
			fmt.Sprintf("cannot open %s (need CAP_SYS_RAWIO or root)", path), err)
	default:
		return WrapError(ErrCodeInternal, fmt.Sprintf("cannot open %s", path), err)
	}
}

// Close releases the device handle.
func (d *Device) Close() error {
	return d.file.Close()
}

// Path returns the character device path.
func (d *Device) Path() string {
	return d.path
}

func (d *Device) fd() int {
	return int(d.file.Fd())
}

// IdentifyController fetches and decodes the identify controller structure.
func (d *Device) IdentifyController(timeoutMS uint32) (*ControllerInfo, error) {
	buf, err := IdentifyController(d.fd(), d.path, timeoutMS)
	if err != nil {
		return nil, err
	}
	return DecodeControllerInfo(buf)
}

// IdentifyNamespace fetches and decodes the identify namespace structure.
func (d *Device) IdentifyNamespace(nsid, timeoutMS uint32) (*NamespaceInfo, error) {
	buf, err := IdentifyNamespace(d.fd(), d.path, nsid, timeoutMS)
	if err != nil {
		return nil, err
	}
	return DecodeNamespaceInfo(buf)
}

// SmartHealthLog fetches and decodes the SMART / health log page.
func (d *Device) SmartHealthLog(timeoutMS uint32) (*SmartHealthLog, error) {
	buf, err := GetControllerLogPage(d.fd(), d.path, LogPageSmartHealth, SmartLogBytes, timeoutMS)
	if err != nil {
		return nil, err
	}
	return DecodeSmartHealthLog(buf)
}

// ErrorLog fetches and decodes the error information log page.
func (d *Device) ErrorLog(timeoutMS uint32) ([]ErrorLogEntry, error) {
	buf, err := GetControllerLogPage(d.fd(), d.path, LogPageErrorInformation, ErrorLogBytes, timeoutMS)
	if err != nil {
		return nil, err
	}
	return DecodeErrorLog(buf)
}

// SelfTestLog fetches and decodes the device self-test log page.
func (d *Device) SelfTestLog(timeoutMS uint32) (*SelfTestLog, error) {
	buf, err := GetControllerLogPage(d.fd(), d.path, LogPageSelfTest, SelfTestLogBytes, timeoutMS)
	if err != nil {
		return nil, err
	}
	return DecodeSelfTestLog(buf)
}
