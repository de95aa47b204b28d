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
)

// ErrorCode classifies NVMe operation failures.
type ErrorCode string

const (
	// ErrCodePermissionDenied indicates the admin ioctl was refused;
	// the process lacks CAP_SYS_RAWIO or root.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrCodeDeviceGone indicates the device node disappeared mid-operation.
	ErrCodeDeviceGone ErrorCode = "DEVICE_GONE"
	// ErrCodeProtocolStatus indicates the controller completed the command
	// with a non-zero NVMe status code.
	ErrCodeProtocolStatus ErrorCode = "PROTOCOL_STATUS"
	// ErrCodeTimeout indicates the admin command did not complete within the
	// bounded wait.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeTruncated indicates a log page buffer was shorter than its
	// declared layout.
	ErrCodeTruncated ErrorCode = "TRUNCATED"
	// ErrCodeInvalidData indicates a structurally invalid buffer or request.
	ErrCodeInvalidData ErrorCode = "INVALID_DATA"
	// ErrCodeDiscovery indicates controller enumeration failed.
	ErrCodeDiscovery ErrorCode = "DISCOVERY"
	// ErrCodeNoDevices indicates no readable NVMe controllers were found.
	ErrCodeNoDevices ErrorCode = "NO_DEVICES"
	// ErrCodeInternal indicates an internal exporter error.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error provides structured error information for NVMe operations.
// It carries a classification code for programmatic handling, a
// human-readable message, the underlying cause, and optional context.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a classification code.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapErrorWithContext wraps an error with additional context information.
func WrapErrorWithContext(code ErrorCode, message string, cause error, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err is not
// a classified NVMe error.
func CodeOf(err error) ErrorCode {
	var nvmeErr *Error
	if errors.As(err, &nvmeErr) {
		return nvmeErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given classification code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
