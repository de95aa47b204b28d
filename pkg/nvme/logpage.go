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
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Log page identifiers and buffer sizes per the NVMe base specification.
const (
	LogPageErrorInformation uint8 = 0x01
	LogPageSmartHealth      uint8 = 0x02
	LogPageSelfTest         uint8 = 0x06

	SmartLogBytes     = 512
	IdentifyBytes     = 4096
	SelfTestLogBytes  = 564
	ErrorLogEntrySize = 64
	ErrorLogEntries   = 16
	ErrorLogBytes     = ErrorLogEntrySize * ErrorLogEntries
)

// Critical warning bit positions in SMART log byte 0.
const (
	criticalWarningSpareBit          = 1 << 0
	criticalWarningTemperatureBit    = 1 << 1
	criticalWarningReliabilityBit    = 1 << 2
	criticalWarningReadOnlyBit       = 1 << 3
	criticalWarningVolatileBackupBit = 1 << 4
)

// Counter128 represents a 128-bit little-endian counter as a saturating
// 64-bit value. No practical drive reaches the upper word, but a wrapped
// value must never be reported silently, so overflow is explicit.
type Counter128 struct {
	Value    uint64
	Overflow bool
}

// Float64 converts the counter for metric emission. Overflowed counters pin
// to the maximum representable value rather than wrapping.
func (c Counter128) Float64() float64 {
	return float64(c.Value)
}

func decodeCounter128(buf []byte, offset int) Counter128 {
	low := binary.LittleEndian.Uint64(buf[offset:])
	high := binary.LittleEndian.Uint64(buf[offset+8:])
	if high != 0 {
		return Counter128{Value: math.MaxUint64, Overflow: true}
	}
	return Counter128{Value: low}
}

// SmartHealthLog is the decoded SMART / health information log page (0x02).
// Instances are immutable once decoded; a fresh one is produced per scrape.
type SmartHealthLog struct {
	CriticalWarning uint8

	// Decomposed critical warning flags. Reserved bits are ignored.
	SpareLow             bool
	TemperatureThreshold bool
	ReliabilityDegraded  bool
	ReadOnly             bool
	VolatileBackupFailed bool

	TemperatureKelvin uint16
	AvailableSpare    uint8
	SpareThreshold    uint8
	PercentageUsed    uint8

	DataUnitsRead      Counter128
	DataUnitsWritten   Counter128
	HostReadCommands   Counter128
	HostWriteCommands  Counter128
	ControllerBusyTime Counter128
	PowerCycles        Counter128
	PowerOnHours       Counter128
	UnsafeShutdowns    Counter128
	MediaErrors        Counter128
	ErrorLogEntryCount Counter128

	WarningTempMinutes  uint32
	CriticalTempMinutes uint32

	TemperatureSensorsKelvin [8]uint16

	ThermalMgmtT1Transitions uint32
	ThermalMgmtT2Transitions uint32
	ThermalMgmtT1Seconds     uint32
	ThermalMgmtT2Seconds     uint32
}

// DecodeSmartHealthLog decodes a 512-byte SMART / health log page buffer.
func DecodeSmartHealthLog(buf []byte) (*SmartHealthLog, error) {
	if err := checkLength("smart/health log", buf, SmartLogBytes); err != nil {
		return nil, err
	}

	log := &SmartHealthLog{
		CriticalWarning:          buf[0],
		SpareLow:                 buf[0]&criticalWarningSpareBit != 0,
		TemperatureThreshold:     buf[0]&criticalWarningTemperatureBit != 0,
		ReliabilityDegraded:      buf[0]&criticalWarningReliabilityBit != 0,
		ReadOnly:                 buf[0]&criticalWarningReadOnlyBit != 0,
		VolatileBackupFailed:     buf[0]&criticalWarningVolatileBackupBit != 0,
		TemperatureKelvin:        binary.LittleEndian.Uint16(buf[1:]),
		AvailableSpare:           buf[3],
		SpareThreshold:           buf[4],
		PercentageUsed:           buf[5],
		DataUnitsRead:            decodeCounter128(buf, 32),
		DataUnitsWritten:         decodeCounter128(buf, 48),
		HostReadCommands:         decodeCounter128(buf, 64),
		HostWriteCommands:        decodeCounter128(buf, 80),
		ControllerBusyTime:       decodeCounter128(buf, 96),
		PowerCycles:              decodeCounter128(buf, 112),
		PowerOnHours:             decodeCounter128(buf, 128),
		UnsafeShutdowns:          decodeCounter128(buf, 144),
		MediaErrors:              decodeCounter128(buf, 160),
		ErrorLogEntryCount:       decodeCounter128(buf, 176),
		WarningTempMinutes:       binary.LittleEndian.Uint32(buf[192:]),
		CriticalTempMinutes:      binary.LittleEndian.Uint32(buf[196:]),
		ThermalMgmtT1Transitions: binary.LittleEndian.Uint32(buf[216:]),
		ThermalMgmtT2Transitions: binary.LittleEndian.Uint32(buf[220:]),
		ThermalMgmtT1Seconds:     binary.LittleEndian.Uint32(buf[224:]),
		ThermalMgmtT2Seconds:     binary.LittleEndian.Uint32(buf[228:]),
	}

	for i := range log.TemperatureSensorsKelvin {
		log.TemperatureSensorsKelvin[i] = binary.LittleEndian.Uint16(buf[200+i*2:])
	}

	return log, nil
}

// TemperatureCelsius converts the composite temperature. A zero reading
// means the sensor is not implemented.
func (l *SmartHealthLog) TemperatureCelsius() (float64, bool) {
	return kelvinToCelsius(l.TemperatureKelvin)
}

// SensorCelsius converts temperature sensor i (0-based). A zero reading
// means the sensor is not implemented.
func (l *SmartHealthLog) SensorCelsius(i int) (float64, bool) {
	if i < 0 || i >= len(l.TemperatureSensorsKelvin) {
		return 0, false
	}
	return kelvinToCelsius(l.TemperatureSensorsKelvin[i])
}

// Healthy derives a single boolean health indicator: no critical warnings,
// spare capacity at or above threshold, and no media errors.
func (l *SmartHealthLog) Healthy() bool {
	return l.CriticalWarning == 0 &&
		l.AvailableSpare >= l.SpareThreshold &&
		l.MediaErrors.Value == 0 && !l.MediaErrors.Overflow
}

func kelvinToCelsius(value uint16) (float64, bool) {
	if value == 0 {
		return 0, false
	}
	return float64(value) - 273.15, true
}

// ErrorLogEntry is one decoded 64-byte entry from the error information
// log page (0x01). Entries with ErrorCount zero are unused slots.
type ErrorLogEntry struct {
	ErrorCount        uint64
	SubmissionQueueID uint16
	CommandID         uint16
	StatusField       uint16
	ParamErrorLoc     uint16
	LBA               uint64
	NamespaceID       uint32
	VendorSpecific    uint8
}

// DecodeErrorLog decodes a buffer of repeating 64-byte error log entries.
// The entry count is derived from the buffer length.
func DecodeErrorLog(buf []byte) ([]ErrorLogEntry, error) {
	if len(buf) == 0 || len(buf)%ErrorLogEntrySize != 0 {
		return nil, NewError(ErrCodeInvalidData,
			fmt.Sprintf("error log buffer size %d is not a positive multiple of %d", len(buf), ErrorLogEntrySize))
	}

	entries := make([]ErrorLogEntry, 0, len(buf)/ErrorLogEntrySize)
	for offset := 0; offset < len(buf); offset += ErrorLogEntrySize {
		e := buf[offset : offset+ErrorLogEntrySize]
		entries = append(entries, ErrorLogEntry{
			ErrorCount:        binary.LittleEndian.Uint64(e[0:]),
			SubmissionQueueID: binary.LittleEndian.Uint16(e[8:]),
			CommandID:         binary.LittleEndian.Uint16(e[10:]),
			StatusField:       binary.LittleEndian.Uint16(e[12:]),
			ParamErrorLoc:     binary.LittleEndian.Uint16(e[14:]),
			LBA:               binary.LittleEndian.Uint64(e[16:]),
			NamespaceID:       binary.LittleEndian.Uint32(e[24:]),
			VendorSpecific:    e[28],
		})
	}

	return entries, nil
}

// ErrorLogSummary condenses decoded error log entries into the two values
// exposed as metrics.
type ErrorLogSummary struct {
	NonZeroEntries uint64
	MaxErrorCount  uint64
}

// SummarizeErrorLog computes the summary over decoded entries.
func SummarizeErrorLog(entries []ErrorLogEntry) ErrorLogSummary {
	var summary ErrorLogSummary
	for _, e := range entries {
		if e.ErrorCount > 0 {
			summary.NonZeroEntries++
		}
		if e.ErrorCount > summary.MaxErrorCount {
			summary.MaxErrorCount = e.ErrorCount
		}
	}
	return summary
}

// SelfTestResult is one decoded 28-byte result slot from the device
// self-test log page (0x06).
type SelfTestResult struct {
	// Result is the self-test result code (bits 3:0 of the status byte);
	// 0xF means the slot holds no result.
	Result uint8
	// Operation is the self-test type that produced the result (bits 7:4).
	Operation     uint8
	SegmentNumber uint8
	PowerOnHours  uint64
	NamespaceID   uint32
	FailingLBA    uint64
	Valid         bool
}

// SelfTestLog is the decoded device self-test log page (0x06): the
// in-progress operation header plus the most recent result slot.
type SelfTestLog struct {
	CurrentOperation       uint8
	CurrentCompletionRatio float64
	MostRecent             SelfTestResult
}

const selfTestNoResult = 0x0F

// DecodeSelfTestLog decodes a 564-byte self-test log page buffer.
func DecodeSelfTestLog(buf []byte) (*SelfTestLog, error) {
	if err := checkLength("self-test log", buf, SelfTestLogBytes); err != nil {
		return nil, err
	}

	log := &SelfTestLog{
		CurrentOperation:       buf[0] & 0x0F,
		CurrentCompletionRatio: float64(buf[1]&0x7F) / 100.0,
	}

	// Newest result occupies the first slot at offset 4.
	slot := buf[4:32]
	result := slot[0] & 0x0F
	log.MostRecent = SelfTestResult{
		Result:        result,
		Operation:     slot[0] >> 4,
		SegmentNumber: slot[1],
		PowerOnHours:  binary.LittleEndian.Uint64(slot[4:]),
		NamespaceID:   binary.LittleEndian.Uint32(slot[12:]),
		FailingLBA:    binary.LittleEndian.Uint64(slot[16:]),
		Valid:         result != selfTestNoResult,
	}

	return log, nil
}

// ControllerInfo is the decoded identify controller structure (CNS 0x01),
// limited to the identity fields the exporter labels metrics with.
type ControllerInfo struct {
	Serial   string
	Model    string
	Firmware string
}

// DecodeControllerInfo decodes a 4096-byte identify controller buffer.
func DecodeControllerInfo(buf []byte) (*ControllerInfo, error) {
	if err := checkLength("identify controller", buf, IdentifyBytes); err != nil {
		return nil, err
	}

	return &ControllerInfo{
		Serial:   trimNVMeASCII(buf[4:24]),
		Model:    trimNVMeASCII(buf[24:64]),
		Firmware: trimNVMeASCII(buf[64:72]),
	}, nil
}

// NamespaceInfo is the decoded identify namespace structure (CNS 0x00),
// limited to the size fields exposed as metrics. Values are in LBAs.
type NamespaceInfo struct {
	Size        uint64
	Capacity    uint64
	Utilization uint64
}

// DecodeNamespaceInfo decodes a 4096-byte identify namespace buffer.
func DecodeNamespaceInfo(buf []byte) (*NamespaceInfo, error) {
	if err := checkLength("identify namespace", buf, IdentifyBytes); err != nil {
		return nil, err
	}

	return &NamespaceInfo{
		Size:        binary.LittleEndian.Uint64(buf[0:]),
		Capacity:    binary.LittleEndian.Uint64(buf[8:]),
		Utilization: binary.LittleEndian.Uint64(buf[16:]),
	}, nil
}

// checkLength validates a fixed-layout buffer before any field access.
func checkLength(what string, buf []byte, want int) error {
	if len(buf) < want {
		return WrapErrorWithContext(ErrCodeTruncated,
			fmt.Sprintf("%s buffer truncated", what), nil,
			map[string]any{"expected": want, "actual": len(buf)})
	}
	if len(buf) > want {
		return WrapErrorWithContext(ErrCodeInvalidData,
			fmt.Sprintf("%s buffer has unexpected size", what), nil,
			map[string]any{"expected": want, "actual": len(buf)})
	}
	return nil
}

// trimNVMeASCII strips NUL padding and surrounding spaces from fixed-width
// NVMe identity strings.
func trimNVMeASCII(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
