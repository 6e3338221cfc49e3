// Copyright 2026 The PTZKit Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package pelcod

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// Error categories for retry and fail-soft handling
var (
	// Transport errors - potentially retryable
	ErrReceiveTimeout  = errors.New("receive timeout")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrNotOpen         = errors.New("transport is not open")
	ErrAlreadyOpen     = errors.New("transport is already open")
	ErrPortAccess      = errors.New("port access denied or busy")
	ErrTransportClosed = errors.New("transport is closed")

	// Protocol errors - the sample is discarded, never fatal to the caller
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownResponse  = errors.New("unrecognized response")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Configuration errors - not retryable
	ErrInvalidConfig  = errors.New("invalid transport configuration")
	ErrInvalidAddress = errors.New("device address out of range")
	ErrInvalidPreset  = errors.New("preset id out of range")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port, host or simulator identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrReceiveTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrPortAccess),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device/connection is gone
// and the telemetry loop should stop entirely. This is distinct from
// IsRetryable which indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsPortAccessError reports whether err stems from the operating system
// refusing access to the port (permissions, or another process holding the
// handle). Only these failures are worth retrying during Open; a missing
// device stays missing no matter how often we ask.
func IsPortAccessError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPortAccess) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EBUSY, syscall.EPERM:
			return true
		}
	}
	return false
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
// These errors occur when a USB serial adapter is unplugged during I/O.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}

		if runtime.GOOS == "windows" {
			//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
			switch errno {
			case errAccessDenied, errGenFailure, errNoSuchDevice:
				return true
			}
		}
	}

	return false
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrReceiveTimeout, ErrorTypeTimeout)
}

// NewNotOpenError creates a "transport not open" error (permanent)
func NewNotOpenError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNotOpen, ErrorTypePermanent)
}

// NewPortAccessError creates a port access error (transient; Open retries it)
func NewPortAccessError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrPortAccess, err), ErrorTypeTransient)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
}

// NewInvalidConfigError creates an invalid configuration error (permanent)
func NewInvalidConfigError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrInvalidConfig, err), ErrorTypePermanent)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, allowing consumer
// applications to access debug information when operations fail.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the head
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the head
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumer applications can use errors.As() to extract trace information:
//
//	var te *pelcod.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during a command exchange.
// It uses a fixed-size circular buffer to limit memory usage.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records a frame sent to the head
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the head
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:       err,
		Trace:     entriesCopy,
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
