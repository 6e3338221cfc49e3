// go-pelcod
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
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ptzkit/go-pelcod/internal/frame"
)

// Transport is the byte-level link to a pan-tilt head. Implementations
// exist for serial lines, TCP device servers and the in-process
// simulator; all of them move raw frames and know nothing about the
// protocol above them.
type Transport interface {
	// Kind identifies the backend.
	Kind() Kind

	// Open establishes the link. Opening an already-open transport
	// returns ErrAlreadyOpen.
	Open(ctx context.Context) error

	// Close releases the link. Closing a closed transport is a no-op.
	Close() error

	// IsOpen reports whether the link is usable.
	IsOpen() bool

	// Send writes p to the device and returns the number of bytes
	// written.
	Send(p []byte) (int, error)

	// Receive reads up to maxLen bytes, waiting at most timeout for
	// the first byte to arrive. A timeout is reported through
	// ErrReceiveTimeout.
	Receive(maxLen int, timeout time.Duration) ([]byte, error)

	// ReceiveUntil reads until delim is seen, maxLen bytes have
	// accumulated, or timeout expires, whichever comes first.
	ReceiveUntil(delim []byte, maxLen int, timeout time.Duration) ([]byte, error)

	// Configure applies new link settings. An open transport is
	// reopened under the new settings; if that fails the previous
	// settings are restored with a best-effort reopen and the failure
	// is returned. Configs of the wrong kind are rejected with
	// ErrInvalidConfig.
	Configure(cfg Config) error
}

// Kind identifies a transport backend.
type Kind string

const (
	// KindSerial is an RS-485/RS-422 serial line.
	KindSerial Kind = "serial"
	// KindTCP is a TCP connection to a device server.
	KindTCP Kind = "tcp"
	// KindSimulator is the in-process virtual head.
	KindSimulator Kind = "simulator"
	// KindMock is the scripted transport used in tests.
	KindMock Kind = "mock"
)

// Config carries backend-specific link settings. Each transport package
// exports its own concrete type; Kind ties a config to the backend that
// understands it.
type Config interface {
	Kind() Kind
}

// MockTransport is a scripted Transport for tests. Response bytes are
// either queued verbatim or keyed by the opcode byte of the command
// that should trigger them; reads drain a single byte stream the way
// a real line would, so partial-read paths are exercised. Errors can
// be injected per opcode, on reads, or on Open to drive retry paths.
type MockTransport struct {
	responses map[byte][]byte
	sendErrs  map[byte]error
	callCount map[byte]int
	recvErr   error
	openErr   error
	lastCfg   Config
	rx        []byte
	sent      [][]byte
	delay     time.Duration
	openFails int
	mu        sync.RWMutex
	open      bool
}

// NewMockTransport creates an open mock transport with no scripted
// responses.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		open:      true,
		responses: make(map[byte][]byte),
		sendErrs:  make(map[byte]error),
		callCount: make(map[byte]int),
	}
}

// Kind implements Transport.
func (*MockTransport) Kind() Kind { return KindMock }

// Open implements Transport.
func (m *MockTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return ErrAlreadyOpen
	}
	if m.openFails != 0 && m.openErr != nil {
		if m.openFails > 0 {
			m.openFails--
		}
		return m.openErr
	}
	m.open = true
	return nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	return nil
}

// IsOpen implements Transport.
func (m *MockTransport) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Send implements Transport. Command frames are recorded and, when a
// response is scripted for the frame's opcode, its bytes are appended
// to the receive stream.
func (m *MockTransport) Send(p []byte) (int, error) {
	m.mu.RLock()
	open := m.open
	delay := m.delay
	m.mu.RUnlock()

	if !open {
		return 0, NewNotOpenError("send", "mock")
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(p))
	copy(buf, p)
	m.sent = append(m.sent, buf)

	if len(p) == frame.CommandLen && p[0] == frame.Sync {
		op := p[3]
		m.callCount[op]++
		if err, ok := m.sendErrs[op]; ok {
			return 0, err
		}
		if resp, ok := m.responses[op]; ok {
			m.rx = append(m.rx, resp...)
		}
	}
	return len(p), nil
}

// Receive implements Transport. It drains up to maxLen bytes from the
// receive stream, or reports a timeout when the stream is empty.
func (m *MockTransport) Receive(maxLen int, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, NewNotOpenError("receive", "mock")
	}
	if m.recvErr != nil {
		return nil, m.recvErr
	}
	if len(m.rx) == 0 {
		return nil, NewTimeoutError("receive", "mock")
	}
	n := len(m.rx)
	if maxLen > 0 && n > maxLen {
		n = maxLen
	}
	out := make([]byte, n)
	copy(out, m.rx[:n])
	m.rx = m.rx[n:]
	return out, nil
}

// ReceiveUntil implements Transport. It consumes through the first
// occurrence of delim, or up to maxLen pending bytes when the
// delimiter never arrives.
func (m *MockTransport) ReceiveUntil(delim []byte, maxLen int, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	if m.open && m.recvErr == nil && len(delim) > 0 {
		limit := len(m.rx)
		if maxLen > 0 && limit > maxLen {
			limit = maxLen
		}
		if i := bytes.Index(m.rx[:limit], delim); i >= 0 {
			end := i + len(delim)
			out := make([]byte, end)
			copy(out, m.rx[:end])
			m.rx = m.rx[end:]
			m.mu.Unlock()
			return out, nil
		}
	}
	m.mu.Unlock()
	return m.Receive(maxLen, timeout)
}

// Configure implements Transport.
func (m *MockTransport) Configure(cfg Config) error {
	m.mu.Lock()
	m.lastCfg = cfg
	m.mu.Unlock()
	return nil
}

// Test helper methods

// SetResponse scripts a response to be delivered after a command frame
// with the given opcode byte is sent.
func (m *MockTransport) SetResponse(op byte, response []byte) {
	m.mu.Lock()
	m.responses[op] = response
	m.mu.Unlock()
}

// QueueResponse appends raw bytes to the receive stream without tying
// them to any command.
func (m *MockTransport) QueueResponse(raw []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, raw...)
	m.mu.Unlock()
}

// SetError injects an error for command frames with the given opcode.
func (m *MockTransport) SetError(op byte, err error) {
	m.mu.Lock()
	m.sendErrs[op] = err
	m.mu.Unlock()
}

// ClearError removes error injection for an opcode.
func (m *MockTransport) ClearError(op byte) {
	m.mu.Lock()
	delete(m.sendErrs, op)
	m.mu.Unlock()
}

// SetReceiveError makes every Receive fail with err until cleared with
// a nil err.
func (m *MockTransport) SetReceiveError(err error) {
	m.mu.Lock()
	m.recvErr = err
	m.mu.Unlock()
}

// FailOpen makes the next times calls to Open fail with err. A
// negative times fails every Open until cleared.
func (m *MockTransport) FailOpen(err error, times int) {
	m.mu.Lock()
	m.openErr = err
	m.openFails = times
	m.open = false
	m.mu.Unlock()
}

// SetDelay adds a fixed latency to every Send to simulate a slow link.
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many command frames with the given opcode
// were sent.
func (m *MockTransport) GetCallCount(op byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[op]
}

// SentFrames returns copies of every frame sent so far, in order.
func (m *MockTransport) SentFrames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.sent))
	for i, f := range m.sent {
		buf := make([]byte, len(f))
		copy(buf, f)
		out[i] = buf
	}
	return out
}

// LastConfig returns the config most recently passed to Configure.
func (m *MockTransport) LastConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCfg
}

// Reset clears scripted responses, queues, counters and injected
// errors, and reopens the transport.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.responses = make(map[byte][]byte)
	m.sendErrs = make(map[byte]error)
	m.callCount = make(map[byte]int)
	m.rx = nil
	m.sent = nil
	m.recvErr = nil
	m.openErr = nil
	m.openFails = 0
	m.delay = 0
	m.open = true
	m.mu.Unlock()
}

var _ Transport = (*MockTransport)(nil)
