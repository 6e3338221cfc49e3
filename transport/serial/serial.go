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

// Package serial implements the pelcod.Transport interface over an
// RS-485/RS-422 serial line, the wiring most pan-tilt heads ship with.
package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	goserial "go.bug.st/serial"
	"go.uber.org/zap"

	pelcod "github.com/ptzkit/go-pelcod"
)

const (
	// DefaultBaudRate matches the factory setting of every head this
	// package has been run against. The protocol itself is always 8N1.
	DefaultBaudRate = 9600

	// receiveScratch bounds a Receive when the caller passes no limit.
	receiveScratch = 64
)

// Config carries serial link settings. The frame format is fixed 8N1;
// only the port and speed vary between installations.
type Config struct {
	// Port is the device path, e.g. /dev/ttyUSB0 or COM3.
	Port string

	// BaudRate is the line speed. Zero selects DefaultBaudRate.
	BaudRate int

	// PollInterval is how long a single blocking port read waits before
	// giving the receive loop a chance to check its deadline. Zero
	// selects a platform default.
	PollInterval time.Duration
}

// Kind implements pelcod.Config.
func (Config) Kind() pelcod.Kind { return pelcod.KindSerial }

func (c Config) withDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval()
	}
	return c
}

// defaultPollInterval returns the port read granularity. Windows serial
// drivers need a longer slice to deliver data reliably; 50ms is proven
// on Linux and macOS.
func defaultPollInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Transport is a pelcod.Transport over a local serial port.
type Transport struct {
	port  goserial.Port
	log   *zap.Logger
	trace *pelcod.TraceBuffer
	cfg   Config
	mu    sync.Mutex
	open  bool
}

// Option customizes a Transport.
type Option func(*Transport)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(t *Transport) {
		if log != nil {
			t.log = log
		}
	}
}

// WithTrace enables a wire trace ring of size entries, attached to
// transport errors for post-mortem inspection.
func WithTrace(size int) Option {
	return func(t *Transport) {
		t.trace = pelcod.NewTraceBuffer(string(pelcod.KindSerial), t.cfg.Port, size)
	}
}

// New creates a serial transport for cfg. The port is not touched until
// Open.
func New(cfg Config, opts ...Option) (*Transport, error) {
	if cfg.Port == "" {
		return nil, pelcod.NewInvalidConfigError("new", "", errors.New("port name required"))
	}
	t := &Transport{
		cfg: cfg.withDefaults(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ListPorts returns the serial port names visible on this host.
func ListPorts() ([]string, error) {
	ports, err := goserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

// Kind implements pelcod.Transport.
func (*Transport) Kind() pelcod.Kind { return pelcod.KindSerial }

// Open dials the port. Busy or permission failures are retried under
// pelcod.DefaultOpenRetryConfig, so a port still held by a previous
// process gets a few seconds to come free; a missing device fails
// immediately.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return pelcod.ErrAlreadyOpen
	}

	err := pelcod.RetryWithConfig(ctx, pelcod.DefaultOpenRetryConfig(), t.openLocked)
	if err != nil {
		return err
	}
	t.log.Info("serial port opened",
		zap.String("port", t.cfg.Port),
		zap.Int("baud", t.cfg.BaudRate))
	return nil
}

// openLocked makes one open attempt against the current config and
// marks the transport open on success. Callers hold t.mu.
func (t *Transport) openLocked() error {
	port, err := goserial.Open(t.cfg.Port, t.mode())
	if err != nil {
		return classifyOpenError(t.cfg.Port, err)
	}
	if toErr := port.SetReadTimeout(t.cfg.PollInterval); toErr != nil {
		_ = port.Close()
		return pelcod.NewInvalidConfigError("open", t.cfg.Port,
			fmt.Errorf("set read timeout: %w", toErr))
	}
	t.port = port
	t.open = true
	return nil
}

// Close releases the port. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *Transport) closeLocked() error {
	if !t.open {
		return nil
	}
	t.open = false
	port := t.port
	t.port = nil
	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("closing serial port %s: %w", t.cfg.Port, err)
	}
	return nil
}

// IsOpen implements pelcod.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Send writes p to the line and drains the OS buffer so the frame is
// on the wire before Send returns.
func (t *Transport) Send(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, pelcod.NewNotOpenError("send", t.cfg.Port)
	}

	n, err := t.port.Write(p)
	if err != nil {
		return n, t.wrapTrace(pelcod.NewTransportWriteError("send", t.cfg.Port, err))
	}
	if n != len(p) {
		return n, t.wrapTrace(pelcod.NewTransportWriteError("send", t.cfg.Port,
			fmt.Errorf("short write: %d of %d bytes", n, len(p))))
	}
	if err := t.drainWithRetry("send"); err != nil {
		return n, t.wrapTrace(err)
	}
	if t.trace != nil {
		t.trace.RecordTX(p, "")
	}
	return n, nil
}

// Receive reads up to maxLen bytes, waiting at most timeout for data to
// appear. It returns whatever the first successful port read delivers,
// which on a serial line may be a single byte of a longer frame.
func (t *Transport) Receive(maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, pelcod.NewNotOpenError("receive", t.cfg.Port)
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	buf := make([]byte, maxLen)
	deadline := time.Now().Add(timeout)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, t.wrapTrace(pelcod.NewTransportReadError("receive", t.cfg.Port, err))
		}
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			if t.trace != nil {
				t.trace.RecordRX(out, "")
			}
			return out, nil
		}
		// A zero-byte read is the port timeout tick, not EOF.
		if !time.Now().Before(deadline) {
			if t.trace != nil {
				t.trace.RecordTimeout("receive")
			}
			return nil, t.wrapTrace(pelcod.NewTimeoutError("receive", t.cfg.Port))
		}
	}
}

// ReceiveUntil reads byte-at-a-time until delim is seen, maxLen bytes
// have accumulated, or timeout expires. The accumulated bytes are
// returned in every case; only an expired deadline with nothing read is
// an error.
func (t *Transport) ReceiveUntil(delim []byte, maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, pelcod.NewNotOpenError("receive", t.cfg.Port)
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	acc := make([]byte, 0, maxLen)
	one := make([]byte, 1)
	deadline := time.Now().Add(timeout)
	for {
		n, err := t.port.Read(one)
		if err != nil {
			return acc, t.wrapTrace(pelcod.NewTransportReadError("receive", t.cfg.Port, err))
		}
		if n > 0 {
			acc = append(acc, one[0])
			if len(delim) > 0 && bytes.HasSuffix(acc, delim) {
				break
			}
			if len(acc) >= maxLen {
				break
			}
			continue
		}
		if !time.Now().Before(deadline) {
			if len(acc) > 0 {
				break
			}
			if t.trace != nil {
				t.trace.RecordTimeout("receive until")
			}
			return nil, t.wrapTrace(pelcod.NewTimeoutError("receive", t.cfg.Port))
		}
	}
	if t.trace != nil {
		t.trace.RecordRX(acc, "until")
	}
	return acc, nil
}

// Configure applies new link settings. An open port is closed, the
// config swapped, and the new port opened; if that open fails the
// previous settings are restored with a best-effort reopen and the
// open error is returned. Reconfiguring gets a single open attempt —
// the stale-handle retry belongs to Open.
func (t *Transport) Configure(cfg pelcod.Config) error {
	next, ok := cfg.(Config)
	if !ok {
		return pelcod.NewInvalidConfigError("configure", t.cfg.Port,
			fmt.Errorf("config kind %q, want %q", cfg.Kind(), pelcod.KindSerial))
	}
	if next.Port == "" {
		next.Port = t.cfg.Port
	}
	next = next.withDefaults()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		t.cfg = next
		return nil
	}

	prev := t.cfg
	if err := t.closeLocked(); err != nil {
		t.log.Warn("closing before reconfigure", zap.Error(err))
	}
	t.cfg = next
	if err := t.openLocked(); err != nil {
		t.cfg = prev
		if rbErr := t.openLocked(); rbErr != nil {
			t.log.Warn("reopen of previous port failed",
				zap.String("port", prev.Port), zap.Error(rbErr))
		}
		return err
	}
	t.log.Info("serial port opened",
		zap.String("port", t.cfg.Port),
		zap.Int("baud", t.cfg.BaudRate))
	return nil
}

// Port returns the configured device path.
func (t *Transport) Port() string { return t.cfg.Port }

// Trace returns the wire trace buffer, or nil when tracing is off.
func (t *Transport) Trace() *pelcod.TraceBuffer { return t.trace }

func (t *Transport) mode() *goserial.Mode {
	return &goserial.Mode{
		BaudRate: t.cfg.BaudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
}

// drainWithRetry flushes the OS transmit buffer, retrying reads
// interrupted by signals. USB serial adapters on busy hosts hit EINTR
// under load.
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if isInterruptedSyscall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt))
			continue
		}
		return pelcod.NewTransportWriteError(operation, t.cfg.Port,
			fmt.Errorf("drain: %w", err))
	}
	return pelcod.NewTransportWriteError(operation, t.cfg.Port,
		fmt.Errorf("drain failed after %d retries", maxRetries))
}

func (t *Transport) wrapTrace(err error) error {
	if t.trace == nil {
		return err
	}
	return t.trace.WrapError(err)
}

func isInterruptedSyscall(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") ||
		strings.Contains(msg, "eintr")
}

// classifyOpenError separates retryable access failures from permanent
// ones so the open retry loop only spins on ports that might come free.
func classifyOpenError(port string, err error) error {
	var portErr *goserial.PortError
	if errors.As(err, &portErr) {
		return classifyPortCode(port, portErr.Code(), err)
	}
	return pelcod.NewTransportError("open", port,
		fmt.Errorf("opening serial port: %w", err), pelcod.ErrorTypePermanent)
}

// classifyPortCode maps driver error codes onto the transport error
// taxonomy. Busy and permission failures are worth retrying; a missing
// device stays missing no matter how often we ask.
func classifyPortCode(port string, code goserial.PortErrorCode, err error) error {
	switch code {
	case goserial.PortBusy, goserial.PermissionDenied:
		return pelcod.NewPortAccessError("open", port, err)
	case goserial.PortNotFound:
		return pelcod.NewTransportError("open", port,
			fmt.Errorf("port not found: %w", err), pelcod.ErrorTypePermanent)
	default:
		return pelcod.NewTransportError("open", port,
			fmt.Errorf("opening serial port: %w", err), pelcod.ErrorTypePermanent)
	}
}

// Ensure Transport implements pelcod.Transport.
var _ pelcod.Transport = (*Transport)(nil)
