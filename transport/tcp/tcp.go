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

// Package tcp implements the pelcod.Transport interface over a TCP
// connection to a serial device server, the usual way a head on an
// RS-485 bus is reached across a site network.
package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	pelcod "github.com/ptzkit/go-pelcod"
)

const (
	// DefaultPort is the raw-socket port most device servers map the
	// first serial line to.
	DefaultPort = 4001

	// DefaultDialTimeout bounds the TCP connect.
	DefaultDialTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single frame write. Frames are seven
	// bytes; a write that takes longer means the peer is gone.
	DefaultWriteTimeout = 2 * time.Second

	keepAlivePeriod = 30 * time.Second

	// receiveScratch bounds a Receive when the caller passes no limit.
	receiveScratch = 64
)

// Config carries device-server connection settings.
type Config struct {
	// Host is the device server address, name or IP.
	Host string

	// Port is the TCP port of the mapped serial line. Zero selects
	// DefaultPort.
	Port int

	// DialTimeout bounds Open's connect attempt. Zero selects
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteTimeout bounds each Send. Zero selects DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Kind implements pelcod.Config.
func (Config) Kind() pelcod.Kind { return pelcod.KindTCP }

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Transport is a pelcod.Transport over a TCP socket.
type Transport struct {
	conn  net.Conn
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
		t.trace = pelcod.NewTraceBuffer(string(pelcod.KindTCP), t.cfg.addr(), size)
	}
}

// New creates a TCP transport for cfg. Nothing is dialed until Open.
func New(cfg Config, opts ...Option) (*Transport, error) {
	if cfg.Host == "" {
		return nil, pelcod.NewInvalidConfigError("new", "", errors.New("host required"))
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

// Kind implements pelcod.Transport.
func (*Transport) Kind() pelcod.Kind { return pelcod.KindTCP }

// Open dials the device server. Refused or timed-out connects are
// retried under pelcod.DefaultOpenRetryConfig, which rides out a device
// server finishing its boot; resolution failures abort immediately.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return pelcod.ErrAlreadyOpen
	}

	err := pelcod.RetryWithConfig(ctx, pelcod.DefaultOpenRetryConfig(), t.connectLocked)
	if err != nil {
		return err
	}
	t.log.Info("device server connected", zap.String("addr", t.cfg.addr()))
	return nil
}

// connectLocked makes one dial attempt against the current config and
// marks the transport open on success. Callers hold t.mu.
func (t *Transport) connectLocked() error {
	addr := t.cfg.addr()
	conn, err := net.DialTimeout("tcp", addr, t.cfg.DialTimeout)
	if err != nil {
		return classifyDialError(addr, err)
	}
	tuneConn(conn)
	t.conn = conn
	t.open = true
	return nil
}

// Close drops the connection. Closing a closed transport is a no-op.
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
	conn := t.conn
	t.conn = nil
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing connection to %s: %w", t.cfg.addr(), err)
	}
	return nil
}

// IsOpen implements pelcod.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Send writes p to the socket under the configured write deadline.
func (t *Transport) Send(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, pelcod.NewNotOpenError("send", t.cfg.addr())
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return 0, t.wrapTrace(pelcod.NewTransportWriteError("send", t.cfg.addr(), err))
	}
	n, err := t.conn.Write(p)
	if err != nil {
		return n, t.wrapTrace(t.mapConnError("send", err))
	}
	if n != len(p) {
		return n, t.wrapTrace(pelcod.NewTransportWriteError("send", t.cfg.addr(),
			fmt.Errorf("short write: %d of %d bytes", n, len(p))))
	}
	if t.trace != nil {
		t.trace.RecordTX(p, "")
	}
	return n, nil
}

// Receive reads up to maxLen bytes, waiting at most timeout for data.
// It returns whatever one socket read delivers; a device server relays
// the serial line byte-by-byte, so short reads are normal.
func (t *Transport) Receive(maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, pelcod.NewNotOpenError("receive", t.cfg.addr())
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, t.wrapTrace(pelcod.NewTransportReadError("receive", t.cfg.addr(), err))
	}
	buf := make([]byte, maxLen)
	n, err := t.conn.Read(buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, buf[:n])
		if t.trace != nil {
			t.trace.RecordRX(out, "")
		}
		return out, nil
	}
	if err != nil {
		return nil, t.wrapTrace(t.mapConnError("receive", err))
	}
	return nil, t.wrapTrace(pelcod.NewTimeoutError("receive", t.cfg.addr()))
}

// ReceiveUntil reads byte-at-a-time until delim is seen, maxLen bytes
// have accumulated, or timeout expires. The accumulated bytes are
// returned in every case; only an expired deadline with nothing read is
// an error.
func (t *Transport) ReceiveUntil(delim []byte, maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, pelcod.NewNotOpenError("receive", t.cfg.addr())
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, t.wrapTrace(pelcod.NewTransportReadError("receive", t.cfg.addr(), err))
	}

	acc := make([]byte, 0, maxLen)
	one := make([]byte, 1)
	for {
		n, err := t.conn.Read(one)
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
		if err != nil {
			if isTimeout(err) && len(acc) > 0 {
				break
			}
			if isTimeout(err) {
				if t.trace != nil {
					t.trace.RecordTimeout("receive until")
				}
				return nil, t.wrapTrace(pelcod.NewTimeoutError("receive", t.cfg.addr()))
			}
			return acc, t.wrapTrace(t.mapConnError("receive", err))
		}
	}
	if t.trace != nil {
		t.trace.RecordRX(acc, "until")
	}
	return acc, nil
}

// Configure applies new settings. An open transport is closed, the
// config swapped, and the new endpoint dialed; if that dial fails the
// previous settings are restored with a best-effort reconnect and the
// dial error is returned. Reconfiguring gets a single dial attempt —
// the boot-ride-out retry belongs to Open.
func (t *Transport) Configure(cfg pelcod.Config) error {
	next, ok := cfg.(Config)
	if !ok {
		return pelcod.NewInvalidConfigError("configure", t.cfg.addr(),
			fmt.Errorf("config kind %q, want %q", cfg.Kind(), pelcod.KindTCP))
	}
	if next.Host == "" {
		next.Host = t.cfg.Host
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
	if err := t.connectLocked(); err != nil {
		t.cfg = prev
		if rbErr := t.connectLocked(); rbErr != nil {
			t.log.Warn("reconnect to previous endpoint failed",
				zap.String("addr", prev.addr()), zap.Error(rbErr))
		}
		return err
	}
	t.log.Info("device server connected", zap.String("addr", t.cfg.addr()))
	return nil
}

// Addr returns the configured endpoint as host:port.
func (t *Transport) Addr() string { return t.cfg.addr() }

// Trace returns the wire trace buffer, or nil when tracing is off.
func (t *Transport) Trace() *pelcod.TraceBuffer { return t.trace }

// mapConnError folds socket errors into transport errors. A dead peer
// closes the transport so the next operation fails fast instead of
// hitting a stale socket.
func (t *Transport) mapConnError(op string, err error) error {
	if isTimeout(err) {
		return pelcod.NewTimeoutError(op, t.cfg.addr())
	}
	if isClosed(err) {
		_ = t.closeLocked()
		return pelcod.NewTransportError(op, t.cfg.addr(),
			fmt.Errorf("%w: %w", pelcod.ErrTransportClosed, err), pelcod.ErrorTypePermanent)
	}
	if op == "send" {
		return pelcod.NewTransportWriteError(op, t.cfg.addr(), err)
	}
	return pelcod.NewTransportReadError(op, t.cfg.addr(), err)
}

func (t *Transport) wrapTrace(err error) error {
	if t.trace == nil {
		return err
	}
	return t.trace.WrapError(err)
}

// tuneConn disables Nagle and enables keepalive. Frames are seven bytes
// and latency-sensitive; batching them behind Nagle adds a visible lag
// to every joystick nudge.
func tuneConn(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcpConn.SetNoDelay(true)
	_ = tcpConn.SetKeepAlive(true)
	_ = tcpConn.SetKeepAlivePeriod(keepAlivePeriod)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// classifyDialError separates transient connect failures from permanent
// ones so the open retry loop only spins on servers that might answer.
func classifyDialError(addr string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTemporary {
		return pelcod.NewTransportError("open", addr,
			fmt.Errorf("resolving device server: %w", err), pelcod.ErrorTypePermanent)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || isTimeout(err) {
		return pelcod.NewPortAccessError("open", addr, err)
	}
	return pelcod.NewTransportError("open", addr,
		fmt.Errorf("dialing device server: %w", err), pelcod.ErrorTypePermanent)
}

// Ensure Transport implements pelcod.Transport.
var _ pelcod.Transport = (*Transport)(nil)
