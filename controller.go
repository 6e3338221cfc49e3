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
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ptzkit/go-pelcod/internal/frame"
	"github.com/ptzkit/go-pelcod/internal/syncutil"
)

// ControllerConfig contains tuning knobs for the Controller.
type ControllerConfig struct {
	// Address is the multi-drop device address carried in every frame.
	Address byte
	// ReceiveTimeout bounds each read while collecting a response.
	ReceiveTimeout time.Duration
	// FlushTimeout bounds the stale-byte drain during Open.
	FlushTimeout time.Duration
	// ZeroSettle is the pause after each zero-point command, giving
	// the head time to latch the new reference.
	ZeroSettle time.Duration
	// WaitPoll is the position poll interval during blocking waits.
	WaitPoll time.Duration
	// WaitTimeout is the most a blocking wait will poll before giving
	// up and returning the last reading.
	WaitTimeout time.Duration
	// WaitTolerance is the angular distance, in degrees, at which a
	// blocking wait considers the target reached.
	WaitTolerance float64
}

// DefaultControllerConfig returns the configuration matching the
// device family's observed timing.
func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		Address:        1,
		ReceiveTimeout: 2 * time.Second,
		FlushTimeout:   100 * time.Millisecond,
		ZeroSettle:     200 * time.Millisecond,
		WaitPoll:       50 * time.Millisecond,
		WaitTimeout:    5 * time.Second,
		WaitTolerance:  0.2,
	}
}

// Controller drives one pan-tilt head over one Transport. It owns the
// zero-point calibration and turns raw encoder readings into relative
// coordinates.
//
// Thread Safety: movement, preset, optical and query methods may be
// called from multiple goroutines; every wire transaction runs under
// an internal lock so a response is always read by the caller that
// sent the matching query. Open, Close and Transport.Configure are
// not safe to call concurrently with any other method — quiesce the
// command queue and the telemetry loop first.
type Controller struct {
	transport Transport
	config    *ControllerConfig
	log       *zap.Logger

	// ioMu serializes complete send/receive transactions on the wire.
	// The protocol has no response multiplexing: every send must be
	// followed by its own receive before the next send.
	ioMu syncutil.Mutex

	// stateMu guards calibration state. The telemetry loop reads it
	// while the queue worker may be re-homing.
	stateMu syncutil.RWMutex
	zero    ZeroPoint
	opened  bool
}

// Option configures a Controller during New.
type Option func(*Controller) error

// WithAddress sets the device address used in every frame. Address 0
// is the protocol broadcast and is rejected.
func WithAddress(address byte) Option {
	return func(c *Controller) error {
		if address == 0 {
			return fmt.Errorf("%w: 0", ErrInvalidAddress)
		}
		c.config.Address = address
		return nil
	}
}

// WithLogger injects a structured logger. The default discards
// everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) error {
		if log == nil {
			return errors.New("nil logger")
		}
		c.log = log
		return nil
	}
}

// WithReceiveTimeout overrides the per-read timeout for responses.
func WithReceiveTimeout(timeout time.Duration) Option {
	return func(c *Controller) error {
		if timeout <= 0 {
			return fmt.Errorf("receive timeout must be positive, got %v", timeout)
		}
		c.config.ReceiveTimeout = timeout
		return nil
	}
}

// WithWait overrides the blocking-wait parameters: the reached
// tolerance in degrees, the poll interval, and the give-up budget.
func WithWait(tolerance float64, poll, maxWait time.Duration) Option {
	return func(c *Controller) error {
		if tolerance <= 0 || poll <= 0 || maxWait <= 0 {
			return errors.New("wait parameters must be positive")
		}
		c.config.WaitTolerance = tolerance
		c.config.WaitPoll = poll
		c.config.WaitTimeout = maxWait
		return nil
	}
}

// WithZeroSettle overrides the pause after each zero-point command.
func WithZeroSettle(settle time.Duration) Option {
	return func(c *Controller) error {
		if settle < 0 {
			return errors.New("zero settle must not be negative")
		}
		c.config.ZeroSettle = settle
		return nil
	}
}

// WithFlushTimeout overrides the stale-byte drain timeout used during
// Open.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(c *Controller) error {
		if timeout <= 0 {
			return errors.New("flush timeout must be positive")
		}
		c.config.FlushTimeout = timeout
		return nil
	}
}

// New creates a Controller over the given transport.
func New(transport Transport, opts ...Option) (*Controller, error) {
	if transport == nil {
		return nil, errors.New("nil transport")
	}
	c := &Controller{
		transport: transport,
		config:    DefaultControllerConfig(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Open brings the head up: it opens the transport if needed, drains
// stale bytes, declares the current position as the device zero on
// both axes, and records the reported position as the software zero
// point. Calibration is fail-soft — an unresponsive head leaves the
// zero point at the default rather than failing Open.
func (c *Controller) Open(ctx context.Context) error {
	c.stateMu.Lock()
	if c.opened {
		c.stateMu.Unlock()
		return ErrAlreadyOpen
	}
	c.stateMu.Unlock()

	if !c.transport.IsOpen() {
		if err := c.transport.Open(ctx); err != nil {
			return fmt.Errorf("open %s transport: %w", c.transport.Kind(), err)
		}
	}

	c.flushStale()
	if err := c.calibrate(ctx); err != nil {
		return err
	}
	c.probeVersion()

	c.stateMu.Lock()
	c.opened = true
	c.stateMu.Unlock()
	return nil
}

// Close releases the transport. Callers must stop the command queue
// and the telemetry loop first; Close does not wait for in-flight
// transactions.
func (c *Controller) Close() error {
	c.stateMu.Lock()
	c.opened = false
	c.stateMu.Unlock()

	c.log.Info("closing transport", zap.String("kind", string(c.transport.Kind())))
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Transport returns the underlying transport.
func (c *Controller) Transport() Transport {
	return c.transport
}

// Address returns the device address frames are built with.
func (c *Controller) Address() byte {
	return c.config.Address
}

// flushStale drains whatever the head pushed onto the line since the
// last session. Silence is the normal case.
func (c *Controller) flushStale() {
	buf, err := c.transport.Receive(64, c.config.FlushTimeout)
	if err != nil {
		if !errors.Is(err, ErrReceiveTimeout) {
			c.log.Debug("flush read failed", zap.Error(err))
		}
		return
	}
	if len(buf) > 0 {
		c.log.Debug("flushed stale bytes", zap.String("bytes", formatHexBytes(buf)))
	}
}

// calibrate issues the zero-point commands for both axes and records
// the position the head reports afterwards. Command failures degrade
// to warnings; only context cancellation aborts.
func (c *Controller) calibrate(ctx context.Context) error {
	c.log.Info("zeroing pan and tilt", zap.Uint8("address", c.config.Address))

	if err := c.sendFrame(ZeroPanFrame(c.config.Address)); err != nil {
		c.log.Warn("pan zero command failed", zap.Error(err))
	}
	if err := sleepWithContext(ctx, c.config.ZeroSettle); err != nil {
		return err
	}
	if err := c.sendFrame(ZeroTiltFrame(c.config.Address)); err != nil {
		c.log.Warn("tilt zero command failed", zap.Error(err))
	}
	if err := sleepWithContext(ctx, c.config.ZeroSettle); err != nil {
		return err
	}

	// Some firmware acks the zeroing; drop anything it sent.
	c.flushStale()

	zero := c.captureZero()
	c.stateMu.Lock()
	c.zero = zero
	c.stateMu.Unlock()

	c.log.Info("zero point recorded",
		zap.Float64("pan", zero.PanDeg),
		zap.Float64("tilt", zero.TiltDeg))
	return nil
}

// probeVersion asks the head for its firmware version. Most units in
// the field never answer, so silence is only a debug event.
func (c *Controller) probeVersion() {
	raw, err := c.transact(VersionQueryFrame(c.config.Address), c.config.FlushTimeout)
	if err != nil || len(raw) == 0 {
		c.log.Debug("version query unanswered")
		return
	}
	c.log.Info("firmware version", zap.String("raw", formatHexBytes(raw)))
}

// sendFrame writes one command frame under the transaction lock.
func (c *Controller) sendFrame(f CommandFrame) error {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()
	return c.sendFrameLocked(f)
}

func (c *Controller) sendFrameLocked(f CommandFrame) error {
	wire := f.Bytes()
	if _, err := c.transport.Send(wire); err != nil {
		return fmt.Errorf("send frame %s: %w", formatHexBytes(wire), err)
	}
	c.log.Debug("frame sent", zap.String("frame", formatHexBytes(wire)))
	return nil
}

// transact sends a frame and reads the single response that belongs
// to it, holding the transaction lock across the whole exchange.
func (c *Controller) transact(f CommandFrame, timeout time.Duration) ([]byte, error) {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	if err := c.sendFrameLocked(f); err != nil {
		return nil, err
	}
	return c.readFrameLocked(timeout)
}

// readFrameLocked collects one response. The first byte decides the
// expected length (0xFF lead means the 7-byte layout, anything else
// the 5-byte vendor layout); the remainder arrives in short chunks
// that must never be assumed complete. A short frame is returned as
// is so the decoder can classify it.
func (c *Controller) readFrameLocked(timeout time.Duration) ([]byte, error) {
	first, err := c.transport.Receive(1, timeout)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, NewTimeoutError("receive", string(c.transport.Kind()))
	}

	buf := make([]byte, 0, frame.StandardLen)
	buf = append(buf, first...)
	expected := frame.ExpectedLength(buf[0])

	for len(buf) < expected {
		chunk, err := c.transport.Receive(expected-len(buf), timeout)
		if err != nil || len(chunk) == 0 {
			c.log.Warn("short response",
				zap.Int("expected", expected),
				zap.String("bytes", formatHexBytes(buf)),
				zap.Error(err))
			break
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}
