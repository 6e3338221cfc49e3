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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Canned vendor replies used across the controller tests.
var (
	tiltReply30    = []byte{0x00, 0x5B, 0x80, 0xE8, 0xC3} // raw 33000 -> +30.00
	tiltReplyNeg10 = []byte{0x00, 0x5B, 0x03, 0xE8, 0x46} // raw 1000 -> -10.00
)

// loggedError extracts the error value attached to a zap field, since
// LoggedEntry.ContextMap flattens error fields to their string form.
func loggedError(entry observer.LoggedEntry, key string) (error, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			err, ok := f.Interface.(error)
			return err, ok
		}
	}
	return nil, false
}

// newTestController builds a controller over m with timing tightened
// for tests. Extra options are applied last and may override.
func newTestController(t *testing.T, m *MockTransport, opts ...Option) *Controller {
	t.Helper()
	base := []Option{
		WithReceiveTimeout(20 * time.Millisecond),
		WithFlushTimeout(time.Millisecond),
		WithZeroSettle(0),
		WithWait(0.2, time.Millisecond, 50*time.Millisecond),
	}
	c, err := New(m, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err)

	m := NewMockTransport()
	tests := []struct {
		opt  Option
		name string
	}{
		{name: "broadcast address", opt: WithAddress(0)},
		{name: "nil logger", opt: WithLogger(nil)},
		{name: "zero receive timeout", opt: WithReceiveTimeout(0)},
		{name: "zero wait tolerance", opt: WithWait(0, time.Millisecond, time.Second)},
		{name: "negative zero settle", opt: WithZeroSettle(-time.Millisecond)},
		{name: "zero flush timeout", opt: WithFlushTimeout(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(m, tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestControllerOpenCalibrates(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x51, panReply90)
	m.SetResponse(0x53, tiltReply30)

	c := newTestController(t, m)
	require.NoError(t, c.Open(context.Background()))

	zero := c.ZeroPoint()
	assert.InDelta(t, 90.0, zero.PanDeg, 0.001)
	assert.InDelta(t, 30.0, zero.TiltDeg, 0.001)
	assert.Equal(t, uint16(9000), zero.RawPan)
	assert.Equal(t, uint16(33000), zero.RawTilt)

	// Zeroing went out before the first query, one frame per axis.
	sent := m.SentFrames()
	require.GreaterOrEqual(t, len(sent), 4)
	assert.Equal(t, ZeroPanFrame(1).Bytes(), sent[0])
	assert.Equal(t, ZeroTiltFrame(1).Bytes(), sent[1])
	assert.Equal(t, QueryPanFrame(1).Bytes(), sent[2])
	assert.Equal(t, QueryTiltFrame(1).Bytes(), sent[3])

	assert.ErrorIs(t, c.Open(context.Background()), ErrAlreadyOpen)

	require.NoError(t, c.Close())
	assert.False(t, m.IsOpen())
}

func TestControllerOpenSurvivesSilentHead(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m)

	// No scripted responses: every query times out, calibration
	// degrades to a zero origin instead of failing Open.
	require.NoError(t, c.Open(context.Background()))
	zero := c.ZeroPoint()
	assert.Zero(t, zero.PanDeg)
	assert.Zero(t, zero.TiltDeg)
}

func TestControllerOpenFlushesStaleBytes(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.QueueResponse([]byte{0xDE, 0xAD}) // leftovers from a previous session
	m.SetResponse(0x51, panReply90)
	m.SetResponse(0x53, tiltReply30)

	c := newTestController(t, m)
	require.NoError(t, c.Open(context.Background()))

	// The stale bytes were drained, not mistaken for a reply.
	zero := c.ZeroPoint()
	assert.InDelta(t, 90.0, zero.PanDeg, 0.001)
}

func TestControllerAddress(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m, WithAddress(5))
	assert.Equal(t, byte(5), c.Address())

	require.NoError(t, c.MoveRight(0x20))
	sent := m.SentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, byte(5), sent[0][1])
}

func TestQueryPanPositionFailSoft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "no reply", reply: nil},
		{name: "truncated reply", reply: []byte{0x00, 0x59, 0x23}},
		{name: "corrupt checksum", reply: []byte{0x00, 0x59, 0x23, 0x28, 0xA6}},
		{name: "wrong axis tag", reply: tiltReply30},
		{name: "unknown tag", reply: []byte{0x00, 0x42, 0x23, 0x28, 0x8D}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMockTransport()
			if tt.reply != nil {
				m.SetResponse(0x51, tt.reply)
			}
			c := newTestController(t, m)
			assert.Zero(t, c.QueryPanPosition())
		})
	}
}

func TestQueryAcceptsChecksumQuirk(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	// Same bytes as panReply90 with the off-by-one firmware sum.
	m.SetResponse(0x51, []byte{0x00, 0x59, 0x23, 0x28, 0xA5})
	c := newTestController(t, m)

	assert.InDelta(t, 90.0, c.QueryPanPosition(), 0.001)
}

func TestQueryWarningsAreStructured(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMockTransport()
	m.SetResponse(0x51, []byte{0x00, 0x59, 0x23, 0x28, 0xA6})
	c := newTestController(t, m, WithLogger(zap.New(core)))

	assert.Zero(t, c.QueryPanPosition())
	entries := logs.FilterMessage("response checksum mismatch, sample discarded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pan-position", entries[0].ContextMap()["axis"])
	discardErr, ok := loggedError(entries[0], "error")
	require.True(t, ok)
	assert.ErrorIs(t, discardErr, ErrChecksumMismatch)
}

func TestQueryWrongKindReportsUnknownResponse(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMockTransport()
	// A tilt reply arriving for a pan query is discarded.
	m.SetResponse(0x51, tiltReply30)
	c := newTestController(t, m, WithLogger(zap.New(core)))

	assert.Zero(t, c.QueryPanPosition())
	entries := logs.FilterMessage("unexpected response kind").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tilt-position", entries[0].ContextMap()["got"])
	kindErr, ok := loggedError(entries[0], "error")
	require.True(t, ok)
	assert.ErrorIs(t, kindErr, ErrUnknownResponse)
}

func TestQueryTiltPosition(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x53, tiltReplyNeg10)
	c := newTestController(t, m)

	raw, angle := c.QueryTiltPosition()
	assert.Equal(t, uint16(1000), raw)
	assert.InDelta(t, -10.0, angle, 0.001)
	assert.InDelta(t, -10.0, c.QueryTiltAngle(), 0.001)
}

func TestQueryPosition(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x51, panReply90)
	m.SetResponse(0x53, tiltReply30)
	c := newTestController(t, m)

	pan, tilt := c.QueryPosition()
	assert.InDelta(t, 90.0, pan, 0.001)
	assert.InDelta(t, 30.0, tilt, 0.001)
}

func TestSetHomeThenRelativePositionIsZero(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x51, panReply90)
	m.SetResponse(0x53, tiltReply30)
	c := newTestController(t, m)

	zero := c.SetHome()
	assert.InDelta(t, 90.0, zero.PanDeg, 0.001)

	pos := c.RelativePosition()
	assert.InDelta(t, 0.0, pos.Pan, 0.001)
	assert.InDelta(t, 0.0, pos.Tilt, 0.001)
	assert.Zero(t, pos.RawPan)
	assert.Zero(t, pos.RawTilt)
	assert.True(t, pos.Status.PanValid)
	assert.True(t, pos.Status.TiltValid)
}

func TestRelativePositionValidityHeuristic(t *testing.T) {
	t.Parallel()

	// A dead line defaults both axes to zero; the status flags must
	// report that as invalid, not as a centered head.
	m := NewMockTransport()
	c := newTestController(t, m)

	pos := c.RelativePosition()
	assert.Zero(t, pos.Pan)
	assert.Zero(t, pos.Tilt)
	assert.False(t, pos.Status.PanValid)
	assert.False(t, pos.Status.TiltValid)
}

func TestRelativePositionAgainstZeroPoint(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x51, panReply90)
	m.SetResponse(0x53, tiltReply30)
	c := newTestController(t, m)
	c.SetHome()

	// The head drifts to pan 100.5, tilt -10.
	m.SetResponse(0x51, []byte{0x00, 0x59, 0x27, 0x42, 0xC2}) // raw 10050
	m.SetResponse(0x53, tiltReplyNeg10)

	pos := c.RelativePosition()
	assert.InDelta(t, 10.5, pos.Pan, 0.001)
	assert.InDelta(t, -40.0, pos.Tilt, 0.001)
	assert.Equal(t, int32(1050), pos.RawPan)
	assert.Equal(t, int32(1000-33000), pos.RawTilt)
	assert.True(t, pos.Status.PanValid)
	assert.True(t, pos.Status.TiltValid)
}

func TestMovementFrames(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m)

	require.NoError(t, c.MoveUp(0x10))
	require.NoError(t, c.MoveDown(0x10))
	require.NoError(t, c.MoveLeft(0x3F))
	require.NoError(t, c.MoveRight(0xFF)) // clamped to 0x3F
	require.NoError(t, c.MoveAxes(DirectionUpLeft, 0x20, 0x30))
	require.NoError(t, c.Stop())

	sent := m.SentFrames()
	require.Len(t, sent, 6)
	assert.Equal(t, MoveFrame(1, DirectionUp, 0x10, 0x10).Bytes(), sent[0])
	assert.Equal(t, MoveFrame(1, DirectionDown, 0x10, 0x10).Bytes(), sent[1])
	assert.Equal(t, MoveFrame(1, DirectionLeft, 0x3F, 0x3F).Bytes(), sent[2])
	assert.Equal(t, MoveFrame(1, DirectionRight, 0x3F, 0x3F).Bytes(), sent[3])
	assert.Equal(t, MoveFrame(1, DirectionUpLeft, 0x20, 0x30).Bytes(), sent[4])
	assert.Equal(t, StopFrame(1).Bytes(), sent[5])
}

func TestPresetAndAuxOperations(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m)

	assert.ErrorIs(t, c.SetPreset(0), ErrInvalidPreset)
	assert.ErrorIs(t, c.CallPreset(0), ErrInvalidPreset)
	assert.ErrorIs(t, c.ClearPreset(0), ErrInvalidPreset)

	require.NoError(t, c.SetPreset(9))
	require.NoError(t, c.CallPreset(9))
	require.NoError(t, c.ClearPreset(9))
	require.NoError(t, c.AuxOn(2))
	require.NoError(t, c.AuxOff(2))
	require.NoError(t, c.RemoteReset())

	sent := m.SentFrames()
	require.Len(t, sent, 6)
	assert.Equal(t, SetPresetFrame(1, 9).Bytes(), sent[0])
	assert.Equal(t, CallPresetFrame(1, 9).Bytes(), sent[1])
	assert.Equal(t, ClearPresetFrame(1, 9).Bytes(), sent[2])
	assert.Equal(t, AuxOnFrame(1, 2).Bytes(), sent[3])
	assert.Equal(t, AuxOffFrame(1, 2).Bytes(), sent[4])
	assert.Equal(t, RemoteResetFrame(1).Bytes(), sent[5])
}

func TestOpticalOperations(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m)

	require.NoError(t, c.ZoomIn())
	require.NoError(t, c.ZoomOut())
	require.NoError(t, c.FocusFar())
	require.NoError(t, c.FocusNear())
	require.NoError(t, c.IrisOpen())
	require.NoError(t, c.IrisClose())

	sent := m.SentFrames()
	require.Len(t, sent, 6)
	assert.Equal(t, ZoomInFrame(1).Bytes(), sent[0])
	assert.Equal(t, IrisCloseFrame(1).Bytes(), sent[5])
}

func TestSendAfterCloseFails(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	c := newTestController(t, m)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Stop(), ErrNotOpen)
	assert.Zero(t, c.QueryPanPosition())
}
