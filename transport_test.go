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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panReply90 is the vendor response for pan raw 9000 (90.00 degrees).
var panReply90 = []byte{0x00, 0x59, 0x23, 0x28, 0xA4}

func TestMockTransportLifecycle(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	assert.Equal(t, KindMock, m.Kind())
	assert.True(t, m.IsOpen())

	// Opening an open transport is rejected, like the real backends.
	assert.ErrorIs(t, m.Open(context.Background()), ErrAlreadyOpen)

	require.NoError(t, m.Close())
	assert.False(t, m.IsOpen())
	require.NoError(t, m.Open(context.Background()))
	assert.True(t, m.IsOpen())
}

func TestMockTransportSendRequiresOpen(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.Close())

	_, err := m.Send(QueryPanFrame(1).Bytes())
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = m.Receive(8, time.Millisecond)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestMockTransportScriptedResponse(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.SetResponse(0x51, panReply90)

	n, err := m.Send(QueryPanFrame(1).Bytes())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 1, m.GetCallCount(0x51))

	// Short reads: the stream hands out at most maxLen bytes per call.
	first, err := m.Receive(1, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, first)

	rest, err := m.Receive(10, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, panReply90[1:], rest)

	// Stream drained: the next read times out.
	_, err = m.Receive(10, time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestMockTransportErrorInjection(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	injected := NewTransportWriteError("send", "mock", errors.New("line down"))
	m.SetError(0x51, injected)

	_, err := m.Send(QueryPanFrame(1).Bytes())
	assert.ErrorIs(t, err, ErrTransportWrite)

	m.ClearError(0x51)
	_, err = m.Send(QueryPanFrame(1).Bytes())
	assert.NoError(t, err)

	m.SetReceiveError(NewTransportReadError("receive", "mock", errors.New("noise")))
	m.QueueResponse(panReply90)
	_, err = m.Receive(8, time.Millisecond)
	assert.ErrorIs(t, err, ErrTransportRead)

	m.SetReceiveError(nil)
	got, err := m.Receive(8, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, panReply90, got)
}

func TestMockTransportReceiveUntil(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.QueueResponse([]byte{0x00, 0x59, 0x23, 0x28, 0xA4, 0x00, 0x5B})

	got, err := m.ReceiveUntil([]byte{0xA4}, 16, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, panReply90, got)

	// Delimiter absent: falls back to draining what is pending.
	got, err = m.ReceiveUntil([]byte{0xFF}, 16, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x5B}, got)
}

func TestMockTransportFailOpen(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	m.FailOpen(NewPortAccessError("open", "mock", errors.New("busy")), 2)

	assert.ErrorIs(t, m.Open(context.Background()), ErrPortAccess)
	assert.ErrorIs(t, m.Open(context.Background()), ErrPortAccess)
	assert.NoError(t, m.Open(context.Background()))
	assert.True(t, m.IsOpen())
}

func TestMockTransportOpenHonorsContext(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Open(ctx), context.Canceled)
}

func TestMockTransportSentFramesOrder(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	frames := []CommandFrame{
		StopFrame(1),
		QueryPanFrame(1),
		AbsolutePanFrame(1, 90),
	}
	for _, f := range frames {
		_, err := m.Send(f.Bytes())
		require.NoError(t, err)
	}

	sent := m.SentFrames()
	require.Len(t, sent, 3)
	for i, f := range frames {
		assert.Equal(t, f.Bytes(), sent[i])
	}
}

func TestMockTransportConfigureAndReset(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.Configure(mockConfig{}))
	assert.Equal(t, KindMock, m.LastConfig().Kind())

	m.SetResponse(0x51, panReply90)
	_, err := m.Send(QueryPanFrame(1).Bytes())
	require.NoError(t, err)

	m.Reset()
	assert.True(t, m.IsOpen())
	assert.Empty(t, m.SentFrames())
	assert.Equal(t, 0, m.GetCallCount(0x51))
	_, err = m.Receive(8, time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

type mockConfig struct{}

func (mockConfig) Kind() Kind { return KindMock }
