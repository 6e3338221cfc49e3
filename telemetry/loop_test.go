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

package telemetry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pelcod "github.com/ptzkit/go-pelcod"
	"github.com/ptzkit/go-pelcod/telemetry"
)

// Vendor replies: pan 90.00 degrees, tilt +30.00 degrees.
var (
	panReply  = []byte{0x00, 0x59, 0x23, 0x28, 0xA4}
	tiltReply = []byte{0x00, 0x5B, 0x80, 0xE8, 0xC3}
)

func newLoopFixture(t *testing.T, m *pelcod.MockTransport, cfg telemetry.Config) *telemetry.Loop {
	t.Helper()
	ctrl, err := pelcod.New(m,
		pelcod.WithReceiveTimeout(20*time.Millisecond),
		pelcod.WithFlushTimeout(time.Millisecond),
	)
	require.NoError(t, err)
	return telemetry.NewLoop(ctrl, cfg)
}

func TestLoopPublishesPeriodicUpdates(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport()
	m.SetResponse(0x51, panReply)
	m.SetResponse(0x53, tiltReply)

	loop := newLoopFixture(t, m, telemetry.Config{Period: 5 * time.Millisecond})
	updates, cancel := loop.Updates()
	defer cancel()

	require.NoError(t, loop.Start())
	defer loop.Stop()

	var got []telemetry.Update
	deadline := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case u := <-updates:
			got = append(got, u)
		case <-deadline:
			t.Fatalf("received only %d updates before deadline", len(got))
		}
	}

	var lastSeq uint64
	for _, u := range got {
		assert.Greater(t, u.Seq, lastSeq, "sequence numbers increase")
		lastSeq = u.Seq
		assert.InDelta(t, 90.0, u.Position.Pan, 0.001)
		assert.InDelta(t, 30.0, u.Position.Tilt, 0.001)
		assert.True(t, u.Position.Status.PanValid)
		assert.True(t, u.Position.Status.TiltValid)
	}

	assert.GreaterOrEqual(t, loop.GetMetrics().Polls, int64(1))
	assert.Equal(t, lastSeq, loop.Last().Seq)
}

func TestLoopDegradesToEstimatesUnderSlowTransport(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport()
	m.SetResponse(0x51, panReply)
	m.SetResponse(0x53, tiltReply)
	// Each poll needs two transactions; 30ms per send makes a poll
	// outlast many 10ms ticks.
	m.SetDelay(30 * time.Millisecond)

	loop := newLoopFixture(t, m, telemetry.Config{Period: 10 * time.Millisecond, Buffer: 64})
	updates, cancel := loop.Updates()
	defer cancel()

	require.NoError(t, loop.Start())

	var real, estimated int
	deadline := time.After(3 * time.Second)
	for estimated == 0 || real < 2 {
		select {
		case u := <-updates:
			if u.Estimated {
				estimated++
				// Estimates repeat the last good reading.
				assert.InDelta(t, 90.0, u.Position.Pan, 0.001)
			} else {
				real++
			}
		case <-deadline:
			t.Fatalf("real=%d estimated=%d before deadline", real, estimated)
		}
	}
	loop.Stop()

	metrics := loop.GetMetrics()
	assert.GreaterOrEqual(t, metrics.Polls, int64(2))
	assert.GreaterOrEqual(t, metrics.Estimated, int64(1))
}

func TestLoopFlagsFailedPolls(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport() // silent head: every query times out

	loop := newLoopFixture(t, m, telemetry.Config{Period: 5 * time.Millisecond})
	updates, cancel := loop.Updates()
	defer cancel()

	require.NoError(t, loop.Start())
	defer loop.Stop()

	select {
	case u := <-updates:
		assert.False(t, u.Position.Status.PanValid)
		assert.False(t, u.Position.Status.TiltValid)
	case <-time.After(2 * time.Second):
		t.Fatal("no update from a silent head")
	}

	assert.Eventually(t, func() bool {
		return loop.GetMetrics().Failures >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoopDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport()
	m.SetResponse(0x51, panReply)
	m.SetResponse(0x53, tiltReply)

	loop := newLoopFixture(t, m, telemetry.Config{Period: 2 * time.Millisecond, Buffer: 1})
	_, cancel := loop.Updates() // never read
	defer cancel()

	require.NoError(t, loop.Start())
	defer loop.Stop()

	assert.Eventually(t, func() bool {
		return loop.GetMetrics().Dropped >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoopStartStopDiscipline(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport()
	loop := newLoopFixture(t, m, telemetry.Config{Period: 5 * time.Millisecond})

	require.NoError(t, loop.Start())
	assert.Error(t, loop.Start(), "second Start is rejected")

	loop.Stop()
	loop.Stop() // idempotent

	// A stopped loop can be restarted.
	require.NoError(t, loop.Start())
	loop.Stop()
}

func TestLoopSubscriberCancel(t *testing.T) {
	t.Parallel()

	m := pelcod.NewMockTransport()
	m.SetResponse(0x51, panReply)
	m.SetResponse(0x53, tiltReply)

	loop := newLoopFixture(t, m, telemetry.Config{Period: 2 * time.Millisecond})
	updates, cancel := loop.Updates()

	require.NoError(t, loop.Start())
	defer loop.Stop()

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no update before cancel")
	}
	cancel()

	// After cancel the channel stops filling; drain whatever raced in.
	time.Sleep(20 * time.Millisecond)
	for len(updates) > 0 {
		<-updates
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, updates)
}
