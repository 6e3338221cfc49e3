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

// Package telemetry publishes periodic position updates for a
// pan-tilt head without ever letting a slow poll stall the stream.
//
// A Loop polls the controller on a fixed ticker and fans each reading
// out to subscribers. Ticks that land while a poll is still in flight
// republish the last known position flagged Estimated, so consumers
// always see a heartbeat even when the serial link crawls.
package telemetry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	pelcod "github.com/ptzkit/go-pelcod"
	"github.com/ptzkit/go-pelcod/internal/syncutil"
)

// Update is one published position sample.
type Update struct {
	// Position is the reading relative to the controller's zero point.
	Position pelcod.RelativePosition

	// Estimated marks an update that repeats the previous reading
	// because the poll for this tick had not completed yet.
	Estimated bool

	// At is when the update was published, Seq its position in the
	// stream. Seq starts at 1 and never repeats for one Loop.
	At  time.Time
	Seq uint64
}

// Metrics tracks operational counters for a Loop.
type Metrics struct {
	Polls     int64 // completed device polls
	Failures  int64 // polls where neither axis produced a valid reading
	Estimated int64 // degraded updates published while a poll was in flight
	Dropped   int64 // updates discarded because a subscriber was full
}

// Loop periodically polls a controller and publishes updates.
//
// The Loop owns only its worker goroutines, never the controller:
// callers stop the Loop before closing the controller underneath it.
type Loop struct {
	ctrl *pelcod.Controller
	cfg  Config
	log  *zap.Logger

	running  int32
	stopChan chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Bool

	mu      syncutil.Mutex
	subs    map[uint64]chan Update
	nextSub uint64
	last    Update

	seq       atomic.Uint64
	polls     int64
	failures  int64
	estimated int64
	dropped   int64
}

// NewLoop builds a telemetry loop over ctrl.
func NewLoop(ctrl *pelcod.Controller, cfg Config) *Loop {
	cfg = cfg.withDefaults()
	return &Loop{
		ctrl:     ctrl,
		cfg:      cfg,
		log:      cfg.Logger.Named("telemetry"),
		stopChan: make(chan struct{}, 1),
		subs:     make(map[uint64]chan Update),
	}
}

// Start launches the publish loop. The first poll happens immediately
// rather than one period in.
func (l *Loop) Start() error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return errors.New("telemetry loop already running")
	}
	l.wg.Add(1)
	go l.run()
	return nil
}

// Stop halts publishing and waits for the worker to exit. Subscriber
// channels stay open; callers discard them after Stop returns.
func (l *Loop) Stop() {
	if !atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		return
	}
	select {
	case l.stopChan <- struct{}{}:
	default:
	}
	l.wg.Wait()
}

// Updates registers a subscriber and returns its channel plus a cancel
// function. Sends never block: an update that finds the channel full
// is dropped and counted.
func (l *Loop) Updates() (<-chan Update, func()) {
	ch := make(chan Update, l.cfg.Buffer)

	l.mu.Lock()
	l.nextSub++
	id := l.nextSub
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
	return ch, cancel
}

// Last returns the most recently published update. The zero Update
// (Seq 0) means nothing has been published yet.
func (l *Loop) Last() Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// GetMetrics returns a snapshot of the loop counters.
func (l *Loop) GetMetrics() Metrics {
	return Metrics{
		Polls:     atomic.LoadInt64(&l.polls),
		Failures:  atomic.LoadInt64(&l.failures),
		Estimated: atomic.LoadInt64(&l.estimated),
		Dropped:   atomic.LoadInt64(&l.dropped),
	}
}

func (l *Loop) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	l.tick()
	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick either kicks off a poll or, when the previous poll is still on
// the wire, republishes the last reading as an estimate. Queries can
// outlast the period by an order of magnitude on a congested link, so
// the poll runs off the ticker goroutine.
func (l *Loop) tick() {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.publishEstimate()
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Store(false)
		l.poll()
	}()
}

func (l *Loop) poll() {
	pos := l.ctrl.RelativePosition()
	atomic.AddInt64(&l.polls, 1)
	if !pos.Status.PanValid && !pos.Status.TiltValid {
		atomic.AddInt64(&l.failures, 1)
		l.log.Warn("position poll returned no valid axis")
	}
	l.publish(Update{
		Position: pos,
		At:       time.Now(),
		Seq:      l.seq.Add(1),
	})
}

func (l *Loop) publishEstimate() {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()
	if last.Seq == 0 {
		// Nothing real published yet, nothing to estimate from.
		return
	}

	atomic.AddInt64(&l.estimated, 1)
	last.Estimated = true
	last.At = time.Now()
	last.Seq = l.seq.Add(1)
	l.publish(last)
}

func (l *Loop) publish(u Update) {
	l.mu.Lock()
	l.last = u
	targets := make([]chan Update, 0, len(l.subs))
	for _, ch := range l.subs {
		targets = append(targets, ch)
	}
	l.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- u:
		default:
			atomic.AddInt64(&l.dropped, 1)
		}
	}
}
