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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ptzkit/go-pelcod/internal/syncutil"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("command queue is closed")

// Command is one operation executed against the Controller by the
// queue worker.
type Command func(*Controller) error

type queuedCommand struct {
	enqueuedAt time.Time
	op         Command
	done       func(error)
}

// QueueMetrics tracks operational counters for a CommandQueue.
type QueueMetrics struct {
	Executed int64 // commands run to completion, failed or not
	Failed   int64 // commands that returned an error or panicked
	Dropped  int64 // pending commands discarded by Close
	Pending  int   // commands waiting at snapshot time
}

// CommandQueue totally orders device-mutating operations from
// concurrent callers. A single worker drains the FIFO one entry at a
// time, so at most one command is ever on the transport; Enqueue only
// appends and never blocks the caller on device I/O.
//
// Stop is deliberately exempt: for an immediate halt call Stop, which
// bypasses everything already waiting in line.
type CommandQueue struct {
	ctrl *Controller
	log  *zap.Logger

	mu      syncutil.Mutex
	pending []queuedCommand

	notify   chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
	closed   atomic.Bool

	executed int64
	failed   int64
	dropped  int64
}

// NewCommandQueue creates a queue in front of the controller. Call
// Start to launch the worker; commands enqueued earlier wait until
// then.
func NewCommandQueue(ctrl *Controller) *CommandQueue {
	return &CommandQueue{
		ctrl:     ctrl,
		log:      ctrl.log.Named("queue"),
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (q *CommandQueue) Start() {
	if q.closed.Load() {
		return
	}
	if q.running.CompareAndSwap(false, true) {
		q.wg.Add(1)
		go q.worker()
	}
}

// Enqueue appends op to the queue and returns immediately. The
// optional done callback runs on the worker goroutine after the
// command completes, with its error.
func (q *CommandQueue) Enqueue(op Command, done func(error)) error {
	if op == nil {
		return errors.New("nil command")
	}

	// The closed check and the append share the critical section so a
	// concurrent Close cannot slip its final drop between them and
	// strand the entry.
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, queuedCommand{
		op:         op,
		done:       done,
		enqueuedAt: time.Now(),
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Stop halts the head immediately, bypassing the queue. Anything
// already in line still runs afterwards; callers wanting a clean slate
// should Close and rebuild.
func (q *CommandQueue) Stop() error {
	return q.ctrl.Stop()
}

// Close stops the worker after the in-flight command finishes, then
// drops and logs whatever was still pending. Close is idempotent.
func (q *CommandQueue) Close() error {
	q.mu.Lock()
	swapped := q.closed.CompareAndSwap(false, true)
	q.mu.Unlock()
	if !swapped {
		return nil
	}
	select {
	case q.stopChan <- struct{}{}:
	default:
	}
	q.wg.Wait()
	// The worker drops pending entries on its way out; this covers a
	// queue that was never started.
	q.dropPending()
	return nil
}

// GetMetrics returns a snapshot of the queue counters.
func (q *CommandQueue) GetMetrics() QueueMetrics {
	q.mu.Lock()
	pending := len(q.pending)
	q.mu.Unlock()
	return QueueMetrics{
		Executed: atomic.LoadInt64(&q.executed),
		Failed:   atomic.LoadInt64(&q.failed),
		Dropped:  atomic.LoadInt64(&q.dropped),
		Pending:  pending,
	}
}

// Len returns the number of commands waiting to run.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *CommandQueue) worker() {
	defer func() {
		q.running.Store(false)
		q.wg.Done()
	}()

	for {
		select {
		case <-q.stopChan:
			q.dropPending()
			return
		case <-q.notify:
			q.drainPending()
		}
	}
}

// drainPending runs queued commands until the list empties or Close
// is observed.
func (q *CommandQueue) drainPending() {
	for !q.closed.Load() {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		entry := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.execute(entry)
	}
}

// execute runs one command, isolating its failure so the worker always
// continues with the next entry.
func (q *CommandQueue) execute(entry queuedCommand) {
	err := q.runGuarded(entry.op)
	atomic.AddInt64(&q.executed, 1)
	if err != nil {
		atomic.AddInt64(&q.failed, 1)
		q.log.Warn("queued command failed",
			zap.Duration("waited", time.Since(entry.enqueuedAt)),
			zap.Error(err))
	}
	if entry.done != nil {
		entry.done(err)
	}
}

func (q *CommandQueue) runGuarded(op Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return op(q.ctrl)
}

func (q *CommandQueue) dropPending() {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(dropped) == 0 {
		return
	}
	atomic.AddInt64(&q.dropped, int64(len(dropped)))
	q.log.Warn("dropping pending commands", zap.Int("count", len(dropped)))
	for _, entry := range dropped {
		if entry.done != nil {
			entry.done(ErrQueueClosed)
		}
	}
}
