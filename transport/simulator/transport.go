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

package simulator

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	pelcod "github.com/ptzkit/go-pelcod"
)

// pollGranularity is how often Receive rechecks the head's transmit
// buffer while waiting out a timeout.
const pollGranularity = time.Millisecond

// receiveScratch bounds a Receive when the caller passes no limit.
const receiveScratch = 64

// Config carries simulator link settings.
type Config struct {
	// Latency is added to every Send, modelling line delay. Zero means
	// instantaneous delivery.
	Latency time.Duration
}

// Kind implements pelcod.Config.
func (Config) Kind() pelcod.Kind { return pelcod.KindSimulator }

// Transport adapts a VirtualHead to the pelcod.Transport interface, so
// the full controller stack can run against the simulated device.
type Transport struct {
	head    *VirtualHead
	mu      sync.Mutex
	latency time.Duration
	open    bool
}

// New creates a transport over head. A nil head gets a fresh default
// VirtualHead.
func New(head *VirtualHead) *Transport {
	if head == nil {
		head = NewVirtualHead()
	}
	return &Transport{head: head}
}

// Head returns the simulated device for test setup and inspection.
func (t *Transport) Head() *VirtualHead { return t.head }

// Kind implements pelcod.Transport.
func (*Transport) Kind() pelcod.Kind { return pelcod.KindSimulator }

// Open implements pelcod.Transport.
func (t *Transport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return pelcod.ErrAlreadyOpen
	}
	t.open = true
	return nil
}

// Close implements pelcod.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	return nil
}

// IsOpen implements pelcod.Transport.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Send delivers p to the head after the configured latency.
func (t *Transport) Send(p []byte) (int, error) {
	t.mu.Lock()
	open := t.open
	latency := t.latency
	t.mu.Unlock()

	if !open {
		return 0, pelcod.NewNotOpenError("send", "simulator")
	}
	if latency > 0 {
		time.Sleep(latency)
	}
	return t.head.Write(p)
}

// Receive reads up to maxLen bytes from the head, waiting at most
// timeout for something to appear.
func (t *Transport) Receive(maxLen int, timeout time.Duration) ([]byte, error) {
	if !t.IsOpen() {
		return nil, pelcod.NewNotOpenError("receive", "simulator")
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	buf := make([]byte, maxLen)
	deadline := time.Now().Add(timeout)
	for {
		n, _ := t.head.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			return out, nil
		}
		if !time.Now().Before(deadline) {
			return nil, pelcod.NewTimeoutError("receive", "simulator")
		}
		time.Sleep(pollGranularity)
	}
}

// ReceiveUntil reads byte-at-a-time until delim is seen, maxLen bytes
// have accumulated, or timeout expires. Accumulated bytes are returned
// in every case; only an expired deadline with nothing read is an
// error.
func (t *Transport) ReceiveUntil(delim []byte, maxLen int, timeout time.Duration) ([]byte, error) {
	if !t.IsOpen() {
		return nil, pelcod.NewNotOpenError("receive", "simulator")
	}
	if maxLen <= 0 {
		maxLen = receiveScratch
	}

	acc := make([]byte, 0, maxLen)
	one := make([]byte, 1)
	deadline := time.Now().Add(timeout)
	for {
		n, _ := t.head.Read(one)
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
			return nil, pelcod.NewTimeoutError("receive", "simulator")
		}
		time.Sleep(pollGranularity)
	}
	return acc, nil
}

// Configure implements pelcod.Transport.
func (t *Transport) Configure(cfg pelcod.Config) error {
	next, ok := cfg.(Config)
	if !ok {
		return pelcod.NewInvalidConfigError("configure", "simulator",
			fmt.Errorf("config kind %q, want %q", cfg.Kind(), pelcod.KindSimulator))
	}
	t.mu.Lock()
	t.latency = next.Latency
	t.mu.Unlock()
	return nil
}

// Ensure Transport implements pelcod.Transport.
var _ pelcod.Transport = (*Transport)(nil)
