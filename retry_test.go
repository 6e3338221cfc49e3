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

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return NewPortAccessError("open", "/dev/ttyUSB0", errors.New("busy"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := NewInvalidConfigError("open", "p", errors.New("no such port"))
	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return NewTimeoutError("receive", "p")
	})
	assert.ErrorIs(t, err, ErrReceiveTimeout)
	assert.Equal(t, 3, calls)
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), &RetryConfig{}, func() error {
		calls++
		return NewTimeoutError("receive", "p")
	})
	assert.ErrorIs(t, err, ErrReceiveTimeout)
	assert.Equal(t, 1, calls)
}

func TestRetryNilConfigUsesDefault(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), nil, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(5), func() error {
		calls++
		cancel()
		return NewTimeoutError("receive", "p")
	})
	// The sleep between attempts observes the cancelled context and
	// surfaces the last transport error.
	assert.ErrorIs(t, err, ErrReceiveTimeout)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancelledBeforeFirstAttempt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDefaultOpenRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultOpenRetryConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.InEpsilon(t, 1.0, cfg.BackoffMultiplier, 1e-9)
	assert.Zero(t, cfg.Jitter)
}

func TestJitteredBounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	assert.Equal(t, base, jittered(base, 0))

	for range 32 {
		got := jittered(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
}
