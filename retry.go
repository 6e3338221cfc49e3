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
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (0 = no retry)
	MaxAttempts int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which the backoff increases
	BackoffMultiplier float64
	// Jitter adds randomness to backoff to avoid lockstep retries
	Jitter float64
	// RetryTimeout is the overall timeout for all retry attempts
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the retry configuration used for ordinary
// command exchanges.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// DefaultOpenRetryConfig returns the policy transports apply while opening
// a port: three attempts spaced one second apart, no growth and no jitter.
// Only access/busy failures are retryable (see NewPortAccessError); a
// missing device fails the first attempt outright.
func DefaultOpenRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 1.0,
		Jitter:            0,
		RetryTimeout:      10 * time.Second,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// RetryWithConfig executes retryFunc under config, sleeping between
// attempts and honoring ctx. Non-retryable errors (per IsRetryable) abort
// immediately; on exhaustion the last error is returned.
func RetryWithConfig(ctx context.Context, config *RetryConfig, retryFunc RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return retryFunc()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", ctx.Err())
		default:
		}

		err := retryFunc()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == config.MaxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, jittered(backoff, config.Jitter)); err != nil {
			return lastErr
		}
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jittered stretches a backoff by up to factor*base using crypto/rand so
// several controllers sharing a bus do not retry in lockstep.
func jittered(base time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return base
	}
	var randBytes [8]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		return base
	}
	randFloat := float64(binary.LittleEndian.Uint64(randBytes[:])) / float64(1<<64)
	return base + time.Duration(randFloat*factor*float64(base))
}
