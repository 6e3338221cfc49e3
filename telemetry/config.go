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

package telemetry

import (
	"time"

	"go.uber.org/zap"
)

// DefaultPeriod is the publish cadence when Config leaves Period zero.
// 100ms tracks a head moving at full speed to within a few degrees.
const DefaultPeriod = 100 * time.Millisecond

// DefaultBuffer is the channel depth handed out by Loop.Updates.
const DefaultBuffer = 8

// Config tunes a telemetry Loop.
type Config struct {
	// Period is the interval between published updates. Zero selects
	// DefaultPeriod.
	Period time.Duration

	// Buffer is the subscription channel depth for Updates. Zero
	// selects DefaultBuffer.
	Buffer int

	// Logger receives loop diagnostics. Nil selects zap.NewNop.
	Logger *zap.Logger
}

// DefaultConfig returns the stock loop configuration.
func DefaultConfig() Config {
	return Config{
		Period: DefaultPeriod,
		Buffer: DefaultBuffer,
	}
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
