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
	"math"
	"time"

	"go.uber.org/zap"
)

// NormalizePan wraps any angle into the head's pan range [0,360).
func NormalizePan(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// ClampTilt bounds an angle to the head's mechanical tilt range
// [-90,90].
func ClampTilt(deg float64) float64 {
	switch {
	case deg > 90:
		return 90
	case deg < -90:
		return -90
	default:
		return deg
	}
}

// shortestPanDelta returns the signed smallest rotation from current
// to target in (-180,180], so a 350°→10° move reads as +20 rather
// than -340.
func shortestPanDelta(current, target float64) float64 {
	delta := math.Mod(target-current, 360)
	if delta > 180 {
		delta -= 360
	}
	if delta <= -180 {
		delta += 360
	}
	return delta
}

// AbsolutePan slews to an absolute pan angle. Negative angles wrap
// into [0,360). The command is sent once; use AbsolutePanWait to
// block until the encoder confirms arrival.
func (c *Controller) AbsolutePan(deg float64) error {
	return c.sendFrame(AbsolutePanFrame(c.config.Address, NormalizePan(deg)))
}

// AbsoluteTilt slews to an absolute tilt angle, clamped to [-90,90].
func (c *Controller) AbsoluteTilt(deg float64) error {
	return c.sendFrame(AbsoluteTiltFrame(c.config.Address, ClampTilt(deg)))
}

// AbsolutePanWait slews to an absolute pan angle and polls the encoder
// until the reading is within the configured tolerance of the target
// or the wait budget elapses. It returns the last observed angle; a
// timeout is logged, not an error. The wait cannot be cancelled —
// callers needing a faster abort should issue Stop directly and let
// the final poll run out.
func (c *Controller) AbsolutePanWait(deg float64) (float64, error) {
	target := NormalizePan(deg)
	if err := c.sendFrame(AbsolutePanFrame(c.config.Address, target)); err != nil {
		return 0, err
	}
	return c.waitForPan(target), nil
}

// AbsoluteTiltWait slews to an absolute tilt angle and polls until
// reached or timed out, returning the last observed angle.
func (c *Controller) AbsoluteTiltWait(deg float64) (float64, error) {
	target := ClampTilt(deg)
	if err := c.sendFrame(AbsoluteTiltFrame(c.config.Address, target)); err != nil {
		return 0, err
	}
	return c.waitForTilt(target), nil
}

func (c *Controller) waitForPan(target float64) float64 {
	first := c.QueryPanPosition()
	delta := shortestPanDelta(first, target)
	dir := DirectionRight
	if delta < 0 {
		dir = DirectionLeft
	}
	c.log.Debug("waiting for pan target",
		zap.Float64("target", target),
		zap.Float64("current", first),
		zap.String("direction", dir.String()))

	last := first
	deadline := time.Now().Add(c.config.WaitTimeout)
	for {
		if math.Abs(shortestPanDelta(last, target)) <= c.config.WaitTolerance {
			c.log.Debug("pan target reached",
				zap.Float64("target", target),
				zap.Float64("angle", last))
			return last
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(c.config.WaitPoll)
		last = c.QueryPanPosition()
	}

	c.log.Warn("pan wait timed out",
		zap.Float64("target", target),
		zap.Float64("last", last),
		zap.Duration("budget", c.config.WaitTimeout))
	return last
}

func (c *Controller) waitForTilt(target float64) float64 {
	last := c.QueryTiltAngle()
	deadline := time.Now().Add(c.config.WaitTimeout)
	for {
		if math.Abs(last-target) <= c.config.WaitTolerance {
			c.log.Debug("tilt target reached",
				zap.Float64("target", target),
				zap.Float64("angle", last))
			return last
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(c.config.WaitPoll)
		last = c.QueryTiltAngle()
	}

	c.log.Warn("tilt wait timed out",
		zap.Float64("target", target),
		zap.Float64("last", last),
		zap.Duration("budget", c.config.WaitTimeout))
	return last
}
