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
	"go.uber.org/zap"
)

// ZeroPoint is the absolute reading captured as the origin for
// relative coordinates. It is recorded during Open and replaced only
// by SetHome.
type ZeroPoint struct {
	PanDeg  float64
	TiltDeg float64
	RawPan  uint16
	RawTilt uint16
}

// PositionStatus carries per-axis validity for a reading. A failed
// query defaults to zero, so a zero reading alone cannot be trusted:
// the flags use the device's non-default-value heuristic to tell a
// real centered reading from a dropped sample.
type PositionStatus struct {
	PanValid  bool
	TiltValid bool
}

// RelativePosition is one absolute reading expressed against the zero
// point.
type RelativePosition struct {
	// Pan and Tilt are degrees relative to the zero point. Pan may be
	// negative when the head sits counterclockwise of home.
	Pan  float64
	Tilt float64
	// RawPan and RawTilt are the raw encoder deltas, signed because
	// the head can sit on either side of the zero reference.
	RawPan  int32
	RawTilt int32
	Status  PositionStatus
}

// queryAxis runs one query transaction and decodes the reply. Any
// failure (timeout, malformed frame, checksum mismatch, wrong tag) is
// logged and reported as not-ok; nothing propagates.
func (c *Controller) queryAxis(f CommandFrame, want ResponseKind) (uint16, float64, bool) {
	raw, err := c.transact(f, c.config.ReceiveTimeout)
	if err != nil {
		c.log.Warn("position query failed",
			zap.String("axis", want.String()),
			zap.Error(err))
		return 0, 0, false
	}

	resp, err := DecodeResponse(raw)
	if err != nil {
		c.log.Warn("position response malformed",
			zap.String("axis", want.String()),
			zap.String("bytes", formatHexBytes(raw)),
			zap.Error(err))
		return 0, 0, false
	}
	if resp.Kind != want {
		c.log.Warn("unexpected response kind",
			zap.String("axis", want.String()),
			zap.String("got", resp.Kind.String()),
			zap.String("bytes", formatHexBytes(raw)),
			zap.Error(ErrUnknownResponse))
		return 0, 0, false
	}
	if !resp.ChecksumOK {
		c.log.Warn("response checksum mismatch, sample discarded",
			zap.String("axis", want.String()),
			zap.String("bytes", formatHexBytes(raw)),
			zap.Error(ErrChecksumMismatch))
		return 0, 0, false
	}
	if resp.ChecksumQuirk {
		c.log.Debug("checksum accepted via firmware offset",
			zap.String("bytes", formatHexBytes(raw)))
	}
	return resp.RawValue, resp.Angle, true
}

// QueryPanPosition returns the absolute pan angle in degrees. On any
// error it logs a warning and returns 0.0 — a noisy line must never
// halt the control loop.
func (c *Controller) QueryPanPosition() float64 {
	_, angle, ok := c.queryAxis(QueryPanFrame(c.config.Address), ResponsePanPosition)
	if !ok {
		return 0.0
	}
	return angle
}

// QueryTiltPosition returns the raw encoder value and the absolute
// tilt angle in degrees. On any error it logs a warning and returns
// (0, 0.0).
func (c *Controller) QueryTiltPosition() (uint16, float64) {
	raw, angle, ok := c.queryAxis(QueryTiltFrame(c.config.Address), ResponseTiltPosition)
	if !ok {
		return 0, 0.0
	}
	return raw, angle
}

// QueryTiltAngle returns the absolute tilt angle alone, discarding the
// raw encoder value.
func (c *Controller) QueryTiltAngle() float64 {
	_, angle := c.QueryTiltPosition()
	return angle
}

// QueryPosition returns the absolute pan and tilt angles as one pair.
func (c *Controller) QueryPosition() (pan, tilt float64) {
	pan = c.QueryPanPosition()
	_, tilt = c.QueryTiltPosition()
	return pan, tilt
}

// RelativePosition queries both axes and expresses the result against
// the zero point. The validity flags distinguish a reading that is
// genuinely at zero from a query that failed and defaulted there.
func (c *Controller) RelativePosition() RelativePosition {
	rawPan, panAngle, panOK := c.queryAxis(QueryPanFrame(c.config.Address), ResponsePanPosition)
	if !panOK {
		rawPan, panAngle = 0, 0.0
	}
	rawTilt, tiltAngle := c.QueryTiltPosition()

	c.stateMu.RLock()
	zero := c.zero
	c.stateMu.RUnlock()

	return RelativePosition{
		Pan:     panAngle - zero.PanDeg,
		Tilt:    tiltAngle - zero.TiltDeg,
		RawPan:  int32(rawPan) - int32(zero.RawPan),
		RawTilt: int32(rawTilt) - int32(zero.RawTilt),
		Status: PositionStatus{
			PanValid:  panAngle != 0.0,
			TiltValid: rawTilt != 0 || tiltAngle != 0.0,
		},
	}
}

// SetHome re-captures the zero point from the current absolute
// reading. It is a pure read-then-store and is safe to call during
// motion; it is the only calibration mutator.
func (c *Controller) SetHome() ZeroPoint {
	zero := c.captureZero()

	c.stateMu.Lock()
	c.zero = zero
	c.stateMu.Unlock()

	c.log.Info("home position set",
		zap.Float64("pan", zero.PanDeg),
		zap.Float64("tilt", zero.TiltDeg))
	return zero
}

// ZeroPoint returns the current calibration origin.
func (c *Controller) ZeroPoint() ZeroPoint {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.zero
}

// captureZero reads both axes for use as a calibration origin. Failed
// queries contribute zero values, matching the fail-soft query
// contract.
func (c *Controller) captureZero() ZeroPoint {
	rawPan, panAngle, ok := c.queryAxis(QueryPanFrame(c.config.Address), ResponsePanPosition)
	if !ok {
		rawPan, panAngle = 0, 0.0
	}
	rawTilt, tiltAngle := c.QueryTiltPosition()

	return ZeroPoint{
		PanDeg:  panAngle,
		TiltDeg: tiltAngle,
		RawPan:  rawPan,
		RawTilt: rawTilt,
	}
}
