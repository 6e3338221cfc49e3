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

// Package simulator provides a wire-level pan-tilt head simulator and a
// pelcod.Transport backed by it.
//
// VirtualHead implements io.ReadWriter and models the device at the
// frame level: it parses command frames out of a byte stream, moves a
// simulated gimbal with real kinematics, and answers position queries
// in the vendor's five-byte response layout. Fault injection knobs
// reproduce the failure modes seen on real installations, including the
// off-by-one checksum some firmware revisions ship with.
package simulator

import (
	"bytes"
	"math"
	"time"

	pelcod "github.com/ptzkit/go-pelcod"
	"github.com/ptzkit/go-pelcod/internal/frame"
	"github.com/ptzkit/go-pelcod/internal/syncutil"
)

// Kinematics defaults. Rates are what the head does at full speed 0x3F;
// slower speed words scale linearly.
const (
	DefaultPanRate  = 20.0 // degrees per second
	DefaultTiltRate = 15.0
	DefaultTiltMin  = -90.0
	DefaultTiltMax  = 90.0
)

// responseLead is the byte real heads put in front of every response.
const responseLead = 0x00

// versionTag marks the firmware version reply.
const versionTag = 0x56

// HeadState is a snapshot of the simulated head.
type HeadState struct {
	Pan     float64 // heading in device degrees, [0,360)
	Tilt    float64 // elevation in signed degrees
	Moving  bool
	GuardOn bool
	Presets int
}

// FrameRecord is one command frame the head accepted.
type FrameRecord struct {
	At  time.Time
	Raw []byte
	Op  byte // cmd2 word
}

// motion is the head's current movement program. Continuous rates come
// from directional commands; targets come from absolute commands and
// preset calls.
type motion struct {
	panTarget  *float64
	tiltTarget *float64
	panRate    float64
	tiltRate   float64
}

// VirtualHead simulates a pan-tilt head at the wire protocol level. It
// implements io.ReadWriter so it can sit behind the simulator Transport
// or be driven directly in tests.
//
// Physics advance lazily: position is integrated up to the current
// clock reading whenever a frame arrives or state is inspected, so an
// injected clock makes motion fully deterministic.
type VirtualHead struct {
	now      func() time.Time
	presets  map[byte][2]float64
	aux      map[byte]bool
	counts   map[byte]int
	frames   []FrameRecord
	rxBuffer bytes.Buffer
	txBuffer bytes.Buffer
	mu       syncutil.Mutex

	last time.Time
	pan  float64
	tilt float64
	mot  motion

	address  byte
	panRate  float64
	tiltRate float64
	tiltMin  float64
	tiltMax  float64

	versionMajor byte
	versionMinor byte

	guard           bool
	hold            bool
	quirkChecksum   bool
	corruptNext     bool
	dropReplies     int
	truncateReplies int
}

// HeadOption customizes a VirtualHead.
type HeadOption func(*VirtualHead)

// WithAddress sets the bus address the head answers to. Frames for
// other addresses are silently ignored, like on a shared RS-485 line.
func WithAddress(address byte) HeadOption {
	return func(h *VirtualHead) { h.address = address }
}

// WithClock injects the time source used for motion integration.
func WithClock(now func() time.Time) HeadOption {
	return func(h *VirtualHead) {
		if now != nil {
			h.now = now
		}
	}
}

// WithRates sets the full-speed pan and tilt rates in degrees/second.
func WithRates(pan, tilt float64) HeadOption {
	return func(h *VirtualHead) {
		if pan > 0 {
			h.panRate = pan
		}
		if tilt > 0 {
			h.tiltRate = tilt
		}
	}
}

// WithTiltLimits sets the mechanical tilt stops.
func WithTiltLimits(minDeg, maxDeg float64) HeadOption {
	return func(h *VirtualHead) {
		if minDeg < maxDeg {
			h.tiltMin = minDeg
			h.tiltMax = maxDeg
		}
	}
}

// WithInitialPosition parks the head at the given pan and tilt.
func WithInitialPosition(pan, tilt float64) HeadOption {
	return func(h *VirtualHead) {
		h.pan = wrap360(pan)
		h.tilt = tilt
	}
}

// NewVirtualHead creates a simulated head at address 1, parked at
// pan 0, tilt 0.
func NewVirtualHead(opts ...HeadOption) *VirtualHead {
	h := &VirtualHead{
		now:          time.Now,
		address:      1,
		panRate:      DefaultPanRate,
		tiltRate:     DefaultTiltRate,
		tiltMin:      DefaultTiltMin,
		tiltMax:      DefaultTiltMax,
		versionMajor: 2,
		versionMinor: 7,
		presets:      make(map[byte][2]float64),
		aux:          make(map[byte]bool),
		counts:       make(map[byte]int),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.last = h.now()
	return h
}

// Write implements io.Writer, receiving bytes from the controller side.
// Complete frames are parsed out and executed; partial frames wait in
// the buffer for the rest of their bytes.
func (h *VirtualHead) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rxBuffer.Write(data)
	h.processReceived()
	return len(data), nil
}

// Read implements io.Reader, returning response bytes for the
// controller side. An empty transmit buffer reads as (0, nil), matching
// a serial port with nothing pending.
func (h *VirtualHead) Read(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := h.txBuffer.Read(buf)
	if err != nil {
		// bytes.Buffer only errors on empty, which is handled above.
		return n, nil
	}
	return n, nil
}

// processReceived drains complete frames from the receive buffer.
func (h *VirtualHead) processReceived() {
	for {
		data := h.rxBuffer.Bytes()
		start := bytes.IndexByte(data, frame.Sync)
		if start < 0 {
			// Line noise with no sync byte in it.
			h.rxBuffer.Reset()
			return
		}
		if start > 0 {
			h.rxBuffer.Next(start)
			data = h.rxBuffer.Bytes()
		}
		if len(data) < frame.CommandLen {
			return
		}

		f := data[:frame.CommandLen]
		if !frame.IsCommandFrame(f) {
			// Bad checksum or a sync byte inside other traffic. Step
			// past it and rescan.
			h.rxBuffer.Next(1)
			continue
		}

		raw := make([]byte, frame.CommandLen)
		copy(raw, f)
		h.rxBuffer.Next(frame.CommandLen)

		if raw[1] != h.address {
			// Another unit's traffic on the shared bus.
			continue
		}

		h.advance(h.now())
		h.frames = append(h.frames, FrameRecord{At: h.last, Raw: raw, Op: raw[3]})
		h.counts[raw[3]]++
		h.dispatch(raw[2], raw[3], raw[4], raw[5])
	}
}

// dispatch executes one accepted frame.
func (h *VirtualHead) dispatch(cmd1, cmd2, data1, data2 byte) {
	if cmd1 != 0 {
		// Focus-near, iris open and iris close ride in cmd1 and have
		// no feedback channel; counting the frame is all a real head's
		// observable behavior amounts to. Only the version probe
		// answers.
		if cmd1 == frame.Cmd1Version && cmd2 == frame.Cmd2Version {
			h.replyVersion()
		}
		return
	}

	switch cmd2 {
	case frame.CmdStop:
		h.mot = motion{}
	// Every movement word carries the complete motion state: a
	// single-axis command halts the other axis, like real firmware.
	case frame.CmdPanRight:
		h.mot = motion{panRate: h.scaledPanRate(data1)}
	case frame.CmdPanLeft:
		h.mot = motion{panRate: -h.scaledPanRate(data1)}
	case frame.CmdTiltUp:
		h.mot = motion{tiltRate: h.scaledTiltRate(data2)}
	case frame.CmdTiltDown:
		h.mot = motion{tiltRate: -h.scaledTiltRate(data2)}
	case frame.CmdRightUp:
		h.mot = motion{panRate: h.scaledPanRate(data1), tiltRate: h.scaledTiltRate(data2)}
	case frame.CmdRightDown:
		h.mot = motion{panRate: h.scaledPanRate(data1), tiltRate: -h.scaledTiltRate(data2)}
	case frame.CmdLeftUp:
		h.mot = motion{panRate: -h.scaledPanRate(data1), tiltRate: h.scaledTiltRate(data2)}
	case frame.CmdLeftDown:
		h.mot = motion{panRate: -h.scaledPanRate(data1), tiltRate: -h.scaledTiltRate(data2)}
	case frame.CmdAbsolutePan:
		target := pelcod.DecodePanAngle(frame.ExtractValue(data1, data2))
		h.mot.panRate = 0
		h.mot.panTarget = &target
	case frame.CmdAbsoluteTilt:
		target := clamp(pelcod.DecodeTiltAngle(frame.ExtractValue(data1, data2)), h.tiltMin, h.tiltMax)
		h.mot.tiltRate = 0
		h.mot.tiltTarget = &target
	case frame.CmdQueryPan:
		h.reply(frame.TagPanPosition, pelcod.EncodePanAngle(h.pan))
	case frame.CmdQueryTilt:
		h.reply(frame.TagTiltPosition, pelcod.EncodeTiltAngle(h.tilt))
	case frame.CmdSetPreset:
		h.setPreset(data2)
	case frame.CmdClearPreset:
		delete(h.presets, data2)
	case frame.CmdCallPreset:
		h.callPreset(data2)
	case frame.CmdAuxOn:
		h.aux[data2] = true
	case frame.CmdAuxOff:
		h.aux[data2] = false
	case frame.CmdRemoteReset:
		h.mot = motion{}
	case frame.CmdZoomIn, frame.CmdZoomOut, frame.CmdFocusFar:
		// Counted, nothing to move.
	}
}

func (h *VirtualHead) setPreset(id byte) {
	switch id {
	case frame.PresetZeroPan, frame.PresetZeroTilt:
		// Calibration markers. Real firmware latches its reference
		// here; position reads are already absolute in this model, so
		// the frame count is the observable effect.
	case frame.PresetGuard:
		h.guard = true
	case frame.PresetLineScanStart, frame.PresetLineScanEnd:
		// Scan bounds are firmware-internal; accept and count.
	default:
		h.presets[id] = [2]float64{h.pan, h.tilt}
	}
}

func (h *VirtualHead) callPreset(id byte) {
	switch id {
	case frame.PresetGuard:
		h.guard = false
	case frame.PresetCruiseStart, frame.PresetLineScanRun:
		// Tours run firmware-side; accept and count.
	default:
		if p, ok := h.presets[id]; ok {
			pan, tilt := p[0], p[1]
			h.mot = motion{panTarget: &pan, tiltTarget: &tilt}
		}
	}
}

// reply queues a five-byte position response, subject to the fault
// knobs.
func (h *VirtualHead) reply(tag byte, raw uint16) {
	if h.dropReplies != 0 {
		if h.dropReplies > 0 {
			h.dropReplies--
		}
		return
	}

	msb, lsb := frame.SplitValue(raw)
	sum := frame.CalculateChecksum([]byte{tag, msb, lsb})
	if h.quirkChecksum {
		sum++
	}
	if h.corruptNext {
		h.corruptNext = false
		sum += 2
	}

	resp := []byte{responseLead, tag, msb, lsb, sum}
	if h.truncateReplies > 0 && len(resp) > h.truncateReplies {
		resp = resp[:h.truncateReplies]
	}
	h.txBuffer.Write(resp)
}

func (h *VirtualHead) replyVersion() {
	if h.dropReplies != 0 {
		if h.dropReplies > 0 {
			h.dropReplies--
		}
		return
	}
	sum := frame.CalculateChecksum([]byte{versionTag, h.versionMajor, h.versionMinor})
	h.txBuffer.Write([]byte{responseLead, versionTag, h.versionMajor, h.versionMinor, sum})
}

// advance integrates motion up to t.
func (h *VirtualHead) advance(t time.Time) {
	dt := t.Sub(h.last).Seconds()
	if dt <= 0 {
		return
	}
	h.last = t
	if h.hold {
		return
	}

	if h.mot.panRate != 0 {
		h.pan = wrap360(h.pan + h.mot.panRate*dt)
	}
	if h.mot.tiltRate != 0 {
		h.tilt = clamp(h.tilt+h.mot.tiltRate*dt, h.tiltMin, h.tiltMax)
	}

	if h.mot.panTarget != nil {
		target := *h.mot.panTarget
		delta := shortestDelta(target - h.pan)
		step := h.panRate * dt
		if math.Abs(delta) <= step {
			h.pan = wrap360(target)
			h.mot.panTarget = nil
		} else {
			h.pan = wrap360(h.pan + math.Copysign(step, delta))
		}
	}
	if h.mot.tiltTarget != nil {
		target := *h.mot.tiltTarget
		delta := target - h.tilt
		step := h.tiltRate * dt
		if math.Abs(delta) <= step {
			h.tilt = target
			h.mot.tiltTarget = nil
		} else {
			h.tilt = clamp(h.tilt+math.Copysign(step, delta), h.tiltMin, h.tiltMax)
		}
	}
}

// Test setup and inspection

// Position returns the current pan and tilt, after integrating motion
// up to now.
func (h *VirtualHead) Position() (pan, tilt float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(h.now())
	return h.pan, h.tilt
}

// SetPosition teleports the head, cancelling any motion in progress.
func (h *VirtualHead) SetPosition(pan, tilt float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(h.now())
	h.pan = wrap360(pan)
	h.tilt = clamp(tilt, h.tiltMin, h.tiltMax)
	h.mot = motion{}
}

// State returns a snapshot of the head.
func (h *VirtualHead) State() HeadState {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(h.now())
	moving := h.mot.panRate != 0 || h.mot.tiltRate != 0 ||
		h.mot.panTarget != nil || h.mot.tiltTarget != nil
	return HeadState{
		Pan:     h.pan,
		Tilt:    h.tilt,
		Moving:  moving,
		GuardOn: h.guard,
		Presets: len(h.presets),
	}
}

// AuxState reports whether the given auxiliary output is on.
func (h *VirtualHead) AuxState(aux byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aux[aux]
}

// FrameCount returns how many accepted frames carried the given cmd2
// word.
func (h *VirtualHead) FrameCount(op byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[op]
}

// Frames returns copies of every accepted frame in arrival order.
func (h *VirtualHead) Frames() []FrameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]FrameRecord, len(h.frames))
	copy(out, h.frames)
	return out
}

// SetVersion sets the firmware version returned to the version probe.
func (h *VirtualHead) SetVersion(major, minor byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versionMajor = major
	h.versionMinor = minor
}

// Fault injection

// HoldPosition freezes the gimbal while still accepting commands, the
// signature of a stalled or obstructed head.
func (h *VirtualHead) HoldPosition(hold bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(h.now())
	h.hold = hold
}

// DropReplies makes the head swallow the next n query replies. A
// negative n drops every reply until reset.
func (h *VirtualHead) DropReplies(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropReplies = n
}

// InjectChecksumError corrupts the checksum of the next reply beyond
// what the tolerant validator accepts.
func (h *VirtualHead) InjectChecksumError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.corruptNext = true
}

// UseQuirkChecksum switches every reply to the off-by-one checksum
// variant some firmware revisions produce.
func (h *VirtualHead) UseQuirkChecksum(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quirkChecksum = on
}

// TruncateReplies cuts every reply to at most n bytes, forcing the
// partial-frame path on the controller side. Zero turns truncation off.
func (h *VirtualHead) TruncateReplies(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.truncateReplies = n
}

// Reset restores power-on state: parked at zero, no presets, no faults.
func (h *VirtualHead) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rxBuffer.Reset()
	h.txBuffer.Reset()
	h.pan = 0
	h.tilt = 0
	h.mot = motion{}
	h.presets = make(map[byte][2]float64)
	h.aux = make(map[byte]bool)
	h.counts = make(map[byte]int)
	h.frames = nil
	h.guard = false
	h.hold = false
	h.quirkChecksum = false
	h.corruptNext = false
	h.dropReplies = 0
	h.truncateReplies = 0
	h.last = h.now()
}

func (h *VirtualHead) scaledPanRate(speed byte) float64 {
	return scaleRate(speed, h.panRate)
}

func (h *VirtualHead) scaledTiltRate(speed byte) float64 {
	return scaleRate(speed, h.tiltRate)
}

func scaleRate(speed byte, fullRate float64) float64 {
	if speed > frame.MaxSpeed {
		speed = frame.MaxSpeed
	}
	return float64(speed) / float64(frame.MaxSpeed) * fullRate
}

func wrap360(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// shortestDelta folds a pan difference onto (-180,180] so slews take
// the short way around.
func shortestDelta(delta float64) float64 {
	m := math.Mod(delta, 360)
	if m > 180 {
		m -= 360
	}
	if m <= -180 {
		m += 360
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
