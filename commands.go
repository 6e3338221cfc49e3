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
	"fmt"

	"github.com/ptzkit/go-pelcod/internal/frame"
)

// Direction names a movement axis combination for continuous motion.
type Direction int

const (
	// DirectionStop halts both axes.
	DirectionStop Direction = iota
	// DirectionUp tilts toward elevation.
	DirectionUp
	// DirectionDown tilts toward depression.
	DirectionDown
	// DirectionLeft pans counterclockwise.
	DirectionLeft
	// DirectionRight pans clockwise.
	DirectionRight
	// DirectionUpLeft combines elevation with counterclockwise pan.
	DirectionUpLeft
	// DirectionUpRight combines elevation with clockwise pan.
	DirectionUpRight
	// DirectionDownLeft combines depression with counterclockwise pan.
	DirectionDownLeft
	// DirectionDownRight combines depression with clockwise pan.
	DirectionDownRight
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirectionStop:
		return "stop"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUpLeft:
		return "up-left"
	case DirectionUpRight:
		return "up-right"
	case DirectionDownLeft:
		return "down-left"
	case DirectionDownRight:
		return "down-right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MaxSpeed is the highest usable movement speed. Larger values are
// clamped before encoding.
const MaxSpeed = frame.MaxSpeed

// ClampSpeed bounds a movement speed to the range the wire format
// accepts.
func ClampSpeed(speed byte) byte {
	if speed > frame.MaxSpeed {
		return frame.MaxSpeed
	}
	return speed
}

// StopFrame builds the all-zero frame that halts both axes.
func StopFrame(address byte) CommandFrame {
	return CommandFrame{Address: address}
}

// MoveFrame builds a continuous-motion frame. Horizontal directions
// use panSpeed, vertical directions use tiltSpeed, diagonals use both.
// Speeds are clamped to MaxSpeed; DirectionStop yields the stop frame.
func MoveFrame(address byte, dir Direction, panSpeed, tiltSpeed byte) CommandFrame {
	panSpeed = ClampSpeed(panSpeed)
	tiltSpeed = ClampSpeed(tiltSpeed)

	f := CommandFrame{Address: address}
	switch dir {
	case DirectionRight:
		f.Cmd2, f.Data1 = frame.CmdPanRight, panSpeed
	case DirectionLeft:
		f.Cmd2, f.Data1 = frame.CmdPanLeft, panSpeed
	case DirectionUp:
		f.Cmd2, f.Data2 = frame.CmdTiltUp, tiltSpeed
	case DirectionDown:
		f.Cmd2, f.Data2 = frame.CmdTiltDown, tiltSpeed
	case DirectionUpRight:
		f.Cmd2, f.Data1, f.Data2 = frame.CmdRightUp, panSpeed, tiltSpeed
	case DirectionUpLeft:
		f.Cmd2, f.Data1, f.Data2 = frame.CmdLeftUp, panSpeed, tiltSpeed
	case DirectionDownRight:
		f.Cmd2, f.Data1, f.Data2 = frame.CmdRightDown, panSpeed, tiltSpeed
	case DirectionDownLeft:
		f.Cmd2, f.Data1, f.Data2 = frame.CmdLeftDown, panSpeed, tiltSpeed
	case DirectionStop:
	}
	return f
}

// AbsolutePanFrame builds a slew to the given pan angle. Any angle is
// accepted; encoding wraps it into [0,360).
func AbsolutePanFrame(address byte, deg float64) CommandFrame {
	msb, lsb := frame.SplitValue(EncodePanAngle(deg))
	return CommandFrame{Address: address, Cmd2: frame.CmdAbsolutePan, Data1: msb, Data2: lsb}
}

// AbsoluteTiltFrame builds a slew to the given tilt angle. Range
// checking is the caller's concern; the encoding itself is total.
func AbsoluteTiltFrame(address byte, deg float64) CommandFrame {
	msb, lsb := frame.SplitValue(EncodeTiltAngle(deg))
	return CommandFrame{Address: address, Cmd2: frame.CmdAbsoluteTilt, Data1: msb, Data2: lsb}
}

// QueryPanFrame builds a pan position query.
func QueryPanFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdQueryPan}
}

// QueryTiltFrame builds a tilt position query.
func QueryTiltFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdQueryTilt}
}

// SetPresetFrame stores the current position under the given preset
// identifier. Reserved identifiers trigger firmware behaviors instead;
// see the Preset* constants in internal/frame.
func SetPresetFrame(address, id byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdSetPreset, Data2: id}
}

// ClearPresetFrame erases a stored preset.
func ClearPresetFrame(address, id byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdClearPreset, Data2: id}
}

// CallPresetFrame moves to a stored preset.
func CallPresetFrame(address, id byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdCallPreset, Data2: id}
}

// AuxOnFrame switches an auxiliary output on.
func AuxOnFrame(address, aux byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdAuxOn, Data2: aux}
}

// AuxOffFrame switches an auxiliary output off.
func AuxOffFrame(address, aux byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdAuxOff, Data2: aux}
}

// RemoteResetFrame restarts the head's controller board.
func RemoteResetFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdRemoteReset}
}

// ZoomInFrame starts a zoom-in.
func ZoomInFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdZoomIn}
}

// ZoomOutFrame starts a zoom-out.
func ZoomOutFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdZoomOut}
}

// FocusFarFrame starts a far-focus adjustment.
func FocusFarFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd2: frame.CmdFocusFar}
}

// FocusNearFrame starts a near-focus adjustment.
func FocusNearFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd1: frame.Cmd1FocusNear}
}

// IrisOpenFrame opens the iris.
func IrisOpenFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd1: frame.Cmd1IrisOpen}
}

// IrisCloseFrame closes the iris.
func IrisCloseFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd1: frame.Cmd1IrisClose}
}

// ZeroPanFrame declares the current pan position as the device's zero
// reference. The firmware maps this onto a reserved preset.
func ZeroPanFrame(address byte) CommandFrame {
	return SetPresetFrame(address, frame.PresetZeroPan)
}

// ZeroTiltFrame declares the current tilt position as the device's
// zero reference.
func ZeroTiltFrame(address byte) CommandFrame {
	return SetPresetFrame(address, frame.PresetZeroTilt)
}

// VersionQueryFrame asks the head for its firmware version. Not every
// firmware answers it.
func VersionQueryFrame(address byte) CommandFrame {
	return CommandFrame{Address: address, Cmd1: frame.Cmd1Version, Cmd2: frame.Cmd2Version}
}
