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
	"math"

	"github.com/ptzkit/go-pelcod/internal/frame"
)

// Framing identifies which of the two wire layouts a response uses.
type Framing int

const (
	// FramingStandard is the 7-byte 0xFF-led layout shared with
	// command frames.
	FramingStandard Framing = iota
	// FramingVendor is the 5-byte position-report layout this device
	// family answers queries with.
	FramingVendor
)

// String implements fmt.Stringer.
func (f Framing) String() string {
	switch f {
	case FramingStandard:
		return "standard"
	case FramingVendor:
		return "vendor"
	default:
		return fmt.Sprintf("framing(%d)", int(f))
	}
}

// ResponseKind classifies a decoded response.
type ResponseKind int

const (
	// ResponseUnknown is a frame that parsed structurally but carries
	// no recognized tag.
	ResponseUnknown ResponseKind = iota
	// ResponsePanPosition is a vendor frame tagged 0x59.
	ResponsePanPosition
	// ResponseTiltPosition is a vendor frame tagged 0x5B.
	ResponseTiltPosition
	// ResponseStandard is a full 7-byte frame, typically a command
	// echo from the head.
	ResponseStandard
)

// String implements fmt.Stringer.
func (k ResponseKind) String() string {
	switch k {
	case ResponseUnknown:
		return "unknown"
	case ResponsePanPosition:
		return "pan-position"
	case ResponseTiltPosition:
		return "tilt-position"
	case ResponseStandard:
		return "standard"
	default:
		return fmt.Sprintf("response(%d)", int(k))
	}
}

// CommandFrame is one outbound operation awaiting transmission. Build
// it through the command constructors; the checksum is derived, never
// stored.
type CommandFrame struct {
	Address byte
	Cmd1    byte
	Cmd2    byte
	Data1   byte
	Data2   byte
}

// Checksum returns the modulo-256 sum of the five payload bytes. The
// sync byte is excluded.
func (f CommandFrame) Checksum() byte {
	return frame.CalculateChecksum([]byte{f.Address, f.Cmd1, f.Cmd2, f.Data1, f.Data2})
}

// Bytes serializes the frame into its 7-byte wire form.
func (f CommandFrame) Bytes() []byte {
	return []byte{frame.Sync, f.Address, f.Cmd1, f.Cmd2, f.Data1, f.Data2, f.Checksum()}
}

// String renders the wire form as spaced hex, matching trace output.
func (f CommandFrame) String() string {
	return fmt.Sprintf("% X", f.Bytes())
}

// Response is a decoded inbound frame. Checksum failures do not reject
// the frame: ChecksumOK is reported and the caller decides whether the
// sample is usable.
type Response struct {
	Raw []byte

	Framing Framing
	Kind    ResponseKind

	// Standard framing fields; zero for vendor frames.
	Address byte
	Cmd1    byte
	Cmd2    byte

	// Vendor framing fields; zero for standard frames.
	Lead byte
	Tag  byte

	Data1    byte
	Data2    byte
	Checksum byte

	// ChecksumOK is true when the trailing byte matches the payload
	// sum exactly or via the accepted +1 offset. ChecksumQuirk marks
	// the +1 case.
	ChecksumOK    bool
	ChecksumQuirk bool

	// RawValue is the big-endian 16-bit value from data1,data2.
	// Angle is its decoded form in degrees for position kinds; zero
	// otherwise.
	RawValue uint16
	Angle    float64
}

// DecodeResponse parses buf into a typed Response. Layout is picked by
// length: 5 bytes is vendor framing, 7 bytes with a 0xFF lead is
// standard framing, and anything else fails with ErrMalformedFrame.
// Unrecognized vendor tags decode to ResponseUnknown without error.
func DecodeResponse(buf []byte) (*Response, error) {
	switch {
	case len(buf) == frame.VendorLen:
		return decodeVendor(buf), nil
	case len(buf) == frame.StandardLen && buf[0] == frame.Sync:
		return decodeStandard(buf), nil
	case len(buf) == 0:
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %d bytes with lead 0x%02X", ErrMalformedFrame, len(buf), buf[0])
	}
}

func decodeVendor(buf []byte) *Response {
	payload := buf[1:4]
	r := &Response{
		Raw:           buf,
		Framing:       FramingVendor,
		Lead:          buf[0],
		Tag:           buf[1],
		Data1:         buf[2],
		Data2:         buf[3],
		Checksum:      buf[4],
		ChecksumOK:    frame.ValidateChecksum(payload, buf[4]),
		ChecksumQuirk: frame.IsQuirkChecksum(payload, buf[4]),
		RawValue:      frame.ExtractValue(buf[2], buf[3]),
	}
	switch r.Tag {
	case frame.TagPanPosition:
		r.Kind = ResponsePanPosition
		r.Angle = DecodePanAngle(r.RawValue)
	case frame.TagTiltPosition:
		r.Kind = ResponseTiltPosition
		r.Angle = DecodeTiltAngle(r.RawValue)
	default:
		r.Kind = ResponseUnknown
	}
	return r
}

func decodeStandard(buf []byte) *Response {
	payload := buf[1:6]
	return &Response{
		Raw:           buf,
		Framing:       FramingStandard,
		Kind:          ResponseStandard,
		Address:       buf[1],
		Cmd1:          buf[2],
		Cmd2:          buf[3],
		Data1:         buf[4],
		Data2:         buf[5],
		Checksum:      buf[6],
		ChecksumOK:    frame.ValidateChecksum(payload, buf[6]),
		ChecksumQuirk: frame.IsQuirkChecksum(payload, buf[6]),
		RawValue:      frame.ExtractValue(buf[4], buf[5]),
	}
}

// EncodePanAngle converts degrees to the device's centidegree raw
// form, wrapping into [0,36000).
func EncodePanAngle(deg float64) uint16 {
	raw := int(math.Round(deg*100)) % frame.RawPanModulus
	if raw < 0 {
		raw += frame.RawPanModulus
	}
	return uint16(raw)
}

// DecodePanAngle converts a raw pan reading back to degrees in
// [0,360).
func DecodePanAngle(raw uint16) float64 {
	return float64(raw) / 100
}

// EncodeTiltAngle converts degrees to the device's raw tilt form.
// Elevation counts down from 36000 and depression counts up from
// zero, so horizontal encodes as 36000.
func EncodeTiltAngle(deg float64) uint16 {
	if deg >= 0 {
		return uint16(frame.RawTiltCeiling - int(math.Round(deg*100)))
	}
	return uint16(math.Round(-deg * 100))
}

// DecodeTiltAngle converts a raw tilt reading back to signed degrees.
// Values above the pivot are elevation, values at or below it are
// depression.
func DecodeTiltAngle(raw uint16) float64 {
	if raw > frame.RawTiltPivot {
		return float64(frame.RawTiltCeiling-int(raw)) / 100
	}
	return -float64(raw) / 100
}
