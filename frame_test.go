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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFrameBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame CommandFrame
		want  []byte
	}{
		{
			name:  "absolute pan 90 degrees",
			frame: AbsolutePanFrame(1, 90),
			want:  []byte{0xFF, 0x01, 0x00, 0x4B, 0x23, 0x28, 0x97},
		},
		{
			name:  "absolute tilt 30 degrees",
			frame: AbsoluteTiltFrame(1, 30),
			want:  []byte{0xFF, 0x01, 0x00, 0x4D, 0x80, 0xE8, 0xB6},
		},
		{
			name:  "stop",
			frame: StopFrame(1),
			want:  []byte{0xFF, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01},
		},
		{
			name:  "pan query",
			frame: QueryPanFrame(1),
			want:  []byte{0xFF, 0x01, 0x00, 0x51, 0x00, 0x00, 0x52},
		},
		{
			name:  "tilt query address 2",
			frame: QueryTiltFrame(2),
			want:  []byte{0xFF, 0x02, 0x00, 0x53, 0x00, 0x00, 0x55},
		},
		{
			name:  "checksum wraps modulo 256",
			frame: CommandFrame{Address: 0xFF, Cmd1: 0xFF, Cmd2: 0xFF, Data1: 0xFF, Data2: 0xFF},
			want:  []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.frame.Bytes())
		})
	}
}

func TestCommandFrameString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "FF 01 00 4B 23 28 97", AbsolutePanFrame(1, 90).String())
}

func TestDecodeResponseVendor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       []byte
		kind      ResponseKind
		rawValue  uint16
		angle     float64
		sumOK     bool
		sumQuirk  bool
	}{
		{
			name:     "pan position 90 degrees",
			raw:      []byte{0x00, 0x59, 0x23, 0x28, 0xA4},
			kind:     ResponsePanPosition,
			rawValue: 9000,
			angle:    90.0,
			sumOK:    true,
		},
		{
			name:     "pan position with firmware offset checksum",
			raw:      []byte{0x00, 0x59, 0x23, 0x28, 0xA5},
			kind:     ResponsePanPosition,
			rawValue: 9000,
			angle:    90.0,
			sumOK:    true,
			sumQuirk: true,
		},
		{
			name:     "tilt position 30 degrees elevation",
			raw:      []byte{0x00, 0x5B, 0x80, 0xE8, 0xC3},
			kind:     ResponseTiltPosition,
			rawValue: 33000,
			angle:    30.0,
			sumOK:    true,
		},
		{
			name:     "tilt position 15 degrees depression",
			raw:      []byte{0x00, 0x5B, 0x05, 0xDC, 0x3C},
			kind:     ResponseTiltPosition,
			rawValue: 1500,
			angle:    -15.0,
			sumOK:    true,
		},
		{
			name:     "checksum off by two rejected",
			raw:      []byte{0x00, 0x59, 0x23, 0x28, 0xA6},
			kind:     ResponsePanPosition,
			rawValue: 9000,
			angle:    90.0,
			sumOK:    false,
		},
		{
			name:     "unknown tag still parses",
			raw:      []byte{0x00, 0x42, 0x01, 0x02, 0x45},
			kind:     ResponseUnknown,
			rawValue: 0x0102,
			angle:    0,
			sumOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := DecodeResponse(tt.raw)
			require.NoError(t, err)

			assert.Equal(t, FramingVendor, resp.Framing)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.rawValue, resp.RawValue)
			assert.InDelta(t, tt.angle, resp.Angle, 0.001)
			assert.Equal(t, tt.sumOK, resp.ChecksumOK)
			assert.Equal(t, tt.sumQuirk, resp.ChecksumQuirk)
		})
	}
}

func TestDecodeResponseStandard(t *testing.T) {
	t.Parallel()

	// A command echo: same layout the controller transmits.
	raw := []byte{0xFF, 0x01, 0x00, 0x4B, 0x23, 0x28, 0x97}
	resp, err := DecodeResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, FramingStandard, resp.Framing)
	assert.Equal(t, ResponseStandard, resp.Kind)
	assert.Equal(t, byte(0x01), resp.Address)
	assert.Equal(t, byte(0x00), resp.Cmd1)
	assert.Equal(t, byte(0x4B), resp.Cmd2)
	assert.Equal(t, uint16(9000), resp.RawValue)
	assert.True(t, resp.ChecksumOK)
	assert.False(t, resp.ChecksumQuirk)
}

func TestDecodeResponseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "one byte", raw: []byte{0x00}},
		{name: "four bytes", raw: []byte{0x00, 0x59, 0x23, 0x28}},
		{name: "six bytes", raw: []byte{0xFF, 0x01, 0x00, 0x4B, 0x23, 0x28}},
		{name: "seven bytes without sync lead", raw: []byte{0x00, 0x01, 0x00, 0x4B, 0x23, 0x28, 0x97}},
		{name: "eight bytes", raw: []byte{0xFF, 0x01, 0x00, 0x4B, 0x23, 0x28, 0x97, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := DecodeResponse(tt.raw)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrMalformedFrame)
			assert.Nil(t, resp)
		})
	}
}

func TestPanAngleCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deg  float64
		raw  uint16
	}{
		{name: "zero", deg: 0, raw: 0},
		{name: "quarter turn", deg: 90, raw: 9000},
		{name: "half turn", deg: 180, raw: 18000},
		{name: "near full turn", deg: 359.99, raw: 35999},
		{name: "full turn wraps to zero", deg: 360, raw: 0},
		{name: "over a turn wraps", deg: 450, raw: 9000},
		{name: "negative wraps positive", deg: -90, raw: 27000},
		{name: "centidegree resolution", deg: 123.45, raw: 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.raw, EncodePanAngle(tt.deg))
		})
	}
}

func TestTiltAngleCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deg  float64
		raw  uint16
	}{
		{name: "horizontal", deg: 0, raw: 36000},
		{name: "elevation 30", deg: 30, raw: 33000},
		{name: "elevation 90", deg: 90, raw: 27000},
		{name: "depression 15", deg: -15, raw: 1500},
		{name: "depression 90", deg: -90, raw: 9000},
		{name: "small elevation", deg: 0.01, raw: 35999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.raw, EncodeTiltAngle(tt.deg))
		})
	}
}

func TestAngleRoundTrips(t *testing.T) {
	t.Parallel()

	t.Run("pan survives encode decode at centidegree steps", func(t *testing.T) {
		t.Parallel()
		for deg := 0.0; deg < 360.0; deg += 7.77 {
			got := DecodePanAngle(EncodePanAngle(deg))
			assert.InDelta(t, deg, got, 0.005, "pan %.2f", deg)
		}
	})

	t.Run("tilt survives encode decode across the range", func(t *testing.T) {
		t.Parallel()
		for deg := -90.0; deg <= 90.0; deg += 3.33 {
			got := DecodeTiltAngle(EncodeTiltAngle(deg))
			assert.InDelta(t, deg, got, 0.005, "tilt %.2f", deg)
		}
	})

	t.Run("decoded tilt sign matches hemisphere", func(t *testing.T) {
		t.Parallel()
		assert.Positive(t, DecodeTiltAngle(33000))
		assert.Negative(t, DecodeTiltAngle(1500))
		assert.InDelta(t, 0.0, DecodeTiltAngle(36000), 0.001)
	})
}

func TestStringers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "standard", FramingStandard.String())
	assert.Equal(t, "vendor", FramingVendor.String())
	assert.Equal(t, "framing(9)", Framing(9).String())

	assert.Equal(t, "unknown", ResponseUnknown.String())
	assert.Equal(t, "pan-position", ResponsePanPosition.String())
	assert.Equal(t, "tilt-position", ResponseTiltPosition.String())
	assert.Equal(t, "standard", ResponseStandard.String())
	assert.Equal(t, "response(42)", ResponseKind(42).String())
}

func TestEncodePanAngleRounding(t *testing.T) {
	t.Parallel()

	// Encoding rounds to the nearest centidegree rather than truncating.
	assert.Equal(t, uint16(9000), EncodePanAngle(90.004))
	assert.Equal(t, uint16(9001), EncodePanAngle(90.006))

	// Rounding at the wrap boundary lands on zero, not 36000.
	assert.Equal(t, uint16(0), EncodePanAngle(359.999))
	assert.Less(t, EncodePanAngle(math.Nextafter(360, 0)), uint16(36000))
}
