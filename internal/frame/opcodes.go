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

package frame

// Command words, carried in cmd2 with cmd1 zero unless noted.
const (
	CmdStop         byte = 0x00
	CmdPanRight     byte = 0x02
	CmdSetPreset    byte = 0x03
	CmdPanLeft      byte = 0x04
	CmdClearPreset  byte = 0x05
	CmdCallPreset   byte = 0x07
	CmdTiltUp       byte = 0x08
	CmdAuxOn        byte = 0x09
	CmdRightUp      byte = 0x0A
	CmdAuxOff       byte = 0x0B
	CmdLeftUp       byte = 0x0C
	CmdRemoteReset  byte = 0x0F
	CmdTiltDown     byte = 0x10
	CmdRightDown    byte = 0x12
	CmdLeftDown     byte = 0x14
	CmdZoomIn       byte = 0x20
	CmdZoomOut      byte = 0x40
	CmdAbsolutePan  byte = 0x4B
	CmdAbsoluteTilt byte = 0x4D
	CmdQueryPan     byte = 0x51
	CmdQueryTilt    byte = 0x53
	CmdFocusFar     byte = 0x80
)

// Operations that spill into cmd1.
const (
	Cmd1FocusNear byte = 0x01
	Cmd1IrisOpen  byte = 0x02
	Cmd1IrisClose byte = 0x04
	Cmd1Version   byte = 0xD2
	Cmd2Version   byte = 0x01
)

// Reserved preset identifiers. Setting or calling these triggers
// built-in firmware behaviors instead of storing a position.
const (
	PresetLineScanStart byte = 0x5C
	PresetLineScanEnd   byte = 0x5D
	PresetGuard         byte = 0x5E
	PresetCruiseStart   byte = 0x62
	PresetLineScanRun   byte = 0x63
	PresetZeroPan       byte = 0x67
	PresetZeroTilt      byte = 0x68
)

// MaxSpeed is the highest speed value movement words accept.
const MaxSpeed byte = 0x3F
