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

// Frame markers
const (
	Sync = 0xFF // lead byte of every standard command/response frame
)

// Frame size limits
const (
	CommandLen  = 7 // sync + addr + cmd1 + cmd2 + data1 + data2 + checksum
	StandardLen = 7 // documented response framing, same layout as commands
	VendorLen   = 5 // short response framing used by this head family
)

// Vendor response tags - identify which axis a 5-byte position reply is for
const (
	TagPanPosition  = 0x59
	TagTiltPosition = 0x5B
)

// Raw angle encoding limits (0.01 degree units)
const (
	RawPanModulus  = 36000 // pan raw values wrap at 360.00 degrees
	RawTiltPivot   = 18000 // tilt raw values above this encode positive angles
	RawTiltCeiling = 36000 // tilt raw value for 0.00 degrees
)
