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

// ExpectedLength reports the total frame length implied by the first byte
// of a response: a sync byte opens a 7-byte standard frame, anything else
// opens the vendor 5-byte framing. Readers use this to size the remainder
// of a partial read.
func ExpectedLength(lead byte) int {
	if lead == Sync {
		return StandardLen
	}
	return VendorLen
}

// ExtractValue assembles the big-endian 16-bit payload carried in a
// frame's two data bytes.
func ExtractValue(msb, lsb byte) uint16 {
	return uint16(msb)<<8 | uint16(lsb)
}

// SplitValue is the inverse of ExtractValue.
func SplitValue(v uint16) (msb, lsb byte) {
	return byte(v >> 8), byte(v)
}

// IsPositionTag reports whether tag identifies one of the two axis
// position replies.
func IsPositionTag(tag byte) bool {
	return tag == TagPanPosition || tag == TagTiltPosition
}
