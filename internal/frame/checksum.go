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

// CalculateChecksum computes the checksum for a data buffer
// This is the sum of all bytes truncated to eight bits; command frames
// checksum everything after the sync byte, vendor responses everything
// after the lead byte
func CalculateChecksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// ValidateChecksum reports whether got is an acceptable checksum for data.
// Deployed heads sometimes report the sum plus one; both values are
// accepted because the off-by-one replies carry correct position data.
func ValidateChecksum(data []byte, got byte) bool {
	want := CalculateChecksum(data)
	return got == want || got == want+1
}

// IsQuirkChecksum reports whether got matched only through the plus-one
// firmware quirk. Callers use this to log the quirk without discarding
// the sample.
func IsQuirkChecksum(data []byte, got byte) bool {
	return got == CalculateChecksum(data)+1
}
