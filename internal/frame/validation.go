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

// IsCommandFrame reports whether buf is a well-formed 7-byte command
// frame: correct length, sync lead byte, and an exact checksum over the
// five addressed bytes. Command frames never carry the response-side
// checksum quirk, so no tolerance is applied here.
func IsCommandFrame(buf []byte) bool {
	if len(buf) != CommandLen || buf[0] != Sync {
		return false
	}
	return buf[CommandLen-1] == CalculateChecksum(buf[1:CommandLen-1])
}

// IsVendorResponse reports whether buf has the vendor 5-byte shape and a
// recognized position tag. Checksum acceptance is a separate concern;
// see ValidateChecksum.
func IsVendorResponse(buf []byte) bool {
	return len(buf) == VendorLen && IsPositionTag(buf[1])
}
