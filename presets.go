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

// Presets are stored inside the head, not in this library; nothing
// here survives a firmware reset. Identifiers in the 0x5C–0x68 band
// are reserved by the firmware for tours, guard and zeroing — the
// named methods below drive those behaviors.

// SetPreset stores the current position under the given identifier.
// Identifier 0 is rejected; the firmware treats it as a no-op slot.
func (c *Controller) SetPreset(id byte) error {
	if id == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPreset)
	}
	return c.sendFrame(SetPresetFrame(c.config.Address, id))
}

// ClearPreset erases a stored preset.
func (c *Controller) ClearPreset(id byte) error {
	if id == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPreset)
	}
	return c.sendFrame(ClearPresetFrame(c.config.Address, id))
}

// CallPreset moves to a stored preset.
func (c *Controller) CallPreset(id byte) error {
	if id == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPreset)
	}
	return c.sendFrame(CallPresetFrame(c.config.Address, id))
}

// StartCruise begins the head's built-in cruise tour over its stored
// presets.
func (c *Controller) StartCruise() error {
	return c.sendFrame(CallPresetFrame(c.config.Address, frame.PresetCruiseStart))
}

// SetLineScanStart marks the current pan position as the line-scan
// start point.
func (c *Controller) SetLineScanStart() error {
	return c.sendFrame(SetPresetFrame(c.config.Address, frame.PresetLineScanStart))
}

// SetLineScanEnd marks the current pan position as the line-scan end
// point.
func (c *Controller) SetLineScanEnd() error {
	return c.sendFrame(SetPresetFrame(c.config.Address, frame.PresetLineScanEnd))
}

// RunLineScan starts sweeping between the stored line-scan points.
func (c *Controller) RunLineScan() error {
	return c.sendFrame(CallPresetFrame(c.config.Address, frame.PresetLineScanRun))
}

// EnableGuard arms the guard position, which the head returns to after
// a period of inactivity.
func (c *Controller) EnableGuard() error {
	return c.sendFrame(SetPresetFrame(c.config.Address, frame.PresetGuard))
}

// DisableGuard disarms the guard position.
func (c *Controller) DisableGuard() error {
	return c.sendFrame(CallPresetFrame(c.config.Address, frame.PresetGuard))
}

// AuxOn switches an auxiliary relay output on.
func (c *Controller) AuxOn(aux byte) error {
	return c.sendFrame(AuxOnFrame(c.config.Address, aux))
}

// AuxOff switches an auxiliary relay output off.
func (c *Controller) AuxOff(aux byte) error {
	return c.sendFrame(AuxOffFrame(c.config.Address, aux))
}

// RemoteReset restarts the head's controller board. The head drops off
// the line for several seconds and loses its zero reference; callers
// should Close and re-Open afterwards.
func (c *Controller) RemoteReset() error {
	return c.sendFrame(RemoteResetFrame(c.config.Address))
}
