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

// Movement commands are fire-and-forget: the head never acknowledges
// them, so each is sent exactly once with no retries that could cause
// repeated motion. Motion continues until Stop or an opposing command.

// DefaultSpeed is the movement speed used by the single-argument
// helpers, mid-range on the 0x00–0x3F scale.
const DefaultSpeed byte = 0x20

// Move starts continuous motion in the given direction at one speed
// for both axes. Speeds above MaxSpeed are clamped.
func (c *Controller) Move(dir Direction, speed byte) error {
	return c.MoveAxes(dir, speed, speed)
}

// MoveAxes starts continuous motion with independent pan and tilt
// speeds, which only diagonal directions use both of.
func (c *Controller) MoveAxes(dir Direction, panSpeed, tiltSpeed byte) error {
	return c.sendFrame(MoveFrame(c.config.Address, dir, panSpeed, tiltSpeed))
}

// MoveUp tilts toward elevation.
func (c *Controller) MoveUp(speed byte) error {
	return c.Move(DirectionUp, speed)
}

// MoveDown tilts toward depression.
func (c *Controller) MoveDown(speed byte) error {
	return c.Move(DirectionDown, speed)
}

// MoveLeft pans counterclockwise.
func (c *Controller) MoveLeft(speed byte) error {
	return c.Move(DirectionLeft, speed)
}

// MoveRight pans clockwise.
func (c *Controller) MoveRight(speed byte) error {
	return c.Move(DirectionRight, speed)
}

// Stop halts motion on both axes. Callers wanting an immediate halt
// should invoke this directly rather than through a command queue.
func (c *Controller) Stop() error {
	return c.sendFrame(StopFrame(c.config.Address))
}
