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

// Optical commands follow the movement contract: fire-and-forget,
// motion continues until Stop.

// ZoomIn starts zooming toward telephoto.
func (c *Controller) ZoomIn() error {
	return c.sendFrame(ZoomInFrame(c.config.Address))
}

// ZoomOut starts zooming toward wide angle.
func (c *Controller) ZoomOut() error {
	return c.sendFrame(ZoomOutFrame(c.config.Address))
}

// FocusFar starts shifting focus toward infinity.
func (c *Controller) FocusFar() error {
	return c.sendFrame(FocusFarFrame(c.config.Address))
}

// FocusNear starts shifting focus toward the near limit.
func (c *Controller) FocusNear() error {
	return c.sendFrame(FocusNearFrame(c.config.Address))
}

// IrisOpen opens the iris.
func (c *Controller) IrisOpen() error {
	return c.sendFrame(IrisOpenFrame(c.config.Address))
}

// IrisClose closes the iris.
func (c *Controller) IrisClose() error {
	return c.sendFrame(IrisCloseFrame(c.config.Address))
}
