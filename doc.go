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

// Package pelcod drives motorized pan-tilt heads speaking a Pelco-D
// variant with a vendor-specific short response framing.
//
// The package is layered the way the hardware is wired. A Transport
// moves raw bytes over a serial line (transport/serial), a TCP device
// server (transport/tcp) or an in-process simulated head
// (transport/simulator). The frame codec in this package translates
// between semantic operations and the 7-byte command frames / 5-byte
// vendor responses on the wire, tolerating the off-by-one checksum
// some firmware revisions produce. A Controller owns one transport,
// calibrates a software zero point at Open, and exposes movement,
// absolute positioning with optional blocking waits, presets, optical
// control and fail-soft position queries. A CommandQueue serializes
// commands from concurrent callers so the head never sees overlapping
// frames, and the telemetry package polls position on a fixed cadence
// for subscribers.
//
// Quick start against the simulator:
//
//	tr := simulator.New(nil)
//	ctrl, err := pelcod.New(tr)
//	if err != nil { ... }
//	if err := ctrl.Open(ctx); err != nil { ... }
//	defer ctrl.Close()
//
//	_ = ctrl.MoveRight(0x20)
//	angle, _ := ctrl.AbsolutePanWait(90)
//	pos := ctrl.RelativePosition()
//
// The protocol has no response multiplexing: every query must read its
// own reply before the next frame goes out. All wire transactions run
// under an internal lock, so Controller methods are safe to call from
// multiple goroutines; Open, Close and Transport.Configure are not,
// and require the queue and telemetry loop to be quiesced first.
package pelcod
