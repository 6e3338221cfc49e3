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

package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	pelcod "github.com/ptzkit/go-pelcod"
)

// Soak target envelope. Kept inside typical mechanical limits so the
// test never parks a real head against its stops.
const (
	soakPanMin  = -170.0
	soakPanMax  = 170.0
	soakTiltMin = -40.0
	soakTiltMax = 40.0

	// soakPassTolerance is the settle error that still counts as a
	// pass: the wait tolerance plus encoder granularity.
	soakPassTolerance = 0.5
)

// SoakCycleResult records one positioning round trip.
type SoakCycleResult struct {
	Cycle       int           `json:"cycle"`
	TargetPan   float64       `json:"target_pan"`
	SettledPan  float64       `json:"settled_pan"`
	PanError    float64       `json:"pan_error"`
	TargetTilt  float64       `json:"target_tilt"`
	SettledTilt float64       `json:"settled_tilt"`
	TiltError   float64       `json:"tilt_error"`
	Duration    time.Duration `json:"duration_ns"`
	Err         string        `json:"error,omitempty"`
	Passed      bool          `json:"passed"`
}

// SoakReport is the JSON document written when a soak run has
// failures.
type SoakReport struct {
	Timestamp    time.Time         `json:"timestamp"`
	Transport    string            `json:"transport"`
	Address      uint              `json:"address"`
	Cycles       int               `json:"cycles"`
	Passed       int               `json:"passed"`
	Failed       int               `json:"failed"`
	MaxPanError  float64           `json:"max_pan_error"`
	MaxTiltError float64           `json:"max_tilt_error"`
	Results      []SoakCycleResult `json:"results"`
}

func printSoakBanner(cycles int) {
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Println("                         Pan-Tilt Positioning Soak Test")
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("Cycles: %d  Pan range: %.0f..%.0f  Tilt range: %.0f..%.0f\n",
		cycles, soakPanMin, soakPanMax, soakTiltMin, soakTiltMax)
}

// runSoakMode drives random absolute moves through a command queue and
// measures how accurately the head settles.
func runSoakMode(ctx context.Context, ctrl *pelcod.Controller, cfg *config) error {
	printSoakBanner(cfg.cycles)

	queue := pelcod.NewCommandQueue(ctrl)
	queue.Start()
	defer func() {
		if err := queue.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close queue: %v\n", err)
		}
	}()

	results := make([]SoakCycleResult, 0, cfg.cycles)
	for i := 1; i <= cfg.cycles; i++ {
		if err := ctx.Err(); err != nil {
			_, _ = fmt.Println("\nSoak interrupted.")
			break
		}
		results = append(results, runSoakCycle(queue, i))
	}

	report := summarizeSoak(results, cfg)
	printSoakSummary(report)

	if report.Failed > 0 {
		filename, err := writeSoakReport(report)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to write soak report: %v\n", err)
		} else {
			_, _ = fmt.Printf("Soak report written: %s\n", filename)
		}
		return fmt.Errorf("soak test failed %d of %d cycles", report.Failed, len(results))
	}
	return nil
}

// runSoakCycle queues one pan+tilt round trip and waits for it to
// finish. The queue serializes it against anything else talking to the
// head.
func runSoakCycle(queue *pelcod.CommandQueue, cycle int) SoakCycleResult {
	result := SoakCycleResult{
		Cycle:      cycle,
		TargetPan:  randomAngle(soakPanMin, soakPanMax),
		TargetTilt: randomAngle(soakTiltMin, soakTiltMax),
	}

	_, _ = fmt.Printf("  [%3d] pan %+8.2f tilt %+7.2f ... ", cycle, result.TargetPan, result.TargetTilt)

	started := time.Now()
	done := make(chan error, 1)
	err := queue.Enqueue(func(c *pelcod.Controller) error {
		settledPan, panErr := c.AbsolutePanWait(result.TargetPan)
		result.SettledPan = settledPan
		if panErr != nil {
			return fmt.Errorf("pan: %w", panErr)
		}
		settledTilt, tiltErr := c.AbsoluteTiltWait(result.TargetTilt)
		result.SettledTilt = settledTilt
		if tiltErr != nil {
			return fmt.Errorf("tilt: %w", tiltErr)
		}
		return nil
	}, func(opErr error) { done <- opErr })
	if err == nil {
		err = <-done
	}

	result.Duration = time.Since(started)
	result.PanError = math.Abs(shortestPanError(result.SettledPan - result.TargetPan))
	result.TiltError = math.Abs(result.SettledTilt - result.TargetTilt)
	result.Passed = err == nil &&
		result.PanError <= soakPassTolerance &&
		result.TiltError <= soakPassTolerance
	if err != nil {
		result.Err = err.Error()
	}

	if result.Passed {
		_, _ = fmt.Printf("OK   err=(%.2f, %.2f) %s\n",
			result.PanError, result.TiltError, result.Duration.Round(10*time.Millisecond))
	} else {
		_, _ = fmt.Printf("FAIL err=(%.2f, %.2f): %s\n",
			result.PanError, result.TiltError, result.Err)
	}
	return result
}

func summarizeSoak(results []SoakCycleResult, cfg *config) *SoakReport {
	report := &SoakReport{
		Timestamp: time.Now(),
		Transport: cfg.transport,
		Address:   cfg.address,
		Cycles:    len(results),
		Results:   results,
	}
	for _, r := range results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		if r.PanError > report.MaxPanError {
			report.MaxPanError = r.PanError
		}
		if r.TiltError > report.MaxTiltError {
			report.MaxTiltError = r.TiltError
		}
	}
	return report
}

func printSoakSummary(report *SoakReport) {
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("Overall: %d PASS, %d FAIL  max error pan=%.2f tilt=%.2f\n",
		report.Passed, report.Failed, report.MaxPanError, report.MaxTiltError)
	_, _ = fmt.Println("================================================================================")
}

func writeSoakReport(report *SoakReport) (string, error) {
	filename := fmt.Sprintf("soak_report_%s.json", report.Timestamp.Format("20060102_150405"))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling soak report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("writing soak report: %w", err)
	}
	return filename, nil
}

// randomAngle returns a uniform angle in [lo, hi]. Crypto-grade
// randomness is overkill here but avoids seeding bookkeeping.
func randomAngle(lo, hi float64) float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	u := binary.BigEndian.Uint64(b[:])
	frac := float64(u>>11) / float64(1<<53)
	return lo + frac*(hi-lo)
}

// shortestPanError folds a pan difference onto (-180,180] so wraparound
// never counts as a full-circle miss.
func shortestPanError(delta float64) float64 {
	m := math.Mod(delta, 360)
	if m > 180 {
		m -= 360
	}
	if m <= -180 {
		m += 360
	}
	return m
}
