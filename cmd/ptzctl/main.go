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

// ptzctl drives a pan-tilt head from the command line: one-shot
// positioning, continuous position monitoring, and a soak mode that
// hammers the head with absolute moves and reports accuracy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	pelcod "github.com/ptzkit/go-pelcod"
	"github.com/ptzkit/go-pelcod/internal/logkit"
	"github.com/ptzkit/go-pelcod/telemetry"
	"github.com/ptzkit/go-pelcod/transport/serial"
	"github.com/ptzkit/go-pelcod/transport/simulator"
	"github.com/ptzkit/go-pelcod/transport/tcp"
)

type config struct {
	transport string
	port      string
	host      string
	logLevel  string
	logFile   string
	panArg    string
	tiltArg   string
	baud      int
	tcpPort   int
	cycles    int
	address   uint
	listPorts bool
	monitor   bool
	soak      bool
}

// Package-level flag variables
var (
	flagTransport = flag.String("transport", "serial", "Link type: serial, tcp or sim")
	flagPort      = flag.String("port", "", "Serial device path, e.g. /dev/ttyUSB0")
	flagBaud      = flag.Int("baud", serial.DefaultBaudRate, "Serial baud rate")
	flagHost      = flag.String("host", "", "Device server host for tcp transport")
	flagTCPPort   = flag.Int("tcpport", tcp.DefaultPort, "Device server TCP port")
	flagAddress   = flag.Uint("address", 1, "Head address on the bus (1-255)")
	flagLogLevel  = flag.String("loglevel", "info", "Log level: debug, info, warn, error")
	flagLogFile   = flag.String("logfile", "", "Also log to this file, with rotation")
	flagListPorts = flag.Bool("listports", false, "List serial ports and exit")
	flagMonitor   = flag.Bool("monitor", false, "Continuously print position updates")
	flagSoak      = flag.Bool("soak", false, "Run the positioning soak test")
	flagCycles    = flag.Int("cycles", 10, "Soak test cycles")
	flagPan       = flag.String("pan", "", "Move to this absolute pan angle and wait")
	flagTilt      = flag.String("tilt", "", "Move to this absolute tilt angle and wait")
)

func parseConfig() *config {
	return &config{
		transport: strings.ToLower(*flagTransport),
		port:      *flagPort,
		baud:      *flagBaud,
		host:      *flagHost,
		tcpPort:   *flagTCPPort,
		address:   *flagAddress,
		logLevel:  *flagLogLevel,
		logFile:   *flagLogFile,
		listPorts: *flagListPorts,
		monitor:   *flagMonitor,
		soak:      *flagSoak,
		cycles:    *flagCycles,
		panArg:    *flagPan,
		tiltArg:   *flagTilt,
	}
}

// newTransport builds the configured transport backend.
func newTransport(cfg *config, log *zap.Logger) (pelcod.Transport, error) {
	switch cfg.transport {
	case "serial":
		if cfg.port == "" {
			return nil, errors.New("serial transport needs -port (try -listports)")
		}
		tr, err := serial.New(serial.Config{Port: cfg.port, BaudRate: cfg.baud},
			serial.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("creating serial transport: %w", err)
		}
		return tr, nil
	case "tcp":
		if cfg.host == "" {
			return nil, errors.New("tcp transport needs -host")
		}
		tr, err := tcp.New(tcp.Config{Host: cfg.host, Port: cfg.tcpPort},
			tcp.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("creating tcp transport: %w", err)
		}
		return tr, nil
	case "sim":
		return simulator.New(simulator.NewVirtualHead(
			simulator.WithAddress(byte(cfg.address)),
		)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.transport)
	}
}

func printPorts() error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Println("No serial ports found.")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Println(p)
	}
	return nil
}

func run(ctx context.Context, cfg *config, log *zap.Logger) error {
	if cfg.listPorts {
		return printPorts()
	}
	if cfg.address == 0 || cfg.address > 255 {
		return fmt.Errorf("address %d out of range 1-255", cfg.address)
	}

	tr, err := newTransport(cfg, log)
	if err != nil {
		return err
	}

	ctrl, err := pelcod.New(tr,
		pelcod.WithAddress(byte(cfg.address)),
		pelcod.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	if err := ctrl.Open(ctx); err != nil {
		return fmt.Errorf("opening head: %w", err)
	}
	defer func() {
		if closeErr := ctrl.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close head: %v\n", closeErr)
		}
	}()

	switch {
	case cfg.soak:
		return runSoakMode(ctx, ctrl, cfg)
	case cfg.monitor:
		return runMonitorMode(ctx, ctrl, log)
	case cfg.panArg != "" || cfg.tiltArg != "":
		return runPositionMode(ctrl, cfg)
	default:
		return runStatusMode(ctrl)
	}
}

// runStatusMode prints the zero point and one fresh position reading.
func runStatusMode(ctrl *pelcod.Controller) error {
	zero := ctrl.ZeroPoint()
	_, _ = fmt.Printf("Zero point: pan=%.2f tilt=%.2f (raw %d/%d)\n",
		zero.PanDeg, zero.TiltDeg, zero.RawPan, zero.RawTilt)

	pos := ctrl.RelativePosition()
	_, _ = fmt.Printf("Position:   pan=%+.2f tilt=%+.2f  valid=(pan:%v tilt:%v)\n",
		pos.Pan, pos.Tilt, pos.Status.PanValid, pos.Status.TiltValid)
	return nil
}

// runPositionMode performs the requested absolute moves and reports
// where the head actually settled.
func runPositionMode(ctrl *pelcod.Controller, cfg *config) error {
	if cfg.panArg != "" {
		target, err := strconv.ParseFloat(cfg.panArg, 64)
		if err != nil {
			return fmt.Errorf("bad -pan value %q: %w", cfg.panArg, err)
		}
		_, _ = fmt.Printf("Pan to %+.2f... ", target)
		got, err := ctrl.AbsolutePanWait(target)
		if err != nil {
			return fmt.Errorf("absolute pan: %w", err)
		}
		_, _ = fmt.Printf("settled at %+.2f\n", got)
	}
	if cfg.tiltArg != "" {
		target, err := strconv.ParseFloat(cfg.tiltArg, 64)
		if err != nil {
			return fmt.Errorf("bad -tilt value %q: %w", cfg.tiltArg, err)
		}
		_, _ = fmt.Printf("Tilt to %+.2f... ", target)
		got, err := ctrl.AbsoluteTiltWait(target)
		if err != nil {
			return fmt.Errorf("absolute tilt: %w", err)
		}
		_, _ = fmt.Printf("settled at %+.2f\n", got)
	}
	return nil
}

// runMonitorMode streams position updates until interrupted.
func runMonitorMode(ctx context.Context, ctrl *pelcod.Controller, log *zap.Logger) error {
	loop := telemetry.NewLoop(ctrl, telemetry.Config{Logger: log})
	updates, cancel := loop.Updates()
	defer cancel()

	if err := loop.Start(); err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer loop.Stop()

	_, _ = fmt.Println("Monitoring position. Press Ctrl+C to stop...")
	for {
		select {
		case <-ctx.Done():
			m := loop.GetMetrics()
			_, _ = fmt.Printf("\n%d polls, %d failures, %d estimated updates\n",
				m.Polls, m.Failures, m.Estimated)
			return ctx.Err()
		case u := <-updates:
			marker := " "
			if u.Estimated {
				marker = "~"
			}
			_, _ = fmt.Printf("%s %span=%+8.2f tilt=%+7.2f raw=(%d,%d) valid=(%v,%v)\n",
				u.At.Format("15:04:05.000"), marker,
				u.Position.Pan, u.Position.Tilt,
				u.Position.RawPan, u.Position.RawTilt,
				u.Position.Status.PanValid, u.Position.Status.TiltValid)
		}
	}
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	log := logkit.New(logkit.Config{
		Level:  cfg.logLevel,
		Format: "console",
		File:   logkit.FileConfig{Filename: cfg.logFile, MaxSizeMB: 10, MaxBackups: 3},
	})
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
