// go-mini212
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-mini212.
//
// go-mini212 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-mini212 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-mini212; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command thermview streams realigned frames from a Mini212 thermal module.
//
// Frames can be watched through a websocket (-listen) and the realignment can
// be steered from the terminal while streaming.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-mini212/detection/uart"
	_ "github.com/ZaparooProject/go-mini212/detection/usb"
	"github.com/ZaparooProject/go-mini212/framesync"
	"github.com/ZaparooProject/go-mini212/scan"
	"github.com/ZaparooProject/go-mini212/session"
	"github.com/ZaparooProject/go-mini212/stream"
	"github.com/eiannone/keyboard"
)

type config struct {
	devicePath  *string
	commandPort *string
	mode        *string
	listen      *string
	split       *int
	rows        *int
	cols        *int
	statsEvery  *int
	timeout     *time.Duration
	debug       *bool
	noHandshake *bool
	noKeyboard  *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"USB device path (e.g., usb:1:4). Leave empty for auto-detection."),
		commandPort: flag.String("uart", "",
			"Serial port for commands when the module outputs USB2.0+UART (e.g., /dev/ttyACM0)"),
		mode:   flag.String("mode", framesync.ModeDynamic.String(), "Realignment mode: dynamic or static"),
		listen: flag.String("listen", "", "Serve frames over websocket on this address (e.g., :8080)"),
		split: flag.Int("split", framesync.DefaultSplitOffset,
			"Split offset: row index where the physical top of the image starts"),
		rows:        flag.Int("rows", scan.DefaultRows, "Sensor rows"),
		cols:        flag.Int("cols", scan.DefaultCols, "Sensor columns"),
		statsEvery:  flag.Int("stats", 30, "Print frame statistics every N frames (0 disables)"),
		timeout:     flag.Duration("timeout", time.Second, "Read timeout for each scan"),
		debug:       flag.Bool("debug", false, "Enable debug output"),
		noHandshake: flag.Bool("no-handshake", false, "Skip the init command (module already streaming)"),
		noKeyboard:  flag.Bool("no-keyboard", false, "Disable the interactive keyboard controller"),
	}
	flag.Parse()

	if *cfg.debug {
		mini212.SetDebugEnabled(true)
	}

	return cfg
}

func buildConnectOptions(cfg *config) []mini212.ConnectOption {
	connectOpts := []mini212.ConnectOption{
		// the session performs the handshake
		mini212.WithoutInit(),
		mini212.WithDeviceOptions(mini212.WithTimeout(*cfg.timeout)),
	}

	if *cfg.devicePath == "" {
		connectOpts = append(connectOpts,
			mini212.WithAutoDetection(),
			mini212.WithDetectOptions(streamDetectOptions()),
			mini212.WithTransportFromDeviceFactory(transportFromDeviceFactory(*cfg.commandPort)))
		_, _ = fmt.Println("Auto-detecting Mini212 modules...")
	} else {
		connectOpts = append(connectOpts, mini212.WithTransportFactory(transportFactory(*cfg.commandPort)))
		_, _ = fmt.Printf("Opening device: %s\n", *cfg.devicePath)
	}
	return connectOpts
}

func buildSessionConfig(cfg *config) (*session.Config, error) {
	mode, err := framesync.ParseMode(*cfg.mode)
	if err != nil {
		return nil, err
	}

	sessionConfig := session.DefaultConfig()
	sessionConfig.Sync = framesync.Config{
		Mode:        mode,
		Rows:        *cfg.rows,
		Cols:        *cfg.cols,
		SplitOffset: *cfg.split,
	}
	sessionConfig.ReadTimeout = *cfg.timeout
	sessionConfig.Handshake = !*cfg.noHandshake

	if err := sessionConfig.Validate(); err != nil {
		return nil, err
	}
	return sessionConfig, nil
}

// frameHandler prints statistics periodically and forwards frames to the hub
func frameHandler(hub *stream.Hub, every int) session.FrameHandler {
	var count atomic.Uint64
	return func(f *scan.Frame) {
		n := count.Add(1)
		if every > 0 && n%uint64(every) == 0 {
			stats := f.Stats()
			_, _ = fmt.Printf("frame %d: min %d max %d mean %.1f std %.1f\r\n",
				n, stats.Min, stats.Max, stats.Mean, stats.Std)
		}
		if hub != nil {
			hub.Broadcast(f)
		}
	}
}

func startServer(addr string, hub *stream.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "websocket server failed: %v\n", err)
		}
	}()
	_, _ = fmt.Printf("Streaming frames on ws://%s/ws\n", addr)
	return srv
}

func startController(ctx context.Context, sess *session.Session) (stop func()) {
	keys, err := keyboard.GetKeys(16)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "keyboard unavailable, controller disabled: %v\n", err)
		return func() {}
	}

	ctrl := newController(sess, os.Stdout)
	ctrl.usage()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.run(ctx, keys)
	}()

	return func() {
		cancel()
		<-done
		_ = keyboard.Close()
	}
}

func run(cfg *config) error {
	sessionConfig, err := buildSessionConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := mini212.ConnectDevice(ctx, *cfg.devicePath, buildConnectOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to connect to Mini212 module: %w", err)
	}
	defer func() { _ = device.Close() }()

	var hub *stream.Hub
	if *cfg.listen != "" {
		hub = stream.NewHub()
		srv := startServer(*cfg.listen, hub)
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sess, err := session.New(device, sessionConfig, frameHandler(hub, *cfg.statsEvery))
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	_, _ = fmt.Printf("Session %s streaming (%v, split offset %d)\n", sess.ID(), sess.Mode(), sess.SplitOffset())

	if !*cfg.noKeyboard {
		stopController := startController(ctx, sess)
		defer stopController()
	}

	err = sess.Run(ctx)
	m := sess.Metrics()
	_, _ = fmt.Printf("\r\nscans %d, frames %d, transport errors %d, length errors %d, last read %v\n",
		m.ScansRead, m.FramesEmitted, m.TransportErrors, m.LengthErrors, m.LastReadLatency)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
