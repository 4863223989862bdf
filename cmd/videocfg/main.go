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

// Command videocfg reads back and prints the digital video page of a Mini212
// thermal module, optionally writing a new page first.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-mini212/detection/uart"
	_ "github.com/ZaparooProject/go-mini212/detection/usb"
	"github.com/ZaparooProject/go-mini212/transport/uart"
	"github.com/ZaparooProject/go-mini212/transport/usb"
)

type config struct {
	devicePath *string
	set        *string
	timeout    *time.Duration
	debug      *bool
	list       *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Device path (usb:BUS:ADDR or a serial port). Leave empty for auto-detection."),
		set:     flag.String("set", "", "Hex payload to write before querying (e.g., 0300000002)"),
		timeout: flag.Duration("timeout", 2*time.Second, "Overall timeout"),
		debug:   flag.Bool("debug", false, "Enable debug output"),
		list:    flag.Bool("list", false, "List detected modules and exit"),
	}
	flag.Parse()

	if *cfg.debug {
		mini212.SetDebugEnabled(true)
	}

	return cfg
}

// newTransport creates a transport from a device path. The query only needs
// the command channel, so serial ports work as well as USB.
func newTransport(path string) (mini212.Transport, error) {
	if strings.HasPrefix(strings.ToLower(path), "usb:") {
		return usb.New(path)
	}
	return uart.New(path)
}

func newTransportFromDevice(device detection.DeviceInfo) (mini212.Transport, error) {
	switch strings.ToLower(device.Transport) {
	case string(mini212.TransportUSB):
		return usb.NewFromDevice(device)
	case string(mini212.TransportUART):
		return uart.NewFromDevice(device)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

func listDevices(ctx context.Context) error {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Println(d)
	}
	return nil
}

func run(cfg *config) error {
	ctx, cancel := context.WithTimeout(context.Background(), *cfg.timeout)
	defer cancel()

	if *cfg.list {
		return listDevices(ctx)
	}

	var payload []byte
	if *cfg.set != "" {
		var err error
		if payload, err = hex.DecodeString(strings.ReplaceAll(*cfg.set, " ", "")); err != nil {
			return fmt.Errorf("invalid -set payload: %w", err)
		}
	}

	connectOpts := []mini212.ConnectOption{mini212.WithoutInit()}
	if *cfg.devicePath == "" {
		connectOpts = append(connectOpts,
			mini212.WithAutoDetection(),
			mini212.WithTransportFromDeviceFactory(newTransportFromDevice))
	} else {
		connectOpts = append(connectOpts, mini212.WithTransportFactory(newTransport))
	}

	device, err := mini212.ConnectDevice(ctx, *cfg.devicePath, connectOpts...)
	if err != nil {
		return fmt.Errorf("failed to connect to Mini212 module: %w", err)
	}
	defer func() { _ = device.Close() }()

	if payload != nil {
		if err := device.SetVideoConfig(ctx, payload); err != nil {
			return err
		}
		_, _ = fmt.Printf("Wrote digital video page % X\n", payload)
	}

	videoConfig, err := device.QueryVideoConfig(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Println(videoConfig)
	return nil
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
