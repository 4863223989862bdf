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

package main

import (
	"errors"
	"fmt"
	"strings"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/ZaparooProject/go-mini212/transport/uart"
	"github.com/ZaparooProject/go-mini212/transport/usb"
)

// transportFactory opens the USB device at path and, when a command port is
// configured, routes commands through it.
func transportFactory(commandPort string) mini212.TransportFactory {
	return func(path string) (mini212.Transport, error) {
		if strings.HasPrefix(strings.ToLower(path), "/dev/tty") || strings.HasPrefix(strings.ToUpper(path), "COM") {
			return nil, errors.New("scans need the USB device; pass the serial port with -uart")
		}

		video, err := usb.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create USB transport: %w", err)
		}
		return withCommandPort(video, commandPort)
	}
}

// streamDetectOptions limits auto-detection to USB, the only transport
// carrying the image endpoint
func streamDetectOptions() *detection.Options {
	opts := detection.DefaultOptions()
	opts.Transports = []string{string(mini212.TransportUSB)}
	return &opts
}

// transportFromDeviceFactory opens a detected module
func transportFromDeviceFactory(commandPort string) mini212.TransportFromDeviceFactory {
	return func(device detection.DeviceInfo) (mini212.Transport, error) {
		switch strings.ToLower(device.Transport) {
		case string(mini212.TransportUSB):
			video, err := usb.NewFromDevice(device)
			if err != nil {
				return nil, fmt.Errorf("failed to create USB transport: %w", err)
			}
			return withCommandPort(video, commandPort)
		default:
			return nil, fmt.Errorf("unsupported transport type for streaming: %s", device.Transport)
		}
	}
}

func withCommandPort(video mini212.Transport, commandPort string) (mini212.Transport, error) {
	if commandPort == "" {
		return video, nil
	}

	control, err := uart.New(commandPort)
	if err != nil {
		_ = video.Close()
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return mini212.NewSplitTransport(control, video), nil
}
