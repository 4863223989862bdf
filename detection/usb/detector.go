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

// Package usb detects Mini212 modules on the USB bus with libusb.
package usb

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/google/gousb"
)

// TransportName is the transport reported for devices found by this detector
const TransportName = "usb"

type enumerateFunc func() ([]*gousb.DeviceDesc, error)

// detector implements the Detector interface for USB devices
type detector struct {
	enumerate  enumerateFunc
	accessible func(bus, addr int) (string, bool)
}

// New creates a new USB detector
func New() detection.Detector {
	return &detector{enumerate: enumerateDescriptors, accessible: nodeAccessible}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

// Detect lists Mini212 modules by descriptor. Devices are never opened.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	descs, err := d.enumerate()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, desc := range descs {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		info, ok := d.deviceInfo(desc, opts)
		if ok {
			devices = append(devices, info)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) deviceInfo(desc *gousb.DeviceDesc, opts *detection.Options) (detection.DeviceInfo, bool) {
	vidpid := detection.FormatVIDPID(uint16(desc.Vendor), uint16(desc.Product))
	if !detection.IsMini212(vidpid) {
		return detection.DeviceInfo{}, false
	}

	path := FormatPath(desc.Bus, desc.Address)
	if detection.Skip(path, vidpid, opts) {
		return detection.DeviceInfo{}, false
	}

	info := detection.DeviceInfo{
		Transport:  TransportName,
		Path:       path,
		Name:       fmt.Sprintf("Mini212 on bus %d address %d", desc.Bus, desc.Address),
		Confidence: detection.Medium,
		Metadata: map[string]string{
			"vidpid":  vidpid,
			"bus":     fmt.Sprintf("%d", desc.Bus),
			"address": fmt.Sprintf("%d", desc.Address),
			"port":    fmt.Sprintf("%d", desc.Port),
			"speed":   desc.Speed.String(),
		},
	}

	if opts.Mode != detection.Passive {
		node, ok := d.accessible(desc.Bus, desc.Address)
		if node != "" {
			info.Metadata["node"] = node
		}
		if ok {
			info.Confidence = detection.High
		} else {
			info.Metadata["permission"] = "denied"
		}
	}

	return info, true
}

// FormatPath returns the path understood by the USB transport
func FormatPath(bus, addr int) string {
	return fmt.Sprintf("usb:%d:%d", bus, addr)
}

// enumerateDescriptors collects every descriptor on the bus without opening devices
func enumerateDescriptors() (descs []*gousb.DeviceDesc, err error) {
	defer func() {
		// gousb panics when libusb cannot be initialised
		if r := recover(); r != nil {
			err = fmt.Errorf("libusb unavailable: %v", r)
		}
	}()

	ctx := gousb.NewContext()
	defer func() { _ = ctx.Close() }()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		descs = append(descs, desc)
		return false
	})
	for _, dev := range devs {
		_ = dev.Close()
	}
	if err != nil && len(descs) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	return descs, nil
}
