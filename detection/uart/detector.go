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

// Package uart detects the serial command channel of Mini212 modules that are
// configured for USB2.0+UART or UVC+CDC output.
package uart

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZaparooProject/go-mini212/detection"
	"go.bug.st/serial/enumerator"
)

// TransportName is the transport reported for devices found by this detector
const TransportName = "uart"

type listFunc func() ([]*enumerator.PortDetails, error)

// detector implements the Detector interface for serial ports
type detector struct {
	list listFunc
}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return TransportName
}

// Detect lists serial ports belonging to a module
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	seen := make(map[string]struct{}, len(ports))
	var devices []detection.DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if port == nil || port.Name == "" {
			continue
		}
		if _, ok := seen[port.Name]; ok {
			continue
		}
		seen[port.Name] = struct{}{}

		if info, ok := portInfo(port, opts); ok {
			devices = append(devices, info)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// portInfo classifies a port. Ports carrying the module's VID:PID are always
// reported; other USB serial ports only in Full mode.
func portInfo(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	var vidpid string
	if port.IsUSB {
		vidpid = detection.NormalizeVIDPID(port.VID + ":" + port.PID)
	}
	if detection.Skip(port.Name, vidpid, opts) {
		return detection.DeviceInfo{}, false
	}

	info := detection.DeviceInfo{
		Transport: TransportName,
		Path:      port.Name,
		Name:      port.Name,
		Metadata:  map[string]string{},
	}
	if port.Product != "" {
		info.Name = fmt.Sprintf("%s (%s)", port.Product, port.Name)
		info.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		info.Metadata["serial"] = port.SerialNumber
	}
	if vidpid != "" {
		info.Metadata["vidpid"] = vidpid
	}

	switch {
	case detection.IsMini212(vidpid):
		info.Confidence = detection.High
	case port.IsUSB && opts.Mode == detection.Full:
		info.Confidence = detection.Low
	default:
		return detection.DeviceInfo{}, false
	}
	return info, true
}
