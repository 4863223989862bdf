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

// Package detection finds Mini212 thermal modules attached to the host.
//
// Transport specific detectors live in sub-packages and register themselves
// on import:
//
//	import (
//		"github.com/ZaparooProject/go-mini212/detection"
//		_ "github.com/ZaparooProject/go-mini212/detection/uart"
//		_ "github.com/ZaparooProject/go-mini212/detection/usb"
//	)
//
//	devices, err := detection.DetectAll(nil)
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Mini212 USB identifiers
const (
	VendorID  = 0x04B4
	ProductID = 0xF7F7
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no Mini212 devices found")
	ErrDetectionTimeout    = errors.New("device detection timed out")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
)

// Mode controls how intrusive detection is allowed to be
type Mode int

const (
	// Passive only inspects descriptors and never opens a device
	Passive Mode = iota
	// Safe may stat device nodes to check they are usable
	Safe
	// Full also reports USB serial ports without the Mini212 VID:PID
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence ranks how likely a detected device is a Mini212
type Confidence int

const (
	// Low means the device merely could be a module
	Low Confidence = iota
	// Medium means the identifiers match but the device was not checked further
	Medium
	// High means the identifiers match and the device node is usable
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// DeviceInfo describes a detected module
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s %s (%s, %s confidence)", d.Transport, d.Path, d.Name, d.Confidence)
}

// Options configures detection
type Options struct {
	// Transports restricts detection to the named transports (empty = all)
	Transports []string
	// Blocklist holds VID:PID pairs that are never reported
	Blocklist []string
	// IgnorePaths holds device paths that are never reported
	IgnorePaths []string
	// Timeout bounds the whole detection run (0 = no limit)
	Timeout time.Duration
	Mode    Mode
}

// DefaultOptions returns the default detection options
func DefaultOptions() Options {
	return Options{
		Mode:      Safe,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds devices reachable over one transport
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Detector)
)

// RegisterDetector makes a detector available to DetectAll. A detector
// registered for an existing transport replaces the previous one.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Detectors returns the registered detectors ordered by transport name
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	detectors := make([]Detector, 0, len(registry))
	for _, d := range registry {
		detectors = append(detectors, d)
	}
	sort.Slice(detectors, func(i, j int) bool {
		return detectors[i].Transport() < detectors[j].Transport()
	})
	return detectors
}

// DetectAll runs every registered detector with a background context
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext runs every registered detector and returns the devices
// found, best confidence first. Detectors that are unsupported on this
// platform or find nothing are skipped.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, d := range Detectors() {
		if !wantTransport(opts.Transports, d.Transport()) {
			continue
		}
		if ctx.Err() != nil {
			return devices, ErrDetectionTimeout
		}

		found, err := d.Detect(ctx, opts)
		switch {
		case errors.Is(err, ErrUnsupportedPlatform), errors.Is(err, ErrNoDevicesFound):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), err))
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		if ctx.Err() != nil {
			return nil, ErrDetectionTimeout
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func wantTransport(wanted []string, transport string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == transport {
			return true
		}
	}
	return false
}

// Skip reports whether a device must be left out of the results
func Skip(path, vidpid string, opts *Options) bool {
	if IsPathIgnored(path, opts.IgnorePaths) {
		return true
	}
	return vidpid != "" && IsBlocked(vidpid, opts.Blocklist)
}

// FormatVIDPID formats vendor and product IDs the way the blocklist expects
func FormatVIDPID(vid, pid uint16) string {
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// IsMini212 reports whether the VID:PID pair identifies a Mini212 module
func IsMini212(vidpid string) bool {
	return NormalizeVIDPID(vidpid) == FormatVIDPID(VendorID, ProductID)
}
