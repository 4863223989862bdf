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

package detection

import (
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultBlocklist returns VID:PID pairs that are never reported. The FX3
// bootloader shares Cypress's vendor ID with the module but has no sensor
// firmware loaded.
func DefaultBlocklist() []string {
	return []string{"04B4:00F3"}
}

// ParseVIDPID parses a "VVVV:PPPP" pair of hexadecimal IDs. Either half may
// carry a 0x prefix; case and surrounding spaces are ignored.
func ParseVIDPID(s string) (vid, pid uint16, ok bool) {
	v, p, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, 0, false
	}
	vid, okVID := parseID(v)
	pid, okPID := parseID(p)
	if !okVID || !okPID {
		return 0, 0, false
	}
	return vid, pid, true
}

func parseID(s string) (uint16, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(id), true
}

// NormalizeVIDPID returns s in the FormatVIDPID form, or "" when s does not
// parse.
func NormalizeVIDPID(s string) string {
	vid, pid, ok := ParseVIDPID(s)
	if !ok {
		return ""
	}
	return FormatVIDPID(vid, pid)
}

// IsBlocked reports whether vidpid matches an entry of blocklist.
// Unparseable entries never match.
func IsBlocked(vidpid string, blocklist []string) bool {
	want := NormalizeVIDPID(vidpid)
	if want == "" {
		return false
	}
	for _, blocked := range blocklist {
		if NormalizeVIDPID(blocked) == want {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether devicePath is one of ignorePaths. USB paths
// ("usb:BUS:ADDR") and serial nodes are compared case-insensitively after
// cleaning, so "/dev/../dev/ttyACM0" matches "/dev/ttyACM0" and "com3"
// matches "COM3".
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizePath(devicePath)
	for _, ignored := range ignorePaths {
		if ignored != "" && normalizePath(ignored) == device {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(strings.ToLower(path), "usb:") {
		return strings.ToLower(path)
	}
	return strings.ToLower(filepath.Clean(path))
}
