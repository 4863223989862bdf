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

// Package framesync realigns raw scans whose row 0 drifts relative to the
// USB transfer boundary.
//
// Two strategies are available. Static rotation assumes the wrap row is a
// fixed constant and rotates every scan independently. Dynamic carry-over
// assumes each physical image straddles two consecutive transfers and stitches
// the bottom of the previous scan to the top of the current one, at the cost
// of one frame of latency.
package framesync

import (
	"fmt"
	"strings"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/scan"
)

// Mode selects a realignment strategy
type Mode int

const (
	// ModeDynamic stitches consecutive scans at the split offset
	ModeDynamic Mode = iota
	// ModeStatic rotates each scan by a fixed offset
	ModeStatic
)

func (m Mode) String() string {
	switch m {
	case ModeDynamic:
		return "dynamic"
	case ModeStatic:
		return "static"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m names a known strategy
func (m Mode) Valid() bool {
	return m == ModeDynamic || m == ModeStatic
}

// ParseMode parses "static" or "dynamic"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic", "split", "carry":
		return ModeDynamic, nil
	case "static", "rotate", "rotation":
		return ModeStatic, nil
	default:
		return 0, fmt.Errorf("%w: unknown sync mode %q", mini212.ErrInvalidConfig, s)
	}
}

// Default split offsets observed for the Mini212G2 firmware
const (
	DefaultSplitOffset    = 140
	DefaultRotationOffset = 140
)

// Config configures a Synchronizer
type Config struct {
	Mode        Mode
	Rows        int
	Cols        int
	SplitOffset int
}

// DefaultConfig returns the configuration for the 192x256 sensor
func DefaultConfig() Config {
	return Config{
		Mode:        ModeDynamic,
		Rows:        scan.DefaultRows,
		Cols:        scan.DefaultCols,
		SplitOffset: DefaultSplitOffset,
	}
}

// Validate checks the geometry, the mode and the split offset
func (c Config) Validate() error {
	if c.Rows < 2 || c.Cols < 1 {
		return fmt.Errorf("%w: geometry %dx%d", mini212.ErrInvalidConfig, c.Rows, c.Cols)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %v", mini212.ErrInvalidConfig, c.Mode)
	}
	return ValidateSplitOffset(c.SplitOffset, c.Rows)
}

// ValidateSplitOffset checks that offset lies in [1, rows-1]. Zero and rows
// would yield an empty or full-height range and break the carry invariant.
func ValidateSplitOffset(offset, rows int) error {
	if offset < 1 || offset > rows-1 {
		return fmt.Errorf("%w: split offset %d outside [1, %d]", mini212.ErrInvalidConfig, offset, rows-1)
	}
	return nil
}
