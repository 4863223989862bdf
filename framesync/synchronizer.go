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

package framesync

import (
	"fmt"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/scan"
)

// Synchronizer turns raw scans into realigned frames. Implementations are not
// safe for concurrent use; a session owns exactly one.
type Synchronizer interface {
	// Process consumes one scan. ok is false when no frame is emitted for it.
	Process(s *scan.RawScan) (frame *scan.Frame, ok bool, err error)
	// SetSplitOffset changes the offset used from the next scan on.
	// An invalid offset is rejected and the previous one stays in effect.
	SetSplitOffset(offset int) error
	// SplitOffset returns the offset currently in effect
	SplitOffset() int
	// Mode returns the strategy
	Mode() Mode
	// Reset discards carried state
	Reset()
}

// New creates the synchronizer selected by cfg.Mode
func New(cfg Config) (Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeStatic:
		return &Static{rows: cfg.Rows, cols: cfg.Cols, offset: cfg.SplitOffset}, nil
	case ModeDynamic:
		return &Dynamic{rows: cfg.Rows, cols: cfg.Cols, offset: cfg.SplitOffset}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %v", mini212.ErrInvalidConfig, cfg.Mode)
	}
}

func checkGeometry(s *scan.RawScan, rows, cols int) error {
	if s.Rows() != rows || s.Cols() != cols {
		return fmt.Errorf("%w: scan is %dx%d, synchronizer expects %dx%d",
			mini212.ErrWrongLength, s.Rows(), s.Cols(), rows, cols)
	}
	return nil
}

// Rotate moves row offset to the top: RowsFrom(offset) followed by RowsBefore(offset)
func Rotate(s *scan.RawScan, offset int) (*scan.Frame, error) {
	from, err := s.RowsFrom(offset)
	if err != nil {
		return nil, err
	}
	before, err := s.RowsBefore(offset)
	if err != nil {
		return nil, err
	}
	return scan.ConcatRows(from, before), nil
}

// Static rotates every scan by a fixed offset. It keeps no state across scans.
type Static struct {
	rows   int
	cols   int
	offset int
}

// Process rotates the scan; every scan yields exactly one frame
func (st *Static) Process(s *scan.RawScan) (*scan.Frame, bool, error) {
	if err := checkGeometry(s, st.rows, st.cols); err != nil {
		return nil, false, err
	}
	f, err := Rotate(s, st.offset)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// SetSplitOffset sets the rotation offset
func (st *Static) SetSplitOffset(offset int) error {
	if err := ValidateSplitOffset(offset, st.rows); err != nil {
		return err
	}
	st.offset = offset
	return nil
}

// SplitOffset returns the rotation offset
func (st *Static) SplitOffset() int { return st.offset }

// Mode returns ModeStatic
func (*Static) Mode() Mode { return ModeStatic }

// Reset is a no-op
func (*Static) Reset() {}

// State of the carry-over reconstruction
type State int

const (
	// StateUnprimed means no scan has been consumed yet
	StateUnprimed State = iota
	// StatePrimed means a carry is held from the previous scan
	StatePrimed
)

func (s State) String() string {
	if s == StatePrimed {
		return "primed"
	}
	return "unprimed"
}

// Dynamic reconstructs each image from the rows after the split offset of the
// previous scan and the rows before it of the current scan.
type Dynamic struct {
	carry  *scan.Rows
	rows   int
	cols   int
	offset int
}

// Process consumes one scan. The first scan only primes the carry and emits
// nothing, so N scans yield N-1 frames.
func (d *Dynamic) Process(s *scan.RawScan) (*scan.Frame, bool, error) {
	if err := checkGeometry(s, d.rows, d.cols); err != nil {
		return nil, false, err
	}

	next, err := s.RowsFrom(d.offset)
	if err != nil {
		return nil, false, err
	}

	if d.carry == nil {
		d.carry = next
		return nil, false, nil
	}

	// The carry may have been cut at an earlier offset; take whatever the
	// frame still needs from the top of this scan. The seam this leaves after
	// an offset change lasts one frame.
	top, err := s.RowsBefore(d.rows - d.carry.Len())
	if err != nil {
		return nil, false, err
	}

	f := scan.ConcatRows(d.carry, top)
	d.carry = next
	return f, true, nil
}

// SetSplitOffset changes the split row without dropping the carry
func (d *Dynamic) SetSplitOffset(offset int) error {
	if err := ValidateSplitOffset(offset, d.rows); err != nil {
		return err
	}
	d.offset = offset
	return nil
}

// SplitOffset returns the split row
func (d *Dynamic) SplitOffset() int { return d.offset }

// Mode returns ModeDynamic
func (*Dynamic) Mode() Mode { return ModeDynamic }

// State reports whether a carry is held
func (d *Dynamic) State() State {
	if d.carry == nil {
		return StateUnprimed
	}
	return StatePrimed
}

// Reset drops the carry. Only a session restart should call it.
func (d *Dynamic) Reset() {
	d.carry = nil
}
