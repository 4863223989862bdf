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

package scan

import (
	"encoding/binary"
	"fmt"

	mini212 "github.com/ZaparooProject/go-mini212"
)

// BytesPerSample is the wire size of one sample
const BytesPerSample = 2

// Default sensor geometry
const (
	DefaultRows = 192
	DefaultCols = 256
)

// Size returns the byte length of a rows x cols scan
func Size(rows, cols int) int {
	return rows * cols * BytesPerSample
}

// RawScan is an immutable snapshot of one bulk read
type RawScan struct {
	samples []uint16
	rows    int
	cols    int
}

// FromBytes decodes a bulk transfer into a RawScan. The data must be exactly
// rows*cols*2 bytes; samples are taken in the device's little-endian order.
func FromBytes(data []byte, rows, cols int) (*RawScan, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: geometry %dx%d", mini212.ErrInvalidConfig, rows, cols)
	}
	if want := Size(rows, cols); len(data) != want {
		return nil, fmt.Errorf("%w: scan is %d bytes, expected %d", mini212.ErrWrongLength, len(data), want)
	}

	samples := make([]uint16, rows*cols)
	for i := range samples {
		samples[i] = binary.LittleEndian.Uint16(data[i*BytesPerSample:])
	}

	return &RawScan{samples: samples, rows: rows, cols: cols}, nil
}

// FromSamples builds a RawScan from row-major samples, which are copied
func FromSamples(samples []uint16, rows, cols int) (*RawScan, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: geometry %dx%d", mini212.ErrInvalidConfig, rows, cols)
	}
	if len(samples) != rows*cols {
		return nil, fmt.Errorf("%w: %d samples, expected %d", mini212.ErrWrongLength, len(samples), rows*cols)
	}
	return &RawScan{samples: append([]uint16(nil), samples...), rows: rows, cols: cols}, nil
}

// Rows returns the scan height
func (s *RawScan) Rows() int { return s.rows }

// Cols returns the scan width
func (s *RawScan) Cols() int { return s.cols }

// At returns the sample at row r, column c
func (s *RawScan) At(r, c int) uint16 {
	return s.samples[r*s.cols+c]
}

// RowsFrom returns rows [start, rows)
func (s *RawScan) RowsFrom(start int) (*Rows, error) {
	if start < 0 || start > s.rows {
		return nil, fmt.Errorf("%w: start row %d outside [0, %d]", mini212.ErrIndexOutOfRange, start, s.rows)
	}
	return s.slice(start, s.rows), nil
}

// RowsBefore returns rows [0, start)
func (s *RawScan) RowsBefore(start int) (*Rows, error) {
	if start < 0 || start > s.rows {
		return nil, fmt.Errorf("%w: start row %d outside [0, %d]", mini212.ErrIndexOutOfRange, start, s.rows)
	}
	return s.slice(0, start), nil
}

func (s *RawScan) slice(from, to int) *Rows {
	return &Rows{
		samples: append([]uint16(nil), s.samples[from*s.cols:to*s.cols]...),
		count:   to - from,
		cols:    s.cols,
		height:  s.rows,
	}
}

// Rows is an owned range of rows cut from a RawScan. It remembers the height
// of the scan it came from so ConcatRows can check the result.
type Rows struct {
	samples []uint16
	count   int
	cols    int
	height  int
}

// Len returns the number of rows in the range
func (r *Rows) Len() int { return r.count }

// Cols returns the row width
func (r *Rows) Cols() int { return r.cols }

// Height returns the height of the source scan
func (r *Rows) Height() int { return r.height }

// Row returns row i of the range. The slice aliases the range.
func (r *Rows) Row(i int) []uint16 {
	return r.samples[i*r.cols : (i+1)*r.cols]
}

// ConcatRows stacks a on top of b. The ranges must share width and source
// height and together cover exactly that height; anything else is a
// programming error and panics.
func ConcatRows(a, b *Rows) *Frame {
	if a.cols != b.cols || a.height != b.height {
		panic(fmt.Sprintf("scan: concat of %dx%d/%d and %dx%d/%d rows",
			a.count, a.cols, a.height, b.count, b.cols, b.height))
	}
	if a.count+b.count != a.height {
		panic(fmt.Sprintf("scan: concat of %d+%d rows, frame height is %d", a.count, b.count, a.height))
	}

	samples := make([]uint16, 0, len(a.samples)+len(b.samples))
	samples = append(samples, a.samples...)
	samples = append(samples, b.samples...)

	return &Frame{samples: samples, rows: a.height, cols: a.cols}
}
