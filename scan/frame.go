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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Frame is a realigned image: physical row 0 first. Each Frame owns its
// samples, so a consumer may keep it after the synchronizer moves on.
type Frame struct {
	samples []uint16
	rows    int
	cols    int
}

// Rows returns the frame height
func (f *Frame) Rows() int { return f.rows }

// Cols returns the frame width
func (f *Frame) Cols() int { return f.cols }

// At returns the sample at row r, column c
func (f *Frame) At(r, c int) uint16 {
	return f.samples[r*f.cols+c]
}

// Row returns a copy of row r
func (f *Frame) Row(r int) []uint16 {
	return append([]uint16(nil), f.samples[r*f.cols:(r+1)*f.cols]...)
}

// Samples returns a copy of all samples in row-major order
func (f *Frame) Samples() []uint16 {
	return append([]uint16(nil), f.samples...)
}

// Bytes encodes the frame in the device's little-endian wire order
func (f *Frame) Bytes() []byte {
	out := make([]byte, len(f.samples)*BytesPerSample)
	for i, v := range f.samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], v)
	}
	return out
}

// Stats summarises the sample values of a frame
type Stats struct {
	Mean float64
	Std  float64
	Min  uint16
	Max  uint16
}

// Stats returns min, max, mean and standard deviation of the samples
func (f *Frame) Stats() Stats {
	if len(f.samples) == 0 {
		return Stats{}
	}

	values := make([]float64, len(f.samples))
	for i, v := range f.samples {
		values[i] = float64(v)
	}

	mean, std := stat.MeanStdDev(values, nil)
	return Stats{
		Mean: mean,
		Std:  std,
		Min:  uint16(floats.Min(values)),
		Max:  uint16(floats.Max(values)),
	}
}

// FrameFromBytes decodes an already aligned image in wire order
func FrameFromBytes(data []byte, rows, cols int) (*Frame, error) {
	raw, err := FromBytes(data, rows, cols)
	if err != nil {
		return nil, err
	}
	return &Frame{samples: raw.samples, rows: rows, cols: cols}, nil
}
