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

// Package frame provides frame manipulation and protocol constants for Mini212 communication
package frame

// Frame markers and control bytes
const (
	SyncByte1  = 0x55 // First synchronisation byte
	SyncByte2  = 0xAA // Second synchronisation byte
	Terminator = 0xF0 // Frame terminator byte
)

// Frame layout. A command frame is always CommandFrameLength bytes:
//
//	[0x55][0xAA][LEN][TYPE][SUB][PAYLOAD x5][XOR][0xF0]
const (
	CommandFrameLength = 12 // Fixed size of a command frame
	PayloadWidth       = 5  // Reserved payload region, zero padded

	lenIndex      = 2
	typeIndex     = 3
	subIndex      = 4
	payloadIndex  = 5
	checksumIndex = payloadIndex + PayloadWidth
)

// Response sizes
const (
	AckLength           = 6  // ACK signature length
	ConfigResponseLen   = 24 // Digital video page query response
	MaxCommandFrameSize = CommandFrameLength
)

// AckFrame is the literal acknowledgement the device sends after accepting a command
var AckFrame = []byte{0x55, 0xAA, 0x01, 0x00, 0x01, 0xF0}
