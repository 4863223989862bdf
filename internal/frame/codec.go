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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrFrameTooLarge    = errors.New("command frame too large")
	ErrInvalidFrame     = errors.New("invalid command frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Build assembles a fixed-length command frame for the given type and sub-command.
// The payload is zero padded to PayloadWidth; a longer payload fails with ErrFrameTooLarge.
//
// LEN counts TYPE, SUB and the payload region, which is what the device firmware
// expects (0x07 for every command observed on the wire).
func Build(cmdType, sub byte, payload []byte) ([]byte, error) {
	if len(payload) > PayloadWidth {
		return nil, fmt.Errorf("%w: payload is %d bytes, maximum is %d (frame limit %d)",
			ErrFrameTooLarge, len(payload), PayloadWidth, MaxCommandFrameSize)
	}

	frame := make([]byte, CommandFrameLength)
	frame[0] = SyncByte1
	frame[1] = SyncByte2
	frame[lenIndex] = byte(checksumIndex - typeIndex)
	frame[typeIndex] = cmdType
	frame[subIndex] = sub
	copy(frame[payloadIndex:checksumIndex], payload)
	frame[checksumIndex] = XOR(frame[lenIndex:checksumIndex])
	frame[CommandFrameLength-1] = Terminator

	return frame, nil
}

// VerifyFrame checks markers, length byte and checksum of a command-format frame.
func VerifyFrame(frame []byte) error {
	if len(frame) != CommandFrameLength {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrInvalidFrame, len(frame), CommandFrameLength)
	}
	if frame[0] != SyncByte1 || frame[1] != SyncByte2 {
		return fmt.Errorf("%w: bad sync bytes %02X %02X", ErrInvalidFrame, frame[0], frame[1])
	}
	if frame[CommandFrameLength-1] != Terminator {
		return fmt.Errorf("%w: bad terminator 0x%02X", ErrInvalidFrame, frame[CommandFrameLength-1])
	}
	if int(frame[lenIndex]) != checksumIndex-typeIndex {
		return fmt.Errorf("%w: length byte 0x%02X", ErrInvalidFrame, frame[lenIndex])
	}
	if !ValidateChecksum(frame) {
		return fmt.Errorf("%w: got 0x%02X, expected 0x%02X",
			ErrChecksumMismatch, frame[checksumIndex], XOR(frame[lenIndex:checksumIndex]))
	}
	return nil
}

// VerifyAck reports whether data starts with the literal ACK signature.
// Trailing bytes are ignored; any deviation in the first AckLength bytes fails.
func VerifyAck(data []byte) bool {
	return len(data) >= AckLength && bytes.Equal(data[:AckLength], AckFrame)
}
