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

package mini212

import "github.com/ZaparooProject/go-mini212/internal/frame"

// Mini212 command codes
const (
	cmdTypeDigitalVideo = 0x02 // Digital video page
	cmdSubDigitalVideo  = 0x01
)

// Digital video page payloads
const (
	videoQueryFlag = 0x80 // First payload byte requesting a read-back of the page
)

// DefaultInitPayload is the digital video page setting written at session start.
// It switches the module to streaming Y16 scans over the USB bulk endpoint.
var DefaultInitPayload = []byte{0x03, 0x00, 0x00, 0x00, 0x02}

// Command is an unencoded command: type, sub-command and payload
type Command struct {
	Payload []byte
	Type    byte
	Sub     byte
}

// DigitalVideoSet returns the command writing the digital video page
func DigitalVideoSet(payload []byte) Command {
	return Command{Type: cmdTypeDigitalVideo, Sub: cmdSubDigitalVideo, Payload: payload}
}

// DigitalVideoQuery returns the command reading back the digital video page
func DigitalVideoQuery() Command {
	return Command{Type: cmdTypeDigitalVideo, Sub: cmdSubDigitalVideo, Payload: []byte{videoQueryFlag}}
}

// Encode builds the 12-byte wire frame for the command
func (c Command) Encode() ([]byte, error) {
	return frame.Build(c.Type, c.Sub, c.Payload)
}
