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

//go:build linux

package usb

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// nodeAccessible checks that the usbfs node of a device can be opened for
// reading and writing by the current user
func nodeAccessible(bus, addr int) (string, bool) {
	node := fmt.Sprintf("/dev/bus/usb/%03d/%03d", bus, addr)
	return node, unix.Access(node, unix.R_OK|unix.W_OK) == nil
}
