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

/*
Package mini212 drives the Mini212G2 USB thermal sensor.

The sensor exposes three bulk endpoints: image data in on 0x81, commands out
on 0x02 and command responses in on 0x83. Commands are fixed 12-byte frames
protected by an XOR checksum; the device answers every command with a 6-byte
ACK.

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-mini212"
	    "github.com/ZaparooProject/go-mini212/session"
	    "github.com/ZaparooProject/go-mini212/transport/usb"
	)

	transport, err := usb.New("")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := mini212.New(transport, mini212.WithTimeout(time.Second))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	cfg, err := device.QueryVideoConfig(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(cfg)

	s, err := session.New(device, session.DefaultConfig(), func(f *scan.Frame) {
	    fmt.Println(f.Stats().Max)
	})
	if err != nil {
	    log.Fatal(err)
	}
	err = s.Run(ctx)

Transport Selection:

  - usb: libusb bulk transfers through gousb, covers all three endpoints
  - uart: a CDC serial port carrying the command channel only

A UART command channel can be paired with the USB image endpoint using
NewSplitTransport.

Error Handling:

Transport failures are reported as *TransportError and classified as
transient, permanent or timeout. Use IsRetryable and IsTimeout to inspect
them:

	if errors.Is(err, mini212.ErrNoACK) {
	    // the device rejected or ignored the command
	}

Thread Safety:

Device operations are not thread-safe. A Session serializes all device access
on its own goroutine; its setters may be called from any goroutine.
*/
package mini212
