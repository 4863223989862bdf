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

// Package uart implements the Mini212 command channel over a serial port.
//
// Modules configured for USB2.0+UART or UVC+CDC output accept the same
// command frames on their serial interface. Scans are not available here;
// combine this transport with the USB transport through
// mini212.NewSplitTransport to stream.
package uart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/ZaparooProject/go-mini212/internal/transport"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the module's factory serial speed
	DefaultBaudRate = 115200

	// pollInterval bounds each individual serial read while accumulating a response
	pollInterval = 20 * time.Millisecond

	// writeRetries is how many times a partially written frame is resumed
	writeRetries = 3
)

// Transport implements mini212.Transport on a serial port
type Transport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens the serial port at the default baud rate
func New(portName string) (*Transport, error) {
	return NewWithBaudRate(portName, DefaultBaudRate)
}

// NewWithBaudRate opens the serial port with 8N1 framing at baud
func NewWithBaudRate(portName string, baud int) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, mini212.NewTransportError("open", portName, err, mini212.ErrorTypePermanent)
	}

	t := newTransport(port, portName)
	if err := port.SetReadTimeout(pollInterval); err != nil {
		_ = port.Close()
		return nil, mini212.NewTransportError("open", portName, err, mini212.ErrorTypePermanent)
	}
	if err := port.ResetInputBuffer(); err != nil {
		mini212.Debugf("uart %s: failed to flush input: %v", portName, err)
	}
	return t, nil
}

// NewFromDevice opens the port of a detected device
func NewFromDevice(info detection.DeviceInfo) (*Transport, error) {
	if info.Transport != string(mini212.TransportUART) {
		return nil, fmt.Errorf("%w: %s device given to uart transport", mini212.ErrInvalidParameter, info.Transport)
	}
	return New(info.Path)
}

func newTransport(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  time.Second,
	}
}

// BulkRead reads exactly length bytes of response data
func (t *Transport) BulkRead(ep mini212.Endpoint, length int) ([]byte, error) {
	if ep != mini212.EndpointResponseIn {
		return nil, mini212.NewTransportError("BulkRead", t.portName,
			fmt.Errorf("%w: %v", mini212.ErrUnsupportedEndpoint, ep), mini212.ErrorTypePermanent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, mini212.NewTransportError("BulkRead", t.portName, mini212.ErrTransportClosed, mini212.ErrorTypePermanent)
	}

	data, err := transport.ReadExact(t.timeout, t.portName, length, t.port.Read)
	if err != nil {
		return nil, err
	}
	mini212.Debugf("uart %s RX % X", t.portName, data)
	return data, nil
}

// BulkWrite writes a command frame
func (t *Transport) BulkWrite(ep mini212.Endpoint, data []byte) error {
	if ep != mini212.EndpointCommandOut {
		return mini212.NewTransportError("BulkWrite", t.portName,
			fmt.Errorf("%w: %v", mini212.ErrUnsupportedEndpoint, ep), mini212.ErrorTypePermanent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return mini212.NewTransportError("BulkWrite", t.portName, mini212.ErrTransportClosed, mini212.ErrorTypePermanent)
	}

	// stale bytes would otherwise be taken for the ACK
	if err := t.port.ResetInputBuffer(); err != nil {
		mini212.Debugf("uart %s: failed to flush input: %v", t.portName, err)
	}

	written := 0
	_, err := transport.WithRetry(transport.RetryConfig{
		Description: t.portName,
		MaxRetries:  writeRetries,
		RetryDelay:  time.Millisecond,
	}, func() (int, bool, error) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return 0, false, mini212.NewTransportError("BulkWrite", t.portName, err, mini212.ErrorTypeTransient)
		}
		written += n
		return written, written < len(data), nil
	})
	if errors.Is(err, mini212.ErrCommunicationFailed) {
		return mini212.NewTransportError("BulkWrite", t.portName,
			fmt.Errorf("%w: wrote %d of %d bytes", mini212.ErrTransportWrite, written, len(data)), mini212.ErrorTypeTransient)
	}
	return err
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// SetTimeout sets the time allowed for a complete response
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", mini212.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() mini212.TransportType {
	return mini212.TransportUART
}
