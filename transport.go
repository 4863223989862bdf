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

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Endpoint is a USB endpoint address
type Endpoint byte

// Mini212 endpoints
const (
	// EndpointImageIn carries raw scans from the sensor
	EndpointImageIn Endpoint = 0x81
	// EndpointCommandOut accepts command frames
	EndpointCommandOut Endpoint = 0x02
	// EndpointResponseIn carries ACKs and query responses
	EndpointResponseIn Endpoint = 0x83
)

func (e Endpoint) String() string {
	return fmt.Sprintf("EP 0x%02X", byte(e))
}

// Transport defines the interface for bulk communication with a Mini212 module.
// This can be implemented by USB or UART backends.
type Transport interface {
	// BulkRead reads exactly length bytes from the endpoint or returns an error.
	// A short transfer is reported as ErrShortRead, never as partial data.
	BulkRead(ep Endpoint, length int) ([]byte, error)

	// BulkWrite writes data to the endpoint
	BulkWrite(ep Endpoint, data []byte) error

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUSB represents libusb bulk transfers.
	TransportUSB TransportType = "usb"
	// TransportUART represents the serial command channel.
	TransportUART TransportType = "uart"
	// TransportSplit represents a transport routing endpoints to two backends.
	TransportSplit TransportType = "split"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportWithRetry wraps a Transport with retry capabilities
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// BulkRead reads with retry logic
func (t *TransportWithRetry) BulkRead(ep Endpoint, length int) ([]byte, error) {
	var result []byte
	err := RetryWithConfig(context.Background(), t.config, func() error {
		var err error
		result, err = t.transport.BulkRead(ep, length)
		if err != nil {
			return wrapTransportError("BulkRead", err)
		}
		return nil
	})
	return result, err
}

// BulkWrite writes with retry logic
func (t *TransportWithRetry) BulkWrite(ep Endpoint, data []byte) error {
	return RetryWithConfig(context.Background(), t.config, func() error {
		if err := t.transport.BulkWrite(ep, data); err != nil {
			return wrapTransportError("BulkWrite", err)
		}
		return nil
	})
}

func wrapTransportError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{
		Op:        op,
		Err:       err,
		Type:      GetErrorType(err),
		Retryable: IsRetryable(err),
	}
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	if err := t.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on underlying transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}

// Unwrap returns the wrapped transport
func (t *TransportWithRetry) Unwrap() Transport {
	return t.transport
}

// SplitTransport sends command traffic to one transport and image traffic to another.
// Modules configured for USB2.0+UART output accept commands on the serial port
// while scans still arrive over USB.
type SplitTransport struct {
	control Transport
	video   Transport
}

// NewSplitTransport routes EndpointImageIn to video and every other endpoint to control
func NewSplitTransport(control, video Transport) *SplitTransport {
	return &SplitTransport{control: control, video: video}
}

func (s *SplitTransport) route(ep Endpoint) Transport {
	if ep == EndpointImageIn {
		return s.video
	}
	return s.control
}

// BulkRead reads from the transport owning the endpoint
func (s *SplitTransport) BulkRead(ep Endpoint, length int) ([]byte, error) {
	return s.route(ep).BulkRead(ep, length)
}

// BulkWrite writes to the transport owning the endpoint
func (s *SplitTransport) BulkWrite(ep Endpoint, data []byte) error {
	return s.route(ep).BulkWrite(ep, data)
}

// Close closes both transports
func (s *SplitTransport) Close() error {
	return errors.Join(s.control.Close(), s.video.Close())
}

// SetTimeout sets the read timeout on both transports
func (s *SplitTransport) SetTimeout(timeout time.Duration) error {
	return errors.Join(s.control.SetTimeout(timeout), s.video.SetTimeout(timeout))
}

// IsConnected returns true if both transports are connected
func (s *SplitTransport) IsConnected() bool {
	return s.control.IsConnected() && s.video.IsConnected()
}

// Type returns TransportSplit
func (*SplitTransport) Type() TransportType {
	return TransportSplit
}
