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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mini212/internal/frame"
)

// Transport errors
var (
	ErrTransportTimeout    = errors.New("transport timeout")
	ErrTransportRead       = errors.New("transport read failed")
	ErrTransportWrite      = errors.New("transport write failed")
	ErrTransportClosed     = errors.New("transport closed")
	ErrShortRead           = errors.New("short read")
	ErrUnsupportedEndpoint = errors.New("endpoint not supported by transport")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrCommunicationFailed = errors.New("communication failed")
)

// Protocol errors
var (
	ErrNoACK         = errors.New("no ACK received")
	ErrBadACK        = errors.New("unexpected ACK signature")
	ErrFrameTooLarge = frame.ErrFrameTooLarge
	ErrFrameCorrupt  = frame.ErrChecksumMismatch
)

// Decode and configuration errors
var (
	ErrWrongLength      = errors.New("wrong length")
	ErrBadHeader        = errors.New("bad response header")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType classifies transport failures for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by retrying
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on the next attempt
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by an expired deadline
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError describes a failed transport operation
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error; retryability follows the error type
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// DecodeError reports a malformed device response. The raw bytes are kept for diagnostics.
type DecodeError struct {
	Err  error
	What string
	Raw  []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (raw % X)", e.What, e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(what string, err error, raw []byte) *DecodeError {
	return &DecodeError{
		What: what,
		Err:  err,
		Raw:  append([]byte(nil), raw...),
	}
}

// IsRetryable reports whether err is worth retrying. Only direct sentinel
// matches and TransportErrors flagged retryable qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrShortRead),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupt):
		return true
	default:
		return false
	}
}

// GetErrorType classifies an error for TransportError construction
func GetErrorType(err error) ErrorType {
	var te *TransportError
	switch {
	case err == nil:
		return ErrorTypePermanent
	case errors.As(err, &te):
		return te.Type
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case IsRetryable(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsTimeout reports whether err was caused by a transport timeout
func IsTimeout(err error) bool {
	return GetErrorType(err) == ErrorTypeTimeout
}
