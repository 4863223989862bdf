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

// Package transport provides internal transport utilities
package transport

import (
	"fmt"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
)

// RetryOperation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	OnRetry     func() error
	Description string
	MaxRetries  int
	RetryDelay  time.Duration
}

// WithRetry executes an operation with retry logic
func WithRetry[T any](config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}

	return zero, mini212.NewTransportError("retry", config.Description,
		mini212.ErrCommunicationFailed, mini212.ErrorTypeTransient)
}

// TimeoutRetry repeats operation until it stops asking for a retry or the
// timeout expires
func TimeoutRetry[T any](timeout time.Duration, port string, operation RetryOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, mini212.NewTimeoutError("BulkRead", port)
		}
		time.Sleep(time.Millisecond)
	}
}

// ReadFunc reads into buf and returns the number of bytes read. Returning
// zero bytes without an error means no data was available yet.
type ReadFunc func(buf []byte) (int, error)

// ReadExact accumulates reads until length bytes arrive. When the timeout
// expires with some data received the result is ErrShortRead, with none it is
// a timeout. Partial data is never returned.
func ReadExact(timeout time.Duration, port string, length int, read ReadFunc) ([]byte, error) {
	buf := make([]byte, length)
	total := 0

	data, err := TimeoutRetry(timeout, port, func() ([]byte, bool, error) {
		n, err := read(buf[total:])
		if err != nil {
			return nil, false, mini212.NewTransportError("BulkRead", port, err, mini212.ErrorTypeTransient)
		}
		total += n
		if total < length {
			return nil, true, nil
		}
		return buf, false, nil
	})
	if err != nil && mini212.IsTimeout(err) && total > 0 {
		return nil, mini212.NewTransportError("BulkRead", port,
			fmt.Errorf("%w: got %d of %d bytes", mini212.ErrShortRead, total, length), mini212.ErrorTypeTransient)
	}
	return data, err
}
