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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithRetryConfig sets the retry configuration for the device
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets the default read timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		return d.SetTimeout(timeout)
	}
}

// WithAckTimeout bounds the wait for command ACKs
func WithAckTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: ack timeout must be positive, got %v", ErrInvalidConfig, timeout)
		}
		d.config.AckTimeout = timeout
		return nil
	}
}

// WithMaxRetries sets the maximum number of attempts for command writes and responses
func WithMaxRetries(maxAttempts int) Option {
	return func(device *Device) error {
		config := device.config.RetryConfig
		if config == nil {
			config = DefaultRetryConfig()
		}
		config.MaxAttempts = maxAttempts
		device.SetRetryConfig(config)
		return nil
	}
}

// WithRetryBackoff sets the initial backoff duration for retries
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(device *Device) error {
		config := device.config.RetryConfig
		if config == nil {
			config = DefaultRetryConfig()
		}
		config.InitialBackoff = initialBackoff
		device.SetRetryConfig(config)
		return nil
	}
}

// WithInitPayload overrides the digital video page written by Init
func WithInitPayload(payload []byte) Option {
	return func(d *Device) error {
		// validate eagerly so a bad payload fails before any I/O
		if _, err := DigitalVideoSet(payload).Encode(); err != nil {
			return err
		}
		d.config.InitPayload = append([]byte(nil), payload...)
		return nil
	}
}
