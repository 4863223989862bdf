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

package session

import (
	"fmt"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/framesync"
)

// Config configures an acquisition session
type Config struct {
	// Sync selects the realignment strategy, geometry and split offset
	Sync framesync.Config
	// ReadTimeout bounds each scan read
	ReadTimeout time.Duration
	// ErrorBackoff is slept after a failed read so an unplugged device does not spin the loop
	ErrorBackoff time.Duration
	// Handshake sends the init command and waits for the ACK in Start
	Handshake bool
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		Sync:         framesync.DefaultConfig(),
		ReadTimeout:  1 * time.Second,
		ErrorBackoff: 10 * time.Millisecond,
		Handshake:    true,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil session config", mini212.ErrInvalidConfig)
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read timeout must be positive, got %v", mini212.ErrInvalidConfig, c.ReadTimeout)
	}
	if c.ErrorBackoff < 0 {
		return fmt.Errorf("%w: error backoff must not be negative, got %v", mini212.ErrInvalidConfig, c.ErrorBackoff)
	}
	return nil
}
