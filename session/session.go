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

// Package session sequences an acquisition: handshake once, then stream scans
// through a frame synchronizer and hand realigned frames to a consumer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/framesync"
	"github.com/ZaparooProject/go-mini212/scan"
	"github.com/google/uuid"
)

// Session errors
var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyRunning = errors.New("session already running")
	ErrStopped        = errors.New("session stopped")
)

// FrameHandler receives each realigned frame. The frame is owned by the
// handler; the session keeps no reference to it.
type FrameHandler func(f *scan.Frame)

// Metrics tracks operational counters for a Session
type Metrics struct {
	ScansRead       int64         // Successful bulk reads
	TransportErrors int64         // Failed or timed-out reads
	LengthErrors    int64         // Reads discarded for a wrong byte length
	SyncErrors      int64         // Scans the synchronizer rejected
	FramesEmitted   int64         // Frames handed to the consumer
	LastReadLatency time.Duration // Duration of the last read attempt
}

const noPendingMode = -1

// Session owns the streaming loop and the synchronizer state. Configuration
// setters may be called from any goroutine; they never block the loop.
type Session struct {
	device  *mini212.Device
	config  *Config
	handler FrameHandler
	stop    chan struct{}
	id      uuid.UUID

	stopOnce sync.Once
	state    atomic.Int32

	// pending changes posted by controllers, applied once per iteration
	splitOffset atomic.Int64
	mode        atomic.Int32
	pendingMode atomic.Int32

	scansRead       atomic.Int64
	transportErrors atomic.Int64
	lengthErrors    atomic.Int64
	syncErrors      atomic.Int64
	framesEmitted   atomic.Int64
	lastReadLatency atomic.Int64
}

// New creates a session for device. The configuration is copied.
func New(device *mini212.Device, config *Config, handler FrameHandler) (*Session, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", mini212.ErrInvalidParameter)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: nil frame handler", mini212.ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	s := &Session{
		id:      uuid.New(),
		device:  device,
		config:  &cfg,
		handler: handler,
		stop:    make(chan struct{}),
	}
	s.splitOffset.Store(int64(cfg.Sync.SplitOffset))
	s.mode.Store(int32(cfg.Sync.Mode))
	s.pendingMode.Store(noPendingMode)
	return s, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id.String()
}

// State returns the lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Start performs the one-time handshake. A timeout, transport error or ACK
// mismatch fails the start; the session can be started again afterwards.
func (s *Session) Start(ctx context.Context) error {
	switch s.State() {
	case StateIdle:
	case StateStopped:
		return ErrStopped
	default:
		return ErrAlreadyRunning
	}

	if err := s.device.SetTimeout(s.config.ReadTimeout); err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}

	if s.config.Handshake {
		if err := s.device.Init(ctx); err != nil {
			return fmt.Errorf("session %s: %w", s.id, err)
		}
	}

	s.state.Store(int32(StateReady))
	mini212.Debugf("session %s ready (%v, split offset %d)", s.id, s.Mode(), s.SplitOffset())
	return nil
}

// Run streams until ctx is done or Shutdown is called. Cancellation is checked
// once per iteration. Read, length and sync errors skip the iteration and never
// end the loop. Run returns nil after Shutdown and ctx.Err() after cancellation.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateReady), int32(StateStreaming)) {
		if s.State() == StateStreaming {
			return ErrAlreadyRunning
		}
		if s.State() == StateStopped {
			return ErrStopped
		}
		return ErrNotStarted
	}
	defer s.state.Store(int32(StateStopped))

	syncCfg := s.config.Sync
	syncCfg.SplitOffset = s.SplitOffset()
	syncCfg.Mode = s.Mode()
	synchronizer, err := framesync.New(syncCfg)
	if err != nil {
		return err
	}

	size := scan.Size(syncCfg.Rows, syncCfg.Cols)

	for {
		select {
		case <-ctx.Done():
			mini212.Debugf("session %s cancelled: %v", s.id, ctx.Err())
			return ctx.Err()
		case <-s.stop:
			mini212.Debugf("session %s shut down", s.id)
			return nil
		default:
		}

		synchronizer = s.applyPending(synchronizer)

		start := time.Now()
		data, err := s.device.ReadScan(size)
		s.lastReadLatency.Store(time.Since(start).Nanoseconds())
		if err != nil {
			s.transportErrors.Add(1)
			mini212.Debugf("session %s read failed: %v", s.id, err)
			s.backoff(ctx)
			continue
		}
		s.scansRead.Add(1)

		raw, err := scan.FromBytes(data, syncCfg.Rows, syncCfg.Cols)
		if err != nil {
			s.lengthErrors.Add(1)
			mini212.Debugf("session %s discarded scan: %v", s.id, err)
			continue
		}

		f, ok, err := synchronizer.Process(raw)
		if err != nil {
			s.syncErrors.Add(1)
			mini212.Debugf("session %s sync failed: %v", s.id, err)
			continue
		}
		if !ok {
			continue
		}

		s.framesEmitted.Add(1)
		s.handler(f)
	}
}

// applyPending applies controller changes. A mode change starts a fresh
// synchronizer; an offset change keeps the carry.
func (s *Session) applyPending(current framesync.Synchronizer) framesync.Synchronizer {
	if m := s.pendingMode.Swap(noPendingMode); m != noPendingMode && framesync.Mode(m) != current.Mode() {
		cfg := s.config.Sync
		cfg.Mode = framesync.Mode(m)
		cfg.SplitOffset = s.SplitOffset()
		next, err := framesync.New(cfg)
		if err != nil {
			mini212.Debugf("session %s ignoring mode change: %v", s.id, err)
		} else {
			mini212.Debugf("session %s switched to %v", s.id, next.Mode())
			current = next
		}
	}

	if offset := s.SplitOffset(); offset != current.SplitOffset() {
		if err := current.SetSplitOffset(offset); err != nil {
			mini212.Debugf("session %s ignoring split offset %d: %v", s.id, offset, err)
		}
	}
	return current
}

// backoff paces the loop after a failed read. Cancellation and Shutdown end
// the wait early.
func (s *Session) backoff(ctx context.Context) {
	if s.config.ErrorBackoff <= 0 {
		return
	}
	timer := time.NewTimer(s.config.ErrorBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-s.stop:
	}
}

// SetSplitOffset validates and posts a new split offset. It takes effect on
// the next scan; an invalid value leaves the current one in place.
func (s *Session) SetSplitOffset(offset int) error {
	if err := framesync.ValidateSplitOffset(offset, s.config.Sync.Rows); err != nil {
		return err
	}
	s.splitOffset.Store(int64(offset))
	return nil
}

// SplitOffset returns the most recently accepted split offset
func (s *Session) SplitOffset() int {
	return int(s.splitOffset.Load())
}

// SetMode validates and posts a strategy change. Switching strategy discards
// any carried rows.
func (s *Session) SetMode(mode framesync.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %v", mini212.ErrInvalidConfig, mode)
	}
	s.mode.Store(int32(mode))
	s.pendingMode.Store(int32(mode))
	return nil
}

// Mode returns the most recently accepted strategy
func (s *Session) Mode() framesync.Mode {
	return framesync.Mode(s.mode.Load())
}

// Shutdown asks the loop to stop after the current iteration. It is idempotent.
func (s *Session) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Metrics returns a snapshot of the counters
func (s *Session) Metrics() Metrics {
	return Metrics{
		ScansRead:       s.scansRead.Load(),
		TransportErrors: s.transportErrors.Load(),
		LengthErrors:    s.lengthErrors.Load(),
		SyncErrors:      s.syncErrors.Load(),
		FramesEmitted:   s.framesEmitted.Load(),
		LastReadLatency: time.Duration(s.lastReadLatency.Load()),
	}
}
