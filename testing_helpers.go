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
	"sync"
	"time"
)

type mockRead struct {
	err  error
	data []byte
}

// MockTransport is an in-memory Transport for tests. Reads are served from a
// per-endpoint queue first, then from the endpoint's default response. Data is
// returned exactly as configured, so tests can model misbehaving devices.
type MockTransport struct {
	queued    map[Endpoint][]mockRead
	defaults  map[Endpoint]mockRead
	readCount map[Endpoint]int
	writes    map[Endpoint][][]byte
	writeErr  error
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		queued:    make(map[Endpoint][]mockRead),
		defaults:  make(map[Endpoint]mockRead),
		readCount: make(map[Endpoint]int),
		writes:    make(map[Endpoint][][]byte),
		timeout:   time.Second,
	}
}

// QueueRead appends a one-shot response for the endpoint
func (m *MockTransport) QueueRead(ep Endpoint, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[ep] = append(m.queued[ep], mockRead{data: append([]byte(nil), data...)})
}

// QueueError appends a one-shot error for the endpoint
func (m *MockTransport) QueueError(ep Endpoint, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[ep] = append(m.queued[ep], mockRead{err: err})
}

// SetResponse sets the response returned once the endpoint's queue is empty
func (m *MockTransport) SetResponse(ep Endpoint, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[ep] = mockRead{data: append([]byte(nil), data...)}
}

// SetError sets the error returned once the endpoint's queue is empty
func (m *MockTransport) SetError(ep Endpoint, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[ep] = mockRead{err: err}
}

// SetWriteError makes every BulkWrite fail with err (nil clears it)
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// BulkRead serves the next queued or default response for the endpoint.
// An endpoint with nothing configured times out.
func (m *MockTransport) BulkRead(ep Endpoint, _ int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransportClosed
	}
	m.readCount[ep]++

	if q := m.queued[ep]; len(q) > 0 {
		m.queued[ep] = q[1:]
		return q[0].data, q[0].err
	}
	if d, ok := m.defaults[ep]; ok {
		if d.err != nil {
			return nil, d.err
		}
		return append([]byte(nil), d.data...), nil
	}
	return nil, NewTimeoutError("BulkRead", ep.String())
}

// BulkWrite records data written to the endpoint
func (m *MockTransport) BulkWrite(ep Endpoint, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrTransportClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes[ep] = append(m.writes[ep], append([]byte(nil), data...))
	return nil
}

// Writes returns everything written to the endpoint
func (m *MockTransport) Writes(ep Endpoint) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes[ep]...)
}

// ReadCount returns the number of reads attempted on the endpoint
func (m *MockTransport) ReadCount(ep Endpoint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCount[ep]
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Close marks the transport as closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetTimeout records the timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected returns true until Close is called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// BlockingMockTransport is a simple mock transport that can block reads on demand
// This is used for testing ACK timeouts and context cancellation
type BlockingMockTransport struct {
	blockChan chan struct{}
	Response  []byte
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockTransport creates a new blocking mock transport
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		timeout:   5 * time.Second,
	}
}

// BulkRead blocks until Unblock() is called, timeout expires, or the transport is closed
func (m *BlockingMockTransport) BulkRead(ep Endpoint, _ int) ([]byte, error) {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return nil, ErrTransportRead
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-blockChan:
	case <-timer.C:
		return nil, NewTimeoutError("BulkRead", ep.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrTransportRead
	}
	return append([]byte(nil), m.Response...), nil
}

// BulkWrite always succeeds
func (*BlockingMockTransport) BulkWrite(Endpoint, []byte) error {
	return nil
}

// Unblock allows one blocked BulkRead to proceed
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks transport as closed
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetResponse configures the data returned by unblocked reads
func (m *BlockingMockTransport) SetResponse(response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = response
}

// SetTimeout configures the timeout for blocking operations
func (m *BlockingMockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected returns true until Close is called
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
