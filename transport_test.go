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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    1 * time.Microsecond, // Minimal delay for fast tests
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      100 * time.Millisecond,
	}
}

// TestTransportWithRetry_NewTransportWithRetry tests the creation of TransportWithRetry wrapper
func TestTransportWithRetry_NewTransportWithRetry(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, nil)
	assert.Equal(t, DefaultRetryConfig(), wrapper.config)
	assert.Equal(t, mockTransport, wrapper.Unwrap())

	custom := fastRetryConfig(5)
	wrapper = NewTransportWithRetry(mockTransport, custom)
	assert.Same(t, custom, wrapper.config)
}

// TestTransportWithRetry_BulkRead tests the retry logic for reads
func TestTransportWithRetry_BulkRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setupMock     func(*MockTransport)
		expectedError error
		name          string
		expected      []byte
		expectedCalls int
		attempts      int
	}{
		{
			name: "Success on first attempt",
			setupMock: func(m *MockTransport) {
				m.QueueRead(EndpointResponseIn, []byte{0x01})
			},
			attempts:      3,
			expected:      []byte{0x01},
			expectedCalls: 1,
		},
		{
			name: "Success after timeouts",
			setupMock: func(m *MockTransport) {
				m.QueueError(EndpointResponseIn, NewTimeoutError("BulkRead", "test"))
				m.QueueError(EndpointResponseIn, ErrTransportRead)
				m.QueueRead(EndpointResponseIn, []byte{0x02})
			},
			attempts:      3,
			expected:      []byte{0x02},
			expectedCalls: 3,
		},
		{
			name: "Retries exhausted",
			setupMock: func(m *MockTransport) {
				m.SetError(EndpointResponseIn, ErrShortRead)
			},
			attempts:      2,
			expectedError: ErrShortRead,
			expectedCalls: 2,
		},
		{
			name: "Permanent error not retried",
			setupMock: func(m *MockTransport) {
				m.SetError(EndpointResponseIn, ErrUnsupportedEndpoint)
			},
			attempts:      5,
			expectedError: ErrUnsupportedEndpoint,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockTransport := NewMockTransport()
			tt.setupMock(mockTransport)
			wrapper := NewTransportWithRetry(mockTransport, fastRetryConfig(tt.attempts))

			result, err := wrapper.BulkRead(EndpointResponseIn, 1)
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				var te *TransportError
				assert.True(t, errors.As(err, &te), "errors are reported as TransportError")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
			assert.Equal(t, tt.expectedCalls, mockTransport.ReadCount(EndpointResponseIn))
		})
	}
}

func TestTransportWithRetry_BulkWrite(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, fastRetryConfig(3))

	require.NoError(t, wrapper.BulkWrite(EndpointCommandOut, []byte{0xAA}))
	assert.Equal(t, [][]byte{{0xAA}}, mockTransport.Writes(EndpointCommandOut))

	mockTransport.SetWriteError(ErrTransportWrite)
	err := wrapper.BulkWrite(EndpointCommandOut, []byte{0xBB})
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.Contains(t, err.Error(), "retries exhausted after 3 attempts")
}

func TestTransportWithRetry_Delegates(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport()
	wrapper := NewTransportWithRetry(mockTransport, nil)

	require.NoError(t, wrapper.SetTimeout(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, mockTransport.Timeout())
	assert.Equal(t, TransportMock, wrapper.Type())

	newConfig := fastRetryConfig(7)
	wrapper.SetRetryConfig(newConfig)
	assert.Equal(t, newConfig, wrapper.config)

	assert.True(t, wrapper.IsConnected())
	require.NoError(t, wrapper.Close())
	assert.False(t, wrapper.IsConnected())
}

func TestSplitTransport_Routing(t *testing.T) {
	t.Parallel()

	control := NewMockTransport()
	video := NewMockTransport()
	control.SetResponse(EndpointResponseIn, []byte{0x55})
	video.SetResponse(EndpointImageIn, []byte{0x81})

	split := NewSplitTransport(control, video)
	assert.Equal(t, TransportSplit, split.Type())

	data, err := split.BulkRead(EndpointImageIn, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81}, data)

	data, err = split.BulkRead(EndpointResponseIn, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55}, data)

	require.NoError(t, split.BulkWrite(EndpointCommandOut, []byte{0x01}))
	assert.Len(t, control.Writes(EndpointCommandOut), 1)
	assert.Empty(t, video.Writes(EndpointCommandOut))

	require.NoError(t, split.SetTimeout(time.Millisecond))
	assert.Equal(t, time.Millisecond, control.Timeout())
	assert.Equal(t, time.Millisecond, video.Timeout())

	assert.True(t, split.IsConnected())
	require.NoError(t, video.Close())
	assert.False(t, split.IsConnected())
	require.NoError(t, split.Close())
	assert.False(t, control.IsConnected())
}
