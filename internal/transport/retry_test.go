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

package transport

import (
	"errors"
	"testing"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	calls, retries := 0, 0
	got, err := WithRetry(RetryConfig{
		MaxRetries: 3,
		OnRetry:    func() error { retries++; return nil },
	}, func() (int, bool, error) {
		calls++
		return calls, calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 2, retries)
}

func TestWithRetry_Exhausted(t *testing.T) {
	t.Parallel()

	_, err := WithRetry(RetryConfig{MaxRetries: 2, Description: "/dev/ttyACM0"}, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, mini212.ErrCommunicationFailed)
	assert.Contains(t, err.Error(), "/dev/ttyACM0")
}

func TestWithRetry_PermanentError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	_, err := WithRetry(RetryConfig{MaxRetries: 5}, func() (int, bool, error) {
		calls++
		return 0, false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestReadExact(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{{0x55}, {}, {0xAA, 0x01}, {0x00, 0x01, 0xF0}}
	read := func(buf []byte) (int, error) {
		if len(chunks) == 0 {
			return 0, nil
		}
		n := copy(buf, chunks[0])
		chunks = chunks[1:]
		return n, nil
	}

	data, err := ReadExact(time.Second, "test", 6, read)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55, 0xAA, 0x01, 0x00, 0x01, 0xF0}, data)
}

func TestReadExact_Timeouts(t *testing.T) {
	t.Parallel()

	_, err := ReadExact(5*time.Millisecond, "test", 4, func([]byte) (int, error) { return 0, nil })
	require.ErrorIs(t, err, mini212.ErrTransportTimeout)
	assert.True(t, mini212.IsTimeout(err))

	sent := false
	_, err = ReadExact(5*time.Millisecond, "test", 4, func(buf []byte) (int, error) {
		if sent {
			return 0, nil
		}
		sent = true
		return copy(buf, []byte{0x55, 0xAA}), nil
	})
	require.ErrorIs(t, err, mini212.ErrShortRead)
	assert.Contains(t, err.Error(), "got 2 of 4 bytes")
}

func TestReadExact_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("port vanished")
	_, err := ReadExact(time.Second, "test", 4, func([]byte) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.True(t, mini212.IsRetryable(err))
}
