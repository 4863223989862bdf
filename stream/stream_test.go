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

package stream

import (
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mini212/scan"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, rows, cols int, base uint16) *scan.Frame {
	t.Helper()
	data := make([]byte, scan.Size(rows, cols))
	for i := 0; i < rows*cols; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], base+uint16(i))
	}
	f, err := scan.FrameFromBytes(data, rows, cols)
	require.NoError(t, err)
	return f
}

func TestEncode(t *testing.T) {
	t.Parallel()

	msg := Encode(testFrame(t, 2, 3, 100))
	require.Len(t, msg, HeaderLength+2*3*2)

	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(msg[0:]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(msg[2:]))
	assert.Equal(t, uint16(100), binary.LittleEndian.Uint16(msg[4:]), "min")
	assert.Equal(t, uint16(105), binary.LittleEndian.Uint16(msg[6:]), "max")
	assert.Equal(t, uint16(100), binary.LittleEndian.Uint16(msg[8:]))
	assert.Equal(t, uint16(105), binary.LittleEndian.Uint16(msg[len(msg)-2:]))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	f := testFrame(t, 4, 5, 7)
	got, err := Decode(Encode(f))
	require.NoError(t, err)
	assert.Equal(t, f.Samples(), got.Samples())
	assert.Equal(t, 4, got.Rows())

	_, err = Decode([]byte{0x01})
	require.ErrorIs(t, err, ErrShortMessage)

	_, err = Decode(Encode(f)[:20])
	require.ErrorIs(t, err, ErrShortMessage)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	first := dial(t, srv)
	defer func() { _ = first.Close() }()
	second := dial(t, srv)
	defer func() { _ = second.Close() }()
	waitClients(t, hub, 2)

	f := testFrame(t, 3, 4, 1000)
	hub.Handler()(f)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		kind, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, kind)

		got, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, f.Samples(), got.Samples())
	}

	require.Eventually(t, func() bool { return hub.Sent() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_ClientDisconnect(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitClients(t, hub, 0)

	// broadcasting without clients is a no-op
	hub.Broadcast(testFrame(t, 1, 1, 0))
	assert.Equal(t, uint64(0), hub.Dropped())
}

func TestHub_SlowClientDropsFrames(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	hub.depth = 1
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	defer func() { _ = conn.Close() }()
	waitClients(t, hub, 1)

	// the client never reads, so its queue and socket buffers fill up
	f := testFrame(t, 192, 256, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 64 {
			hub.Broadcast(f)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
	assert.Positive(t, hub.Dropped())
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer func() { _ = conn.Close() }()
	waitClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late := dial(t, srv)
	defer func() { _ = late.Close() }()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_CloseWhileClientsConnect(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	const clients = 16
	conns := make(chan *websocket.Conn, clients)
	var wg sync.WaitGroup
	for range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				conns <- conn
			}
		}()
	}

	hub.Close()
	wg.Wait()
	close(conns)

	// every client, registered before or after Close, ends up disconnected
	for conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		_ = conn.Close()
	}
	assert.Equal(t, 0, hub.Clients())
}
