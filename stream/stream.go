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

// Package stream broadcasts corrected frames to websocket clients.
//
// Each frame is sent as one binary message: an 8-byte header of little-endian
// uint16 values (rows, cols, min, max) followed by the samples in row-major
// order, also little-endian uint16.
package stream

import (
	"encoding/binary"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/scan"
	"github.com/ZaparooProject/go-mini212/session"
	"github.com/gorilla/websocket"
)

// HeaderLength is the size of the frame header in bytes
const HeaderLength = 8

const (
	defaultQueueDepth = 4
	writeWait         = time.Second
)

// ErrShortMessage is returned when decoding a message smaller than its header says
var ErrShortMessage = errors.New("stream message too short")

// Encode serialises a frame into a binary stream message
func Encode(f *scan.Frame) []byte {
	stats := f.Stats()

	header := make([]byte, HeaderLength)
	binary.LittleEndian.PutUint16(header[0:], uint16(f.Rows()))
	binary.LittleEndian.PutUint16(header[2:], uint16(f.Cols()))
	binary.LittleEndian.PutUint16(header[4:], stats.Min)
	binary.LittleEndian.PutUint16(header[6:], stats.Max)
	return append(header, f.Bytes()...)
}

// Decode parses a binary stream message back into a frame
func Decode(msg []byte) (*scan.Frame, error) {
	if len(msg) < HeaderLength {
		return nil, ErrShortMessage
	}
	rows := int(binary.LittleEndian.Uint16(msg[0:]))
	cols := int(binary.LittleEndian.Uint16(msg[2:]))
	if len(msg)-HeaderLength < scan.Size(rows, cols) {
		return nil, ErrShortMessage
	}
	return scan.FrameFromBytes(msg[HeaderLength:], rows, cols)
}

// client wraps a websocket connection with its outgoing queue
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans frames out to connected websocket clients. A client that falls
// behind loses frames; the acquisition loop never waits for it.
type Hub struct {
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
	sent     atomic.Uint64
	dropped  atomic.Uint64
	mu       sync.RWMutex
	depth    int
	closed   bool
}

// NewHub constructs an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		depth:   defaultQueueDepth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// local viewer; allow all origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		mini212.Debugf("stream: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.depth)}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.writeLoop(c)

	// incoming messages are ignored; the read loop only detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// add registers c and its writer under the lock. It fails once the hub is closed.
func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	mini212.Debugf("stream: client %s connected (%d total)", c.conn.RemoteAddr(), len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer func() { _ = c.conn.Close() }()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			mini212.Debugf("stream: write to %s failed: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
			// drain so remove's close is the only exit path
			for range c.send {
			}
			return
		}
		h.sent.Add(1)
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Broadcast queues a frame for every client
func (h *Hub) Broadcast(f *scan.Frame) {
	msg := Encode(f)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Handler returns a session frame handler feeding the hub
func (h *Hub) Handler() session.FrameHandler {
	return h.Broadcast
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sent returns the number of messages written to clients
func (h *Hub) Sent() uint64 {
	return h.sent.Load()
}

// Dropped returns the number of messages skipped for slow clients
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client and waits for their writers to finish
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	h.wg.Wait()
}
