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

package usb

import (
	"context"
	"errors"
	"testing"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIn struct {
	err   error
	data  []byte
	block bool
	sizes []int
}

func (f *fakeIn) ReadContext(ctx context.Context, buf []byte) (int, error) {
	f.sizes = append(f.sizes, len(buf))
	if f.block {
		<-ctx.Done()
		return 0, gousb.TransferCancelled
	}
	if f.err != nil {
		return 0, f.err
	}
	return copy(buf, f.data), nil
}

type fakeOut struct {
	err     error
	written [][]byte
	short   bool
}

func (f *fakeOut) WriteContext(_ context.Context, buf []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.written = append(f.written, append([]byte(nil), buf...))
	if f.short {
		return len(buf) - 1, nil
	}
	return len(buf), nil
}

func newTestTransport(image, resp *fakeIn, out *fakeOut) (*Transport, *bool) {
	released := false
	return &Transport{
		in: map[mini212.Endpoint]inEndpoint{
			mini212.EndpointImageIn:    image,
			mini212.EndpointResponseIn: resp,
		},
		packet: map[mini212.Endpoint]int{
			mini212.EndpointImageIn:    512,
			mini212.EndpointResponseIn: 64,
		},
		out:     out,
		path:    "usb:1:4",
		timeout: time.Second,
		release: func() error { released = true; return nil },
	}, &released
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		bus     int
		addr    int
		wantErr bool
	}{
		{path: "", bus: 0, addr: 0},
		{path: "usb:1:4", bus: 1, addr: 4},
		{path: "usb:003:012", bus: 3, addr: 12},
		{path: "/dev/ttyACM0", wantErr: true},
		{path: "usb:x:4", wantErr: true},
		{path: "usb:1:y", wantErr: true},
		{path: "usb:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			bus, addr, err := ParsePath(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bus, bus)
			assert.Equal(t, tt.addr, addr)
		})
	}
}

func TestBulkRead_ExactLength(t *testing.T) {
	t.Parallel()

	image := &fakeIn{data: make([]byte, 1024)}
	resp := &fakeIn{data: []byte{0x55, 0xAA, 0x01, 0x00, 0x01, 0xF0, 0x00, 0x00}}
	tr, _ := newTestTransport(image, resp, &fakeOut{})

	data, err := tr.BulkRead(mini212.EndpointImageIn, 1024)
	require.NoError(t, err)
	assert.Len(t, data, 1024)
	assert.Equal(t, []int{1024}, image.sizes)

	data, err = tr.BulkRead(mini212.EndpointResponseIn, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55, 0xAA, 0x01, 0x00, 0x01, 0xF0}, data)
	assert.Equal(t, []int{64}, resp.sizes, "small reads use a full packet buffer")
}

func TestBulkRead_ShortTransfer(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(&fakeIn{data: make([]byte, 100)}, &fakeIn{}, &fakeOut{})

	data, err := tr.BulkRead(mini212.EndpointImageIn, 1024)
	require.ErrorIs(t, err, mini212.ErrShortRead)
	assert.Nil(t, data, "partial data is never returned")
	assert.True(t, mini212.IsRetryable(err))
}

func TestBulkRead_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       *fakeIn
		wantErr  error
		name     string
		timeout  bool
		retrying bool
	}{
		{name: "libusb timeout", in: &fakeIn{err: gousb.ErrorTimeout}, wantErr: mini212.ErrTransportTimeout, timeout: true, retrying: true},
		{name: "transfer timed out", in: &fakeIn{err: gousb.TransferTimedOut}, wantErr: mini212.ErrTransportTimeout, timeout: true, retrying: true},
		{name: "deadline", in: &fakeIn{block: true}, wantErr: mini212.ErrTransportTimeout, timeout: true, retrying: true},
		{name: "unplugged", in: &fakeIn{err: gousb.ErrorNoDevice}, wantErr: mini212.ErrDeviceNotFound},
		{name: "stall", in: &fakeIn{err: gousb.TransferStall}, wantErr: mini212.ErrTransportRead, retrying: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, _ := newTestTransport(tt.in, &fakeIn{}, &fakeOut{})
			require.NoError(t, tr.SetTimeout(10*time.Millisecond))

			_, err := tr.BulkRead(mini212.EndpointImageIn, 16)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.timeout, mini212.IsTimeout(err))
			assert.Equal(t, tt.retrying, mini212.IsRetryable(err))
		})
	}
}

func TestBulkRead_UnknownEndpoint(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(&fakeIn{}, &fakeIn{}, &fakeOut{})
	_, err := tr.BulkRead(mini212.EndpointCommandOut, 1)
	require.ErrorIs(t, err, mini212.ErrUnsupportedEndpoint)
}

func TestBulkWrite(t *testing.T) {
	t.Parallel()

	out := &fakeOut{}
	tr, _ := newTestTransport(&fakeIn{}, &fakeIn{}, out)

	frame := []byte{0x55, 0xAA, 0x07, 0x02, 0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0x05, 0xF0}
	require.NoError(t, tr.BulkWrite(mini212.EndpointCommandOut, frame))
	assert.Equal(t, [][]byte{frame}, out.written)

	require.ErrorIs(t, tr.BulkWrite(mini212.EndpointImageIn, frame), mini212.ErrUnsupportedEndpoint)

	out.short = true
	require.ErrorIs(t, tr.BulkWrite(mini212.EndpointCommandOut, frame), mini212.ErrTransportWrite)

	out.err = errors.New("pipe error")
	require.ErrorIs(t, tr.BulkWrite(mini212.EndpointCommandOut, frame), out.err)
}

func TestClose(t *testing.T) {
	t.Parallel()

	tr, released := newTestTransport(&fakeIn{}, &fakeIn{}, &fakeOut{})
	assert.True(t, tr.IsConnected())
	assert.Equal(t, mini212.TransportUSB, tr.Type())

	require.NoError(t, tr.Close())
	assert.True(t, *released)
	assert.False(t, tr.IsConnected())
	require.NoError(t, tr.Close())

	_, err := tr.BulkRead(mini212.EndpointImageIn, 1)
	require.ErrorIs(t, err, mini212.ErrTransportClosed)
	require.ErrorIs(t, tr.BulkWrite(mini212.EndpointCommandOut, []byte{0x00}), mini212.ErrTransportClosed)
}

func TestNewFromDevice_WrongTransport(t *testing.T) {
	t.Parallel()

	_, err := NewFromDevice(detection.DeviceInfo{Transport: "uart", Path: "/dev/ttyACM0"})
	require.ErrorIs(t, err, mini212.ErrInvalidParameter)

	_, err = New("serial0")
	require.ErrorIs(t, err, ErrInvalidPath)
}
