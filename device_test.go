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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAck = []byte{0x55, 0xAA, 0x01, 0x00, 0x01, 0xF0}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	mock := NewMockTransport()
	device, err := New(mock)
	require.NoError(t, err)
	assert.Equal(t, mock, device.Transport())
	assert.Equal(t, time.Second, device.Config().Timeout)
	assert.Equal(t, DefaultInitPayload, device.Config().InitPayload)
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock,
		WithTimeout(2*time.Second),
		WithAckTimeout(100*time.Millisecond),
		WithMaxRetries(5),
		WithRetryBackoff(time.Microsecond),
		WithInitPayload([]byte{0x01, 0x02}),
	)
	require.NoError(t, err)

	cfg := device.Config()
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, mock.Timeout())
	assert.Equal(t, 100*time.Millisecond, cfg.AckTimeout)
	require.NotNil(t, cfg.RetryConfig)
	assert.Equal(t, 5, cfg.RetryConfig.MaxAttempts)
	assert.Equal(t, time.Microsecond, cfg.RetryConfig.InitialBackoff)
	assert.Equal(t, []byte{0x01, 0x02}, cfg.InitPayload)
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opt     Option
		wantErr error
		name    string
	}{
		{name: "zero timeout", opt: WithTimeout(0), wantErr: ErrInvalidConfig},
		{name: "negative ack timeout", opt: WithAckTimeout(-time.Second), wantErr: ErrInvalidConfig},
		{name: "oversized init payload", opt: WithInitPayload(make([]byte, 6)), wantErr: ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(NewMockTransport(), tt.opt)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDevice_Init(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(EndpointResponseIn, testAck)

	device, err := New(mock)
	require.NoError(t, err)
	require.NoError(t, device.Init(context.Background()))

	writes := mock.Writes(EndpointCommandOut)
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x55, 0xAA, 0x07, 0x02, 0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0x05, 0xF0}, writes[0])
	assert.Equal(t, 1, mock.ReadCount(EndpointResponseIn))
}

func TestDevice_SendCommand_AckWithTrailingBytes(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(EndpointResponseIn, append(append([]byte(nil), testAck...), 0x00, 0x00))

	device, err := New(mock)
	require.NoError(t, err)
	require.NoError(t, device.SendCommand(context.Background(), DigitalVideoSet([]byte{0x03})))
}

func TestDevice_SendCommand_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup     func(*MockTransport)
		wantErr   error
		name      string
		cmd       Command
		wantWrite bool
	}{
		{
			name:    "frame too large fails before I/O",
			setup:   func(*MockTransport) {},
			cmd:     DigitalVideoSet(make([]byte, 8)),
			wantErr: ErrFrameTooLarge,
		},
		{
			name: "ack mismatch",
			setup: func(m *MockTransport) {
				m.SetResponse(EndpointResponseIn, []byte{0x55, 0xAA, 0x01, 0x00, 0x02, 0xF0})
			},
			cmd:       DigitalVideoQuery(),
			wantErr:   ErrBadACK,
			wantWrite: true,
		},
		{
			name: "short ack",
			setup: func(m *MockTransport) {
				m.SetResponse(EndpointResponseIn, testAck[:4])
			},
			cmd:       DigitalVideoQuery(),
			wantErr:   ErrBadACK,
			wantWrite: true,
		},
		{
			name: "ack read error",
			setup: func(m *MockTransport) {
				m.SetError(EndpointResponseIn, ErrTransportRead)
			},
			cmd:       DigitalVideoQuery(),
			wantErr:   ErrNoACK,
			wantWrite: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockTransport()
			tt.setup(mock)

			device, err := New(mock)
			require.NoError(t, err)

			err = device.SendCommand(context.Background(), tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantWrite {
				assert.Len(t, mock.Writes(EndpointCommandOut), 1)
			} else {
				assert.Empty(t, mock.Writes(EndpointCommandOut))
			}
		})
	}
}

func TestDevice_AckMismatchNotRetried(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(EndpointResponseIn, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	device, err := New(mock, WithMaxRetries(5), WithRetryBackoff(time.Microsecond))
	require.NoError(t, err)

	err = device.Init(context.Background())
	require.ErrorIs(t, err, ErrBadACK)
	assert.Equal(t, 1, mock.ReadCount(EndpointResponseIn))
	assert.Len(t, mock.Writes(EndpointCommandOut), 1)
}

func TestDevice_AckTimeout(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport()
	defer func() { _ = blocking.Close() }()

	device, err := New(blocking, WithAckTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	err = device.Init(context.Background())
	require.ErrorIs(t, err, ErrNoACK)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDevice_QueryVideoConfig(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(EndpointResponseIn, testAck)
	mock.QueueRead(EndpointResponseIn, sampleConfigResponse())

	device, err := New(mock)
	require.NoError(t, err)

	cfg, err := device.QueryVideoConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Master", cfg.SyncMode.Label)
	assert.Equal(t, "Falling Edge", cfg.ClockEdge.Label)

	writes := mock.Writes(EndpointCommandOut)
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x55, 0xAA, 0x07, 0x02, 0x01, 0x80, 0x00, 0x00, 0x00, 0x00, 0x84, 0xF0}, writes[0])
}

func TestDevice_QueryVideoConfig_RetriesResponse(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(EndpointResponseIn, testAck)
	mock.QueueError(EndpointResponseIn, NewTimeoutError("BulkRead", "test"))
	mock.QueueRead(EndpointResponseIn, sampleConfigResponse())

	device, err := New(mock, WithMaxRetries(3), WithRetryBackoff(time.Microsecond))
	require.NoError(t, err)

	cfg, err := device.QueryVideoConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Y16", cfg.VideoFormat.Label)
}

func TestDevice_QueryVideoConfig_Malformed(t *testing.T) {
	t.Parallel()

	bad := sampleConfigResponse()
	bad[3] = 0x09

	mock := NewMockTransport()
	mock.QueueRead(EndpointResponseIn, testAck)
	mock.QueueRead(EndpointResponseIn, bad)

	device, err := New(mock)
	require.NoError(t, err)

	_, err = device.QueryVideoConfig(context.Background())
	require.ErrorIs(t, err, ErrBadHeader)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, bad, de.Raw)
}

func TestDevice_ReadScan(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(EndpointImageIn, []byte{1, 2, 3, 4})
	mock.QueueError(EndpointImageIn, ErrTransportRead)

	device, err := New(mock, WithMaxRetries(5))
	require.NoError(t, err)

	data, err := device.ReadScan(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = device.ReadScan(4)
	require.ErrorIs(t, err, ErrTransportRead)
	assert.Equal(t, 2, mock.ReadCount(EndpointImageIn), "scan reads are never retried internally")
}

func TestConnectDevice(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(EndpointResponseIn, testAck)

	device, err := ConnectDevice(context.Background(), "usb:1:4",
		WithTransportFactory(func(path string) (Transport, error) {
			assert.Equal(t, "usb:1:4", path)
			return mock, nil
		}),
		WithDeviceOptions(WithTimeout(300*time.Millisecond)),
	)
	require.NoError(t, err)
	assert.Len(t, mock.Writes(EndpointCommandOut), 1)
	assert.Equal(t, 300*time.Millisecond, mock.Timeout())
	require.NoError(t, device.Close())
	assert.False(t, mock.IsConnected())
}

func TestConnectDevice_Failures(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "usb:1:4")
	require.Error(t, err)

	_, err = ConnectDevice(context.Background(), "usb:1:4",
		WithTransportFactory(func(string) (Transport, error) { return nil, errors.New("boom") }))
	require.ErrorContains(t, err, "boom")

	mock := NewMockTransport()
	_, err = ConnectDevice(context.Background(), "usb:1:4",
		WithTransportFactory(func(string) (Transport, error) { return mock, nil }))
	require.ErrorIs(t, err, ErrNoACK)
	assert.False(t, mock.IsConnected(), "transport must be closed when init fails")

	skip := NewMockTransport()
	device, err := ConnectDevice(context.Background(), "usb:1:4", WithoutInit(),
		WithTransportFactory(func(string) (Transport, error) { return skip, nil }))
	require.NoError(t, err)
	assert.Empty(t, skip.Writes(EndpointCommandOut))
	require.NoError(t, device.Close())
}

func TestConnectDevice_AutoDetectRequiresFactory(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "", WithAutoDetection(),
		WithDetectOptions(&detection.Options{Timeout: time.Millisecond}))
	require.ErrorContains(t, err, "transport device factory not provided")
}

func TestDevice_SetVideoConfig(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(EndpointResponseIn, testAck)

	device, err := New(mock)
	require.NoError(t, err)
	require.NoError(t, device.SetVideoConfig(context.Background(), []byte{0x03, 0x00, 0x00, 0x00, 0x03}))

	writes := mock.Writes(EndpointCommandOut)
	require.Len(t, writes, 1)
	assert.Equal(t, byte(0x03), writes[0][9])
	assert.Equal(t, byte(0x07^0x02^0x01^0x03^0x03), writes[0][10])
}

type staticDetector struct {
	transport string
	devices   []detection.DeviceInfo
}

func (d staticDetector) Transport() string { return d.transport }

func (d staticDetector) Detect(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
	return d.devices, nil
}

func TestConnectDevice_AutoDetectSkipsRejectedDevices(t *testing.T) {
	t.Parallel()

	// both interfaces of one module, equally confident; the serial one sorts first
	detection.RegisterDetector(staticDetector{transport: "autodetect-serial", devices: []detection.DeviceInfo{
		{Transport: "autodetect-serial", Path: "/dev/ttyACM0", Confidence: detection.High},
	}})
	detection.RegisterDetector(staticDetector{transport: "autodetect-usb", devices: []detection.DeviceInfo{
		{Transport: "autodetect-usb", Path: "usb:1:4", Confidence: detection.High},
	}})

	mock := NewMockTransport()
	var tried []string
	device, err := ConnectDevice(context.Background(), "", WithAutoDetection(), WithoutInit(),
		WithDetectOptions(&detection.Options{Transports: []string{"autodetect-serial", "autodetect-usb"}}),
		WithTransportFromDeviceFactory(func(info detection.DeviceInfo) (Transport, error) {
			tried = append(tried, info.Path)
			if info.Transport != "autodetect-usb" {
				return nil, fmt.Errorf("unsupported transport type for streaming: %s", info.Transport)
			}
			return mock, nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyACM0", "usb:1:4"}, tried)
	assert.Same(t, mock, device.Transport())
	require.NoError(t, device.Close())

	_, err = ConnectDevice(context.Background(), "", WithAutoDetection(), WithoutInit(),
		WithDetectOptions(&detection.Options{Transports: []string{"autodetect-serial"}}),
		WithTransportFromDeviceFactory(func(detection.DeviceInfo) (Transport, error) {
			return nil, errors.New("rejected")
		}),
	)
	require.ErrorContains(t, err, "/dev/ttyACM0: rejected")
}
