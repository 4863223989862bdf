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
	"time"

	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/ZaparooProject/go-mini212/internal/frame"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for command writes and responses
	RetryConfig *RetryConfig
	// InitPayload is the digital video page payload written by Init
	InitPayload []byte
	// Timeout is the default read timeout, used for scans and responses
	Timeout time.Duration
	// AckTimeout bounds the wait for an ACK after each command
	AckTimeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: nil,
		InitPayload: append([]byte(nil), DefaultInitPayload...),
		Timeout:     1 * time.Second,
		AckTimeout:  500 * time.Millisecond,
	}
}

// Device represents a Mini212 thermal imaging module
//
// Thread Safety: Device is NOT thread-safe. The command handshake and the scan
// reads must not overlap; a session performs the handshake before it starts
// streaming.
type Device struct {
	// raw is used for ACK and scan reads, which must never be retried internally
	raw       Transport
	transport Transport
	config    *DeviceConfig
}

// New creates a new Mini212 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		raw:       transport,
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.raw
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// SetTimeout sets the default read timeout
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, timeout)
	}
	d.config.Timeout = timeout
	if err := d.raw.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig enables retries for command writes and query responses.
// A nil config disables them.
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
	if config == nil {
		d.transport = d.raw
		return
	}
	if tr, ok := d.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(config)
		return
	}
	d.transport = NewTransportWithRetry(d.raw, config)
}

// Init writes the configured digital video page and waits for the ACK.
// It is the one-time handshake performed before streaming.
func (d *Device) Init(ctx context.Context) error {
	if err := d.SetVideoConfig(ctx, d.config.InitPayload); err != nil {
		return fmt.Errorf("init handshake failed: %w", err)
	}
	debugln("init handshake complete")
	return nil
}

// SetVideoConfig writes a digital video page payload and waits for the ACK
func (d *Device) SetVideoConfig(ctx context.Context, payload []byte) error {
	if err := d.SendCommand(ctx, DigitalVideoSet(payload)); err != nil {
		return fmt.Errorf("video config set failed: %w", err)
	}
	return nil
}

// SendCommand encodes cmd, writes it to the command endpoint and waits for the ACK
func (d *Device) SendCommand(ctx context.Context, cmd Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := frame.VerifyFrame(data); err != nil {
		return fmt.Errorf("refusing to send corrupt frame: %w", err)
	}

	debugf("TX % X", data)
	if err := d.transport.BulkWrite(EndpointCommandOut, data); err != nil {
		return fmt.Errorf("failed to write command 0x%02X/0x%02X: %w", cmd.Type, cmd.Sub, err)
	}

	return d.waitAck(ctx)
}

// waitAck reads the ACK with the configured bounded timeout. A mismatch is
// reported to the caller and never retried here.
func (d *Device) waitAck(ctx context.Context) error {
	ackCtx, cancel := context.WithTimeout(ctx, d.config.AckTimeout)
	defer cancel()
	defer d.restoreTimeout()

	resp, err := AsTransportContext(d.raw).BulkReadContext(ackCtx, EndpointResponseIn, frame.AckLength)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoACK, err)
	}

	debugf("RX ACK % X", resp)
	if !frame.VerifyAck(resp) {
		return newDecodeError("ack", ErrBadACK, resp)
	}
	return nil
}

func (d *Device) restoreTimeout() {
	if err := d.raw.SetTimeout(d.config.Timeout); err != nil {
		debugf("failed to restore transport timeout: %v", err)
	}
}

// QueryVideoConfig reads back and decodes the digital video page
func (d *Device) QueryVideoConfig(ctx context.Context) (*VideoConfig, error) {
	if err := d.SendCommand(ctx, DigitalVideoQuery()); err != nil {
		return nil, fmt.Errorf("video config query failed: %w", err)
	}

	var resp []byte
	err := RetryWithConfig(ctx, d.responseRetryConfig(), func() error {
		var err error
		resp, err = d.raw.BulkRead(EndpointResponseIn, frame.ConfigResponseLen)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read video config response: %w", err)
	}

	debugf("RX config % X", resp)
	return DecodeVideoConfig(resp)
}

func (d *Device) responseRetryConfig() *RetryConfig {
	if d.config.RetryConfig != nil {
		return d.config.RetryConfig
	}
	return &RetryConfig{MaxAttempts: 1}
}

// ReadScan reads one raw scan of length bytes from the image endpoint.
// Errors are returned as-is; the caller decides whether to retry.
func (d *Device) ReadScan(length int) ([]byte, error) {
	data, err := d.raw.BulkRead(EndpointImageIn, length)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.raw != nil {
		if err := d.raw.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for device connection
type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	detectOptions          *detection.Options
	deviceOptions          []Option
	autoDetect             bool
	skipInit               bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDetectOptions overrides the options used for auto-detection
func WithDetectOptions(opts *detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectOptions = opts
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithoutInit skips the init handshake, e.g. when only querying the module
func WithoutInit() ConnectOption {
	return func(c *connectConfig) error {
		c.skipInit = true
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

// ConnectDevice creates and initializes a Mini212 device from a path or auto-detection.
//
// Example usage:
//
//	// Connect to a specific bus/address
//	device, err := mini212.ConnectDevice(ctx, "usb:1:4", mini212.WithTransportFactory(newTransport))
//
//	// Auto-detect the module
//	device, err := mini212.ConnectDevice(ctx, "", mini212.WithAutoDetection(),
//		mini212.WithTransportFromDeviceFactory(newTransportFromDevice))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	transport, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	if err := device.SetTimeout(device.config.Timeout); err != nil {
		_ = transport.Close()
		return nil, err
	}

	if !config.skipInit {
		if err := device.Init(ctx); err != nil {
			_ = transport.Close()
			return nil, err
		}
	}

	return device, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config)
	}
	return createManualTransport(path, config.transportFactory)
}

// createManualTransport handles creation of transport for a specific path
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return transport, nil
}

// createAutoDetectedTransport opens the best detected module the factory
// accepts. Candidates are tried in confidence order.
func createAutoDetectedTransport(ctx context.Context, config *connectConfig) (Transport, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	opts := config.detectOptions
	if opts == nil {
		defaults := detection.DefaultOptions()
		opts = &defaults
	}

	devices, err := detection.DetectAllContext(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	var errs []error
	for _, dev := range devices {
		transport, err := config.transportDeviceFactory(dev)
		if err != nil {
			debugf("skipping detected device %s: %v", dev.Path, err)
			errs = append(errs, fmt.Errorf("%s %s: %w", dev.Transport, dev.Path, err))
			continue
		}
		debugf("using detected device %s (%s)", dev.Path, dev.Transport)
		return transport, nil
	}
	return nil, errors.Join(errs...)
}
