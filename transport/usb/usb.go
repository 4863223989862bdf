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

// Package usb implements the Mini212 transport over libusb bulk transfers.
package usb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mini212 "github.com/ZaparooProject/go-mini212"
	"github.com/ZaparooProject/go-mini212/detection"
	"github.com/google/gousb"
)

const (
	interfaceNumber  = 0
	alternateSetting = 0
	defaultConfig    = 1
)

// ErrInvalidPath is returned for paths not of the form usb:BUS:ADDR
var ErrInvalidPath = errors.New("invalid USB path")

type inEndpoint interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type outEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Transport implements mini212.Transport with libusb bulk transfers
type Transport struct {
	in      map[mini212.Endpoint]inEndpoint
	out     outEndpoint
	release func() error
	// packet is the max packet size per IN endpoint; small responses are read
	// into a full packet so the device never overflows the buffer
	packet  map[mini212.Endpoint]int
	path    string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens the module at path. An empty path opens the first module found.
func New(path string) (*Transport, error) {
	bus, addr, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return open(path, func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != detection.VendorID || uint16(desc.Product) != detection.ProductID {
			return false
		}
		return path == "" || (desc.Bus == bus && desc.Address == addr)
	})
}

// NewFromDevice opens a module found by USB detection
func NewFromDevice(info detection.DeviceInfo) (*Transport, error) {
	if info.Transport != string(mini212.TransportUSB) {
		return nil, fmt.Errorf("%w: %s device given to usb transport", mini212.ErrInvalidParameter, info.Transport)
	}
	return New(info.Path)
}

// ParsePath splits a usb:BUS:ADDR path. The empty path yields zeros.
func ParsePath(path string) (bus, addr int, err error) {
	if path == "" {
		return 0, 0, nil
	}
	parts := strings.Split(path, ":")
	if len(parts) != 3 || parts[0] != "usb" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if bus, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: bad bus in %q", ErrInvalidPath, path)
	}
	if addr, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, fmt.Errorf("%w: bad address in %q", ErrInvalidPath, path)
	}
	return bus, addr, nil
}

func open(path string, match func(*gousb.DeviceDesc) bool) (*Transport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(match)
	if err != nil && len(devs) == 0 {
		_ = ctx.Close()
		return nil, mini212.NewTransportError("open", path, err, mini212.ErrorTypePermanent)
	}
	if len(devs) == 0 {
		_ = ctx.Close()
		return nil, fmt.Errorf("%w: no module at %q (VID=0x%04X PID=0x%04X)",
			mini212.ErrDeviceNotFound, path, detection.VendorID, detection.ProductID)
	}

	dev := devs[0]
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}

	fail := func(op string, err error, closers ...func() error) (*Transport, error) {
		for _, c := range closers {
			_ = c()
		}
		_ = dev.Close()
		_ = ctx.Close()
		return nil, mini212.NewTransportError(op, path, err, mini212.ErrorTypePermanent)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		mini212.Debugf("usb %s: auto detach unavailable: %v", path, err)
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil || cfgNum == 0 {
		cfgNum = defaultConfig
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return fail("config", err)
	}

	intf, err := cfg.Interface(interfaceNumber, alternateSetting)
	if err != nil {
		return fail("claim", err, cfg.Close)
	}
	release := func() error {
		intf.Close()
		return cfg.Close()
	}

	t := &Transport{
		in:      make(map[mini212.Endpoint]inEndpoint, 2),
		packet:  make(map[mini212.Endpoint]int, 2),
		path:    path,
		timeout: time.Second,
	}

	for _, ep := range []mini212.Endpoint{mini212.EndpointImageIn, mini212.EndpointResponseIn} {
		in, err := intf.InEndpoint(int(ep & 0x0F))
		if err != nil {
			return fail("endpoint", fmt.Errorf("%v: %w", ep, err), release)
		}
		t.in[ep] = in
		t.packet[ep] = in.Desc.MaxPacketSize
	}

	out, err := intf.OutEndpoint(int(mini212.EndpointCommandOut))
	if err != nil {
		return fail("endpoint", fmt.Errorf("%v: %w", mini212.EndpointCommandOut, err), release)
	}
	t.out = out

	t.release = func() error {
		return errors.Join(release(), dev.Close(), ctx.Close())
	}

	mini212.Debugf("usb %s: opened config %d interface %d", path, cfgNum, interfaceNumber)
	return t, nil
}

// BulkRead reads exactly length bytes from an IN endpoint
func (t *Transport) BulkRead(ep mini212.Endpoint, length int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, ok := t.in[ep]
	if !ok {
		if t.release == nil {
			return nil, mini212.NewTransportError("BulkRead", t.path, mini212.ErrTransportClosed, mini212.ErrorTypePermanent)
		}
		return nil, mini212.NewTransportError("BulkRead", t.path,
			fmt.Errorf("%w: %v", mini212.ErrUnsupportedEndpoint, ep), mini212.ErrorTypePermanent)
	}

	size := length
	if p := t.packet[ep]; p > size {
		size = p
	}
	buf := make([]byte, size)

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	n, err := in.ReadContext(ctx, buf)
	if err != nil {
		return nil, t.classify(ctx, "BulkRead", err)
	}
	if n < length {
		return nil, mini212.NewTransportError("BulkRead", t.path,
			fmt.Errorf("%w: got %d of %d bytes from %v", mini212.ErrShortRead, n, length, ep), mini212.ErrorTypeTransient)
	}
	return buf[:length], nil
}

// BulkWrite writes data to the command endpoint
func (t *Transport) BulkWrite(ep mini212.Endpoint, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out == nil {
		return mini212.NewTransportError("BulkWrite", t.path, mini212.ErrTransportClosed, mini212.ErrorTypePermanent)
	}
	if ep != mini212.EndpointCommandOut {
		return mini212.NewTransportError("BulkWrite", t.path,
			fmt.Errorf("%w: %v", mini212.ErrUnsupportedEndpoint, ep), mini212.ErrorTypePermanent)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	n, err := t.out.WriteContext(ctx, data)
	if err != nil {
		return t.classify(ctx, "BulkWrite", err)
	}
	if n != len(data) {
		return mini212.NewTransportError("BulkWrite", t.path,
			fmt.Errorf("%w: wrote %d of %d bytes", mini212.ErrTransportWrite, n, len(data)), mini212.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, gousb.TransferTimedOut):
		return mini212.NewTimeoutError(op, t.path)
	case errors.Is(err, gousb.ErrorNoDevice):
		return mini212.NewTransportError(op, t.path, fmt.Errorf("%w: %w", mini212.ErrDeviceNotFound, err), mini212.ErrorTypePermanent)
	default:
		return mini212.NewTransportError(op, t.path, fmt.Errorf("%w: %w", mini212.ErrTransportRead, err), mini212.ErrorTypeTransient)
	}
}

// Close releases the interface and closes the device
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	release := t.release
	t.release = nil
	t.in = nil
	t.out = nil
	if release == nil {
		return nil
	}
	if err := release(); err != nil {
		return fmt.Errorf("failed to close %s: %w", t.path, err)
	}
	return nil
}

// SetTimeout sets the timeout applied to each transfer
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", mini212.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsConnected returns true until Close is called
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.release != nil
}

// Type returns the transport type
func (*Transport) Type() mini212.TransportType {
	return mini212.TransportUSB
}
