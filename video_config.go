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
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-mini212/internal/frame"
)

// UnknownLabel is used for enumeration values outside their table
const UnknownLabel = "unknown"

// Response header layout of the digital video page query
const (
	configTypeIndex = 3
	configSubIndex  = 4

	configSyncModeIndex    = 5
	configOutputPortIndex  = 6
	configVideoFormatIndex = 7
	configCMOSModeIndex    = 8
	configFrameRateIndex   = 9
	configClockEdgeIndex   = 11
)

var syncModes = map[byte]string{
	0: "Shutdown",
	1: "Slave",
	2: "Master",
}

var outputPorts = map[byte]string{
	0: "Parallel-Closed",
	1: "USB2.0",
	2: "CMOS",
	3: "BT1120",
	4: "BT656",
	5: "USB2.0+UART",
	6: "LCD",
	7: "LVDS",
	8: "LCD+DVP",
	9: "UVC+CDC",
}

// 6 and 7 are reserved
var videoFormats = map[byte]string{
	0:  "YUV422",
	1:  "YUV422+Param",
	2:  "Y16",
	3:  "Y16+Param",
	4:  "Y16+YUV422",
	5:  "Y16+Param+YUV422",
	8:  "TMP",
	9:  "TMP+Param",
	10: "TMP+YUV422",
	11: "TMP+Param+YUV422",
}

var cmosModes = map[byte]string{
	0: "CMOS16",
	1: "CMOS8(MSB)",
	2: "CMOS8(LSB)",
}

var frameRates = map[byte]string{
	0: "30Hz",
	1: "25Hz",
	2: "9Hz",
	3: "50Hz",
}

var clockEdges = map[byte]string{
	0: "Rising Edge",
	1: "Falling Edge",
}

// Setting is one decoded enumeration field
type Setting struct {
	Label string
	Value byte
}

func lookupSetting(table map[byte]string, value byte) Setting {
	label, ok := table[value]
	if !ok {
		label = UnknownLabel
	}
	return Setting{Value: value, Label: label}
}

// Known reports whether the value was found in its table
func (s Setting) Known() bool {
	return s.Label != UnknownLabel
}

func (s Setting) String() string {
	return fmt.Sprintf("%d (%s)", s.Value, s.Label)
}

// VideoConfig is the decoded digital video page
type VideoConfig struct {
	SyncMode    Setting
	OutputPort  Setting
	VideoFormat Setting
	CMOSMode    Setting
	FrameRate   Setting
	ClockEdge   Setting
}

func (c *VideoConfig) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "External Sync Mode : %v\n", c.SyncMode)
	_, _ = fmt.Fprintf(&sb, "Output Port        : %v\n", c.OutputPort)
	_, _ = fmt.Fprintf(&sb, "Video Format       : %v\n", c.VideoFormat)
	_, _ = fmt.Fprintf(&sb, "CMOS Mode          : %v\n", c.CMOSMode)
	_, _ = fmt.Fprintf(&sb, "Frame Rate         : %v\n", c.FrameRate)
	_, _ = fmt.Fprintf(&sb, "Clock Edge         : %v", c.ClockEdge)
	return sb.String()
}

// DecodeVideoConfig parses a 24-byte digital video page query response.
// Values outside a field's table decode with UnknownLabel instead of failing.
func DecodeVideoConfig(data []byte) (*VideoConfig, error) {
	if len(data) != frame.ConfigResponseLen {
		return nil, newDecodeError("video config",
			fmt.Errorf("%w: got %d bytes, expected %d", ErrWrongLength, len(data), frame.ConfigResponseLen), data)
	}

	if data[0] != frame.SyncByte1 || data[1] != frame.SyncByte2 ||
		data[configTypeIndex] != cmdTypeDigitalVideo || data[configSubIndex] != cmdSubDigitalVideo {
		return nil, newDecodeError("video config",
			fmt.Errorf("%w: % X", ErrBadHeader, data[:configSubIndex+1]), data)
	}

	return &VideoConfig{
		SyncMode:    lookupSetting(syncModes, data[configSyncModeIndex]),
		OutputPort:  lookupSetting(outputPorts, data[configOutputPortIndex]),
		VideoFormat: lookupSetting(videoFormats, data[configVideoFormatIndex]),
		CMOSMode:    lookupSetting(cmosModes, data[configCMOSModeIndex]),
		FrameRate:   lookupSetting(frameRates, data[configFrameRateIndex]),
		ClockEdge:   lookupSetting(clockEdges, data[configClockEdgeIndex]),
	}, nil
}
