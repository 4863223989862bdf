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

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/ZaparooProject/go-mini212/framesync"
	"github.com/eiannone/keyboard"
)

// sessionControl is the part of a session the operator can steer
type sessionControl interface {
	SetSplitOffset(offset int) error
	SplitOffset() int
	SetMode(mode framesync.Mode) error
	Mode() framesync.Mode
	Shutdown()
}

// controller turns key presses into session changes. It never blocks the
// acquisition loop: every change is a validated atomic post.
type controller struct {
	session  sessionControl
	out      io.Writer
	entry    []rune
	entering bool
}

func newController(s sessionControl, out io.Writer) *controller {
	return &controller{session: s, out: out}
}

func (c *controller) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *controller) usage() {
	c.printf("keys: +/- offset by 1, ]/[ offset by 10, s<digits><Enter> set offset, m toggle mode, i info, q quit\r\n")
}

// handleKey applies one key press and reports whether the operator quit
func (c *controller) handleKey(ch rune, key keyboard.Key) bool {
	if key == keyboard.KeyCtrlC || (key == keyboard.KeyEsc && !c.entering) {
		c.session.Shutdown()
		return true
	}

	if c.entering {
		c.handleEntry(ch, key)
		return false
	}

	switch ch {
	case 'q':
		c.session.Shutdown()
		return true
	case '+', '=':
		c.shiftOffset(1)
	case '-', '_':
		c.shiftOffset(-1)
	case ']':
		c.shiftOffset(10)
	case '[':
		c.shiftOffset(-10)
	case 's':
		c.entering = true
		c.entry = c.entry[:0]
		c.printf("split offset: ")
	case 'm':
		c.toggleMode()
	case 'i':
		c.printf("mode %v, split offset %d\r\n", c.session.Mode(), c.session.SplitOffset())
	case 'h', '?':
		c.usage()
	}
	return false
}

func (c *controller) handleEntry(ch rune, key keyboard.Key) {
	switch {
	case key == keyboard.KeyEnter:
		c.entering = false
		c.printf("\r\n")
		offset, err := strconv.Atoi(string(c.entry))
		if err != nil {
			c.printf("invalid offset %q\r\n", string(c.entry))
			return
		}
		c.setOffset(offset)
	case key == keyboard.KeyEsc:
		c.entering = false
		c.printf(" cancelled\r\n")
	case key == keyboard.KeyBackspace || key == keyboard.KeyBackspace2:
		if len(c.entry) > 0 {
			c.entry = c.entry[:len(c.entry)-1]
			c.printf("\b \b")
		}
	case ch >= '0' && ch <= '9':
		c.entry = append(c.entry, ch)
		c.printf("%c", ch)
	}
}

func (c *controller) shiftOffset(delta int) {
	c.setOffset(c.session.SplitOffset() + delta)
}

func (c *controller) setOffset(offset int) {
	if err := c.session.SetSplitOffset(offset); err != nil {
		c.printf("split offset %d rejected: %v\r\n", offset, err)
		return
	}
	c.printf("split offset %d\r\n", offset)
}

func (c *controller) toggleMode() {
	next := framesync.ModeStatic
	if c.session.Mode() == framesync.ModeStatic {
		next = framesync.ModeDynamic
	}
	if err := c.session.SetMode(next); err != nil {
		c.printf("mode change rejected: %v\r\n", err)
		return
	}
	c.printf("mode %v\r\n", next)
}

// run feeds key events to the controller until ctx is done, the operator
// quits or the key channel closes
func (c *controller) run(ctx context.Context, keys <-chan keyboard.KeyEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-keys:
			if !ok {
				return
			}
			if ev.Err != nil {
				c.printf("keyboard error: %v\r\n", ev.Err)
				return
			}
			if c.handleKey(ev.Rune, ev.Key) {
				return
			}
		}
	}
}
