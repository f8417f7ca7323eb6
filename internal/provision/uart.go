// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package provision

import (
	"bytes"
	"sync"

	"smagate/pkg/logger"
)

const uartBacklog = 64

// UartChannel mirrors log lines to a connected client. Lines queue up while
// a client is attached and are handed out, oldest first, by Read.
type UartChannel struct {
	log *logger.Logger

	mu    sync.Mutex
	lines [][]byte
}

func NewUartChannel() *UartChannel {
	return &UartChannel{log: logger.New("ProvUART")}
}

func (u *UartChannel) Name() string { return "uart" }
func (u *UartChannel) UUID() string { return UartTxUUID }

// Read drains the queued lines.
func (u *UartChannel) Read() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := bytes.Join(u.lines, nil)
	u.lines = nil
	return out
}

// Write receives text from the client; it is only logged.
func (u *UartChannel) Write(data []byte) error {
	if len(data) > 0 {
		u.log.Debug("received value: %s", data)
	}
	return nil
}

// sink returns the log writer attached while a client is connected.
func (u *UartChannel) sink() *uartSink {
	return &uartSink{u: u}
}

type uartSink struct {
	u *UartChannel
}

// Write must not log, it runs inside the logger.
func (s *uartSink) Write(p []byte) (int, error) {
	line := append([]byte(nil), p...)
	s.u.mu.Lock()
	s.u.lines = append(s.u.lines, line)
	if over := len(s.u.lines) - uartBacklog; over > 0 {
		s.u.lines = s.u.lines[over:]
	}
	s.u.mu.Unlock()
	return len(p), nil
}
