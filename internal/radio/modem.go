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

// Package radio drives a LoRaWAN modem speaking RAK RUI3 style AT commands
// over a serial line.
package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"smagate/pkg/logger"

	"go.bug.st/serial"
)

// Port is the serial line. go.bug.st/serial ports satisfy it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var (
	ErrTimeout   = errors.New("radio: no reply from modem")
	ErrNotJoined = errors.New("radio: network not joined")
)

// ReplyError is a terminal AT error code such as AT_PARAM_ERROR.
type ReplyError struct {
	Cmd  string
	Code string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("radio: %s: %s", e.Cmd, e.Code)
}

const (
	replyOK          = "OK"
	codeBusy         = "AT_BUSY_ERROR"
	codeParam        = "AT_PARAM_ERROR"
	codeOverflow     = "AT_TEST_PARAM_OVERFLOW"
	codeNoNetwork    = "AT_NO_NETWORK_JOINED"
	eventPrefix      = "+EVT:"
	readPollInterval = 100 * time.Millisecond
)

// Modem serializes AT commands on one port.
type Modem struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	log     *logger.Logger
	pending []byte

	// OnEvent receives unsolicited +EVT lines.
	OnEvent func(ev string)
}

// Open opens the serial device at baud.
func Open(device string, baud int, timeout time.Duration) (*Modem, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("radio: open %s: %w", device, err)
	}
	return NewModem(port, timeout)
}

func NewModem(port Port, timeout time.Duration) (*Modem, error) {
	if err := port.SetReadTimeout(readPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("radio: set read timeout: %w", err)
	}
	return &Modem{port: port, timeout: timeout, log: logger.New("Radio")}, nil
}

func (m *Modem) Close() error {
	return m.port.Close()
}

// Command sends one AT command and collects the reply lines up to the
// terminating OK. A terminal AT_* code comes back as *ReplyError.
func (m *Modem) Command(ctx context.Context, cmd string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug(">> %s", cmd)
	if _, err := io.WriteString(m.port, cmd+"\r\n"); err != nil {
		return nil, fmt.Errorf("radio: write %s: %w", cmd, err)
	}

	deadline := time.Now().Add(m.timeout)
	var lines []string
	for {
		line, err := m.readLine(ctx, deadline)
		if err != nil {
			return lines, fmt.Errorf("%w (%s)", err, cmd)
		}
		m.log.Debug("<< %s", line)

		switch {
		case line == replyOK:
			return lines, nil
		case strings.HasPrefix(line, eventPrefix):
			if m.OnEvent != nil {
				m.OnEvent(strings.TrimPrefix(line, eventPrefix))
			}
		case strings.HasPrefix(line, "AT_"):
			return lines, &ReplyError{Cmd: cmd, Code: line}
		case strings.EqualFold(line, cmd):
			// local echo
		default:
			lines = append(lines, line)
		}
	}
}

// readLine returns the next non-empty line. The port read timeout is short
// so ctx and the deadline are checked between reads.
func (m *Modem) readLine(ctx context.Context, deadline time.Time) (string, error) {
	buf := make([]byte, 128)
	for {
		if i := indexNewline(m.pending); i >= 0 {
			line := strings.TrimSpace(string(m.pending[:i]))
			m.pending = m.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := m.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("radio: read: %w", err)
		}
		m.pending = append(m.pending, buf[:n]...)
	}
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}
