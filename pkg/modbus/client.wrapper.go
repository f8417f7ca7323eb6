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

package modbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"smagate/pkg/logger"

	wrapper "github.com/grid-x/modbus"
)

// Client is a Modbus TCP client that connects lazily and reconnects once per
// read when the link dropped. Callers own any further retry policy.
type Client struct {
	mu      sync.Mutex
	handler *wrapper.TCPClientHandler
	client  wrapper.Client
	config  *Config
	host    string
	log     *logger.Logger
}

func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		host:   config.Modbus.Host,
		log:    logger.New("ModbusConn"),
	}
}

// SetHost points the client at another device; the next read reconnects.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if host == c.host {
		return
	}
	c.log.Info("device address changed: %s -> %s", c.host, host)
	c.host = host
	c.closeLocked()
}

func (c *Client) Host() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

// connectLocked dials the device; c.mu must be held.
func (c *Client) connectLocked(ctx context.Context) error {
	c.closeLocked()

	url := net.JoinHostPort(c.host, strconv.Itoa(c.config.Modbus.Port))
	handler := wrapper.NewTCPClientHandler(url)
	handler.SlaveID = c.config.Modbus.SlaveID
	handler.Timeout = time.Second * time.Duration(c.config.Modbus.Timeout)
	handler.ProtocolRecoveryTimeout = 250 * time.Millisecond
	handler.LinkRecoveryTimeout = 5 * time.Second

	c.log.Debug("connecting to %s", url)
	if err := handler.Connect(ctx); err != nil {
		return fmt.Errorf("modbus connect %s: %w", url, err)
	}

	c.handler = handler
	c.client = wrapper.NewClient(handler)
	c.log.Info("connected to %s", url)
	return nil
}

func (c *Client) closeLocked() {
	if c.handler != nil {
		_ = c.handler.Close()
	}
	c.handler = nil
	c.client = nil
}

// ReadRegisters reads quantity registers of the given kind ("holding" or
// "input") starting at addr.
func (c *Client) ReadRegisters(ctx context.Context, kind string, addr, quantity uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if c.client == nil {
			if err = c.connectLocked(ctx); err != nil {
				return nil, err
			}
		}
		if kind == "input" {
			data, err = c.client.ReadInputRegisters(ctx, addr, quantity)
		} else {
			data, err = c.client.ReadHoldingRegisters(ctx, addr, quantity)
		}
		if err == nil {
			return data, nil
		}
		if !isConnError(err) {
			return nil, err
		}
		c.log.Error("connection error: %v, reconnecting", err)
		c.closeLocked()
	}
	return nil, err
}

// Close closes the underlying handler.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func isConnError(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "closed by the remote host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "eof")
}
