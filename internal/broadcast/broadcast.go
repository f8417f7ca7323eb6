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

// Package broadcast fans telemetry documents out to the local network.
// Every sink is fire-and-forget: failures are logged, never returned.
package broadcast

import (
	"context"
	"fmt"
	"net"
	"time"

	"smagate/pkg/logger"

	"github.com/nats-io/nats.go"
)

// Sink accepts one encoded document.
type Sink interface {
	Broadcast(ctx context.Context, payload []byte)
}

// UDP sends each document as one datagram to a broadcast address.
type UDP struct {
	addr *net.UDPAddr
	log  *logger.Logger
}

func NewUDP(host string, port int) (*UDP, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("broadcast: resolve %s:%d: %w", host, port, err)
	}
	return &UDP{addr: addr, log: logger.New("UDP")}, nil
}

func (u *UDP) Broadcast(ctx context.Context, payload []byte) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		u.log.Error("open socket: %v", err)
		return
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		u.log.Error("SO_BROADCAST: %v", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(dl)
	} else {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	}
	if _, err := conn.WriteToUDP(payload, u.addr); err != nil {
		u.log.Error("send to %s: %v", u.addr, err)
		return
	}
	u.log.Debug("sent %d bytes to %s", len(payload), u.addr)
}

// NATS mirrors documents onto a subject for consumers off the LAN segment.
type NATS struct {
	nc      *nats.Conn
	subject string
	log     *logger.Logger
}

type NATSOptions struct {
	URL           string
	Name          string
	Subject       string
	ReconnectWait time.Duration
	MaxReconnects int
}

func DialNATS(opts NATSOptions) (*NATS, error) {
	log := logger.New("NATS")
	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("broadcast: nats connect: %w", err)
	}
	return &NATS{nc: nc, subject: opts.Subject, log: log}, nil
}

func (n *NATS) Broadcast(_ context.Context, payload []byte) {
	if err := n.nc.Publish(n.subject, payload); err != nil {
		n.log.Error("publish %s: %v", n.subject, err)
	}
}

// Run keeps the connection for the process lifetime and drains it on
// shutdown.
func (n *NATS) Run(ctx context.Context) {
	<-ctx.Done()
	if err := n.nc.Drain(); err != nil {
		n.log.Error("drain: %v", err)
	}
}

// Multi sends to every sink in order.
type Multi []Sink

func (m Multi) Broadcast(ctx context.Context, payload []byte) {
	for _, s := range m {
		s.Broadcast(ctx, payload)
	}
}
