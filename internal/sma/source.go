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

// Package sma reads live values from an SMA inverter over Modbus TCP.
package sma

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"smagate/internal/telemetry"
	"smagate/pkg/logger"
	"smagate/pkg/modbus"
)

// Reader is the register client; *modbus.Client satisfies it.
type Reader interface {
	ReadInt(ctx context.Context, name string) (int, error)
	SetHost(host string)
}

// AddrSource provides the persisted inverter address override.
type AddrSource interface {
	InverterAddr() (netip.Addr, bool)
}

type reading struct {
	value int
	at    time.Time
}

// Source fetches named values for the acquisition loop.
type Source struct {
	client Reader
	addr   AddrSource
	log    *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	last map[string]reading
}

// New returns a Source. addr may be nil.
func New(client Reader, addr AddrSource) *Source {
	return &Source{
		client: client,
		addr:   addr,
		log:    logger.New("SMA"),
		now:    time.Now,
		last:   make(map[string]reading),
	}
}

// Fetch reads both names. A value the inverter marks as unavailable (at night)
// is returned as the "no generation" sentinel. Any read error or implausible
// value fails the whole fetch.
func (s *Source) Fetch(ctx context.Context, names [2]string) ([2]int, bool) {
	var out [2]int

	if s.addr != nil {
		if ip, ok := s.addr.InverterAddr(); ok {
			s.client.SetHost(ip.String())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for i, name := range names {
		v, err := s.client.ReadInt(ctx, name)
		switch {
		case errors.Is(err, modbus.ErrUnavailable):
			s.log.Debug("%s not available", name)
			v = telemetry.NoGeneration
		case err != nil:
			s.log.Error("read %s: %v", name, err)
			return out, false
		}

		if err := checkValue(name, v, now, s.last); err != nil {
			s.log.Error("invalid value detected: %s (%d): %v", name, v, err)
			return out, false
		}
		if prev, ok := counterRegressed(name, v, now, s.last); ok {
			s.log.Info("%s went backwards: %d -> %d", name, prev, v)
		}
		out[i] = v
	}

	for i, name := range names {
		s.last[name] = reading{value: out[i], at: now}
	}
	return out, true
}
