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

// Package gateway runs the acquisition and dissemination cycle: read the
// inverter, send the sample over LoRaWAN and the local network, then wait
// for the configured repeat interval.
package gateway

import (
	"context"
	"time"

	"smagate/internal/radio"
)

// Source reads the two named inverter values.
type Source interface {
	Fetch(ctx context.Context, names [2]string) ([2]int, bool)
}

// Radio is the LoRaWAN uplink.
type Radio interface {
	Joined(ctx context.Context) bool
	Send(ctx context.Context, payload []byte) (radio.Outcome, error)
}

// Broadcaster is the fire-and-forget local network sink.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte)
}

// Network is the WiFi link.
type Network interface {
	Connected() bool
	Reconnect()
}

// UpdateListener is the firmware update subsystem. PollActive must be
// called from every wait and reports whether an update is running.
type UpdateListener interface {
	PollActive() bool
}

// Settings exposes the live repeat interval.
type Settings interface {
	RepeatInterval() time.Duration
}

// Clock sleeps; tests replace it to run cycles instantly.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
