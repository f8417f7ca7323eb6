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

// Package telemetry normalizes inverter readings and renders them for the
// radio and network transports.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NoGeneration is what the inverter reports while it is not producing,
// typically at night.
const NoGeneration = -1

// first byte of the power/energy uplink frame
const radioFrameType byte = 0x20

var ErrImplausible = errors.New("telemetry: value not plausible")

type Sample struct {
	Power       int // W
	EnergyToday int // Wh
	OK          bool
	At          time.Time
}

// Normalize maps the power no-generation sentinel to zero and rejects a
// power reading at or above maxPower. Energy passes through untouched.
func Normalize(power, energy, maxPower int, at time.Time) (Sample, error) {
	if power == NoGeneration {
		power = 0
	}
	s := Sample{Power: power, EnergyToday: energy, At: at}
	if power >= maxPower {
		return s, fmt.Errorf("%w: power %d W >= %d W", ErrImplausible, power, maxPower)
	}
	s.OK = true
	return s, nil
}

// RadioPayload is the 5-byte uplink frame: type, power and energy as
// big-endian 16 bit values (truncated to the low 16 bits).
func (s Sample) RadioPayload() []byte {
	return []byte{
		radioFrameType,
		byte(s.Power >> 8), byte(s.Power),
		byte(s.EnergyToday >> 8), byte(s.EnergyToday),
	}
}

type broadcastDoc struct {
	Device string `json:"de"`
	Power  int    `json:"s"`
	Count  int    `json:"c"`
}

// BroadcastPayload is the JSON document sent to listeners on the local
// network, e.g. {"de":"spm","s":1500,"c":0}.
func (s Sample) BroadcastPayload(deviceTag string) []byte {
	data, _ := json.Marshal(broadcastDoc{Device: deviceTag, Power: s.Power})
	return data
}
