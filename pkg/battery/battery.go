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

// Package battery estimates the charge of the Li-ion cell powering the gateway.
package battery

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MillivoltsToPercent maps a cell voltage to 0..100. Below 3600 mV the curve
// is steep, 3300 mV is treated as empty.
func MillivoltsToPercent(mv float64) uint8 {
	switch {
	case mv < 3300:
		return 0
	case mv < 3600:
		return uint8((mv - 3300) / 30)
	case mv > 4200:
		return 100
	default:
		return uint8(10 + (mv-3600)*0.15)
	}
}

// LoRaLevel scales a percentage to the 0..254 range of the LoRaWAN
// DevStatusAns battery field.
func LoRaLevel(percent uint8) uint8 {
	return uint8(float64(percent) * 2.54)
}

// Reader reads the cell voltage from a sysfs power_supply attribute
// (microvolts).
type Reader struct {
	path    string
	samples int
}

func NewReader(path string) *Reader {
	return &Reader{path: path, samples: 10}
}

// Millivolts averages a few readings of the voltage file.
func (r *Reader) Millivolts() (float64, error) {
	var sum float64
	for range r.samples {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			return 0, fmt.Errorf("read battery voltage: %w", err)
		}
		uv, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return 0, fmt.Errorf("parse battery voltage %q: %w", raw, err)
		}
		sum += uv / 1000
	}
	return sum / float64(r.samples), nil
}

// Level returns the charge in percent and as LoRaWAN level.
func (r *Reader) Level() (percent, lora uint8, err error) {
	mv, err := r.Millivolts()
	if err != nil {
		return 0, 0, err
	}
	percent = MillivoltsToPercent(mv)
	return percent, LoRaLevel(percent), nil
}
