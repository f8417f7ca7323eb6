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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrUnavailable is returned when the device reports its "no value" marker.
var ErrUnavailable = errors.New("modbus: value not available")

// ReadValue reads a register by name and decodes it, see Decode.
func (c *Client) ReadValue(ctx context.Context, name string) (any, error) {
	def, ok := c.config.Registers[name]
	if !ok {
		return nil, fmt.Errorf("register %q not configured", name)
	}

	n, err := registerCount(def.DataType)
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}
	raw, err := c.ReadRegisters(ctx, def.Type, def.Address, n)
	if err != nil {
		return nil, fmt.Errorf("register read failed for %s: %w", name, err)
	}

	v, err := Decode(def, raw)
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}
	return v, nil
}

// ReadInt reads a numeric register and rounds it to an int.
func (c *Client) ReadInt(ctx context.Context, name string) (int, error) {
	v, err := c.ReadValue(ctx, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float32:
		return int(math.Round(float64(n))), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("register %q: unexpected %T", name, v)
	}
}

// Decode turns big-endian register data into a value:
//   - int64   for integer registers without scaling
//   - float32 for float32 registers and scaled integer registers
//   - bool    for bool registers
func Decode(def RegisterDef, raw []byte) (any, error) {
	n, err := registerCount(def.DataType)
	if err != nil {
		return nil, err
	}
	if len(raw) < int(n)*2 {
		return nil, fmt.Errorf("short read: %d bytes", len(raw))
	}

	var rawBits uint32
	var val float64
	switch def.DataType {
	case "uint16":
		u := binary.BigEndian.Uint16(raw)
		rawBits, val = uint32(u), float64(u)
	case "int16":
		u := binary.BigEndian.Uint16(raw)
		rawBits, val = uint32(u), float64(int16(u))
	case "uint32":
		u := binary.BigEndian.Uint32(raw)
		rawBits, val = u, float64(u)
	case "int32":
		u := binary.BigEndian.Uint32(raw)
		rawBits, val = u, float64(int32(u))
	case "float32":
		u := binary.BigEndian.Uint32(raw)
		if slices.Contains(def.Unavailable, u) {
			return nil, ErrUnavailable
		}
		f := math.Float32frombits(u)
		if def.Scale == 0 {
			return f, nil
		}
		return float32(float64(f)*def.Scale + def.Offset), nil
	case "bool":
		return binary.BigEndian.Uint16(raw) != 0, nil
	}

	if slices.Contains(def.Unavailable, rawBits) {
		return nil, ErrUnavailable
	}
	if def.Scale == 0 {
		return int64(val) + int64(def.Offset), nil
	}
	return float32(val*def.Scale + def.Offset), nil
}

func registerCount(dataType string) (uint16, error) {
	switch dataType {
	case "uint16", "int16", "bool":
		return 1, nil
	case "uint32", "int32", "float32":
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported data type %q", dataType)
	}
}
