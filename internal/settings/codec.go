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

package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the length of the wire image.
const RecordSize = 88

var (
	ErrMarkerMismatch = errors.New("settings: marker mismatch")
	ErrLengthMismatch = errors.New("settings: length mismatch")
)

// field describes one slot of the wire image. Encode and Decode both walk
// the same table, so the layout is defined exactly once.
type field struct {
	name   string
	offset int
	width  int
	put    func(r *Record, b []byte)
	get    func(r *Record, b []byte)
	show   func(r *Record) string
}

func boolField(name string, offset int, p func(r *Record) *bool) field {
	return field{
		name: name, offset: offset, width: 1,
		put:  func(r *Record, b []byte) { b[0] = boolByte(*p(r)) },
		get:  func(r *Record, b []byte) { *p(r) = b[0] != 0 },
		show: func(r *Record) string { return fmt.Sprint(*p(r)) },
	}
}

func byteField(name string, offset int, p func(r *Record) *uint8) field {
	return field{
		name: name, offset: offset, width: 1,
		put:  func(r *Record, b []byte) { b[0] = *p(r) },
		get:  func(r *Record, b []byte) { *p(r) = b[0] },
		show: func(r *Record) string { return fmt.Sprint(*p(r)) },
	}
}

func u32Field(name string, offset int, p func(r *Record) *uint32, hexOut bool) field {
	return field{
		name: name, offset: offset, width: 4,
		put: func(r *Record, b []byte) { binary.LittleEndian.PutUint32(b, *p(r)) },
		get: func(r *Record, b []byte) { *p(r) = binary.LittleEndian.Uint32(b) },
		show: func(r *Record) string {
			if hexOut {
				return fmt.Sprintf("%08X", *p(r))
			}
			return fmt.Sprint(*p(r))
		},
	}
}

func euiField(name string, offset int, p func(r *Record) *EUI64) field {
	return field{
		name: name, offset: offset, width: 8,
		put:  func(r *Record, b []byte) { copy(b, p(r)[:]) },
		get:  func(r *Record, b []byte) { copy(p(r)[:], b) },
		show: func(r *Record) string { return p(r).String() },
	}
}

func keyField(name string, offset int, p func(r *Record) *AES128Key) field {
	return field{
		name: name, offset: offset, width: 16,
		put:  func(r *Record, b []byte) { copy(b, p(r)[:]) },
		get:  func(r *Record, b []byte) { copy(p(r)[:], b) },
		show: func(r *Record) string { return p(r).String() },
	}
}

// constField is written as a fixed value and not read back.
func constField(name string, offset int, v byte) field {
	return field{
		name: name, offset: offset, width: 1,
		put:  func(_ *Record, b []byte) { b[0] = v },
		get:  func(_ *Record, _ []byte) {},
		show: func(_ *Record) string { return fmt.Sprintf("%02X", v) },
	}
}

var layout = []field{
	constField("marker 1", 0, Marker1),
	constField("marker 2", 1, Marker2),
	boolField("auto join", 2, func(r *Record) *bool { return &r.AutoJoin }),
	boolField("otaa", 3, func(r *Record) *bool { return &r.OTAA }),
	euiField("dev eui", 4, func(r *Record) *EUI64 { return &r.DevEUI }),
	euiField("app eui", 12, func(r *Record) *EUI64 { return &r.AppEUI }),
	keyField("app key", 20, func(r *Record) *AES128Key { return &r.AppKey }),
	keyField("nws key", 36, func(r *Record) *AES128Key { return &r.NwkSKey }),
	keyField("apps key", 52, func(r *Record) *AES128Key { return &r.AppSKey }),
	u32Field("dev addr", 68, func(r *Record) *uint32 { return &r.DevAddr }, true),
	u32Field("repeat time", 72, func(r *Record) *uint32 { return &r.RepeatInterval }, false),
	boolField("adr", 76, func(r *Record) *bool { return &r.ADR }),
	boolField("public", 77, func(r *Record) *bool { return &r.PublicNetwork }),
	boolField("duty cycle", 78, func(r *Record) *bool { return &r.DutyCycle }),
	byteField("join trials", 79, func(r *Record) *uint8 { return &r.JoinTrials }),
	byteField("tx power", 80, func(r *Record) *uint8 { return &r.TxPower }),
	byteField("data rate", 81, func(r *Record) *uint8 { return &r.DataRate }),
	byteField("class", 82, func(r *Record) *uint8 { return (*uint8)(&r.Class) }),
	byteField("subband", 83, func(r *Record) *uint8 { return &r.SubBand }),
	byteField("app port", 84, func(r *Record) *uint8 { return &r.AppPort }),
	boolField("confirmed", 85, func(r *Record) *bool { return &r.Confirmed }),
	// the app's struct image carries its reset byte here; it is never applied
	constField("reserved", 86, 0),
	byteField("region", 87, func(r *Record) *uint8 { return &r.Region }),
}

// Encode renders r as its wire image. ResetRequest is not part of it.
func Encode(r Record) []byte {
	buf := make([]byte, RecordSize)
	for _, f := range layout {
		f.put(&r, buf[f.offset:f.offset+f.width])
	}
	return buf
}

// Decode parses a wire image. The length is checked before the markers.
func Decode(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(b), RecordSize)
	}
	if b[0] != Marker1 || b[1] != Marker2 {
		return Record{}, fmt.Errorf("%w: got %02X %02X", ErrMarkerMismatch, b[0], b[1])
	}

	var r Record
	for _, f := range layout {
		f.get(&r, b[f.offset:f.offset+f.width])
	}
	return r, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
