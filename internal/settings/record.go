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

// Package settings holds the radio configuration record and its fixed
// 88-byte wire image exchanged with the configuration app.
package settings

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	Marker1 byte = 0xAA
	Marker2 byte = 0x57
)

// EUI64 is an 8-byte LoRaWAN identifier, kept in transmission order.
type EUI64 [8]byte

func (e EUI64) String() string {
	return strings.ToUpper(hex.EncodeToString(e[:]))
}

// AES128Key is a 128-bit LoRaWAN key.
type AES128Key [16]byte

func (k AES128Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// Class is the LoRaWAN device class. Class B is not supported.
type Class uint8

const (
	ClassA Class = 0
	ClassC Class = 2
)

func (c Class) String() string {
	switch c {
	case ClassA:
		return "A"
	case ClassC:
		return "C"
	default:
		return fmt.Sprintf("unsupported(%d)", uint8(c))
	}
}

type Record struct {
	AutoJoin       bool
	OTAA           bool
	DevEUI         EUI64
	AppEUI         EUI64
	AppKey         AES128Key
	NwkSKey        AES128Key
	AppSKey        AES128Key
	DevAddr        uint32
	RepeatInterval uint32 // milliseconds
	ADR            bool
	PublicNetwork  bool
	DutyCycle      bool
	JoinTrials     uint8
	TxPower        uint8
	DataRate       uint8
	Class          Class
	SubBand        uint8
	AppPort        uint8
	Confirmed      bool
	Region         uint8

	// ResetRequest is session local. It is never written to or read from
	// the wire image, so a decoded record always carries false.
	ResetRequest bool
}

// Default returns the factory configuration.
func Default() Record {
	return Record{
		AutoJoin:       false,
		OTAA:           true,
		DevEUI:         EUI64{0x00, 0x0D, 0x75, 0xE6, 0x56, 0x4D, 0xC1, 0xF3},
		AppEUI:         EUI64{0x70, 0xB3, 0xD5, 0x7E, 0xD0, 0x02, 0x01, 0xE1},
		AppKey:         AES128Key{0x2B, 0x84, 0xE0, 0xB0, 0x9B, 0x68, 0xE5, 0xCB, 0x42, 0x17, 0x6F, 0xE7, 0x53, 0xDC, 0xEE, 0x79},
		NwkSKey:        AES128Key{0x32, 0x3D, 0x15, 0x5A, 0x00, 0x0D, 0xF3, 0x35, 0x30, 0x7A, 0x16, 0xDA, 0x0C, 0x9D, 0xF5, 0x3F},
		AppSKey:        AES128Key{0x3F, 0x6A, 0x66, 0x45, 0x9D, 0x5E, 0xDC, 0xA6, 0x3C, 0xBC, 0x46, 0x19, 0xCD, 0x61, 0xA1, 0x1E},
		DevAddr:        0x26021FB4,
		RepeatInterval: 120000,
		ADR:            false,
		PublicNetwork:  true,
		DutyCycle:      false,
		JoinTrials:     5,
		TxPower:        0,
		DataRate:       5,
		Class:          ClassA,
		SubBand:        1,
		AppPort:        2,
		Confirmed:      false,
		Region:         10,
	}
}

// Interval is the pause between two acquisition cycles.
func (r Record) Interval() time.Duration {
	return time.Duration(r.RepeatInterval) * time.Millisecond
}
