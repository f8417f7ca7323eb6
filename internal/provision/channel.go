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

// Package provision implements the field configuration channels: WiFi
// credentials (obfuscated JSON), the binary LoRaWAN settings record and a
// log mirror. A Server dispatches client reads and writes to them.
package provision

import (
	"errors"
	"net/netip"

	"smagate/internal/settings"
	"smagate/internal/store"
)

// Channel identifiers, the same the companion app looks for.
const (
	CredentialsServiceUUID = "0000aaaa-ead2-11e7-80c1-9a214cf093ae"
	CredentialsUUID        = "00005555-ead2-11e7-80c1-9a214cf093ae"
	SettingsServiceUUID    = "f0a0"
	SettingsUUID           = "f0a1"
	UartServiceUUID        = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	UartRxUUID             = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"
	UartTxUUID             = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"
)

var (
	ErrSizeMismatch   = errors.New("provision: settings payload has wrong size")
	ErrInvalidJSON    = errors.New("provision: invalid JSON")
	ErrNoCommand      = errors.New("provision: no credentials or command in document")
	ErrUnknownChannel = errors.New("provision: unknown channel")
)

// Channel is one readable and writable configuration value.
type Channel interface {
	Name() string
	UUID() string
	Read() []byte
	Write(data []byte) error
}

// RecordStore owns the live settings record.
type RecordStore interface {
	Record() settings.Record
	ApplyRecord(r settings.Record) error
}

// CredentialStore owns the live network credentials.
type CredentialStore interface {
	Credentials() store.Credentials
	ApplyCredentials(c store.Credentials) error
	EraseAll() error
}

// Network is the WiFi link as seen by the credentials channel.
type Network interface {
	Connected() bool
	LocalIP() (netip.Addr, bool)
	SSID() string
	Disconnect()
	Reconnect()
}

// Rebooter restarts the gateway after a grace delay.
type Rebooter interface {
	Reboot(reason string)
}

// Obfuscate XORs data with key, repeating the key as needed. Applying it
// twice with the same key returns the input.
func Obfuscate(data []byte, key string) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
