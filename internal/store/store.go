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

// Package store persists the radio settings record and the network
// credentials, and owns the in-memory copies the rest of the gateway reads.
package store

import (
	"errors"
	"fmt"
	"net/netip"

	"smagate/internal/settings"
	"smagate/pkg/prefs"
)

const (
	nsSettings    = "settings"
	nsCredentials = "credentials"
)

// persisted keys of the settings namespace
const (
	keyValid      = "valid"
	keyAutoJoin   = "a_j"
	keyOTAA       = "o_e"
	keyDevEUI     = "d_e"
	keyAppEUI     = "a_e"
	keyAppKey     = "a_k"
	keyNwkSKey    = "n_k"
	keyAppSKey    = "s_k"
	keyDevAddr    = "d_a"
	keyRepeat     = "s_r"
	keyADR        = "a_d"
	keyPublic     = "p_n"
	keyDutyCycle  = "d_c"
	keyJoinTrials = "j_t"
	keyTxPower    = "t_p"
	keyDataRate   = "d_r"
	keyClass      = "l_c"
	keySubBand    = "s_c"
	keyAppPort    = "a_p"
	keyConfirmed  = "c_m"
	keyRegion     = "l_r"
)

// persisted keys of the credentials namespace
const (
	keyPrimarySSID       = "g_ssid_prim"
	keyPrimaryPassword   = "g_pw_prim"
	keySecondarySSID     = "g_ssid_sec"
	keySecondaryPassword = "g_pw_sec"
	keyRadioPreference   = "lora"
	keyInverterAddr      = "sma_ip"
)

var ErrInvalidInverterAddr = errors.New("store: invalid inverter address")

// Credentials are the two WiFi networks the gateway may join.
type Credentials struct {
	PrimarySSID       string
	PrimaryPassword   string
	SecondarySSID     string
	SecondaryPassword string
	Valid             bool

	RadioPreference    uint8
	HasRadioPreference bool

	// InverterAddr overrides the inverter host when valid.
	InverterAddr netip.Addr
}

// ParseInverterAddr accepts a unicast IPv4 address in dotted form.
func ParseInverterAddr(raw string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is4() || addr.IsUnspecified() {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidInverterAddr, raw)
	}
	return addr, nil
}

// Usable reports whether a connection attempt makes sense. Open networks
// have an empty password, so only the primary SSID is required.
func (c Credentials) Usable() bool {
	return c.Valid && c.PrimarySSID != ""
}

type Store struct {
	prefs *prefs.Store
}

func New(p *prefs.Store) *Store {
	return &Store{prefs: p}
}

// LoadRecord returns the persisted record, or the factory defaults when
// nothing valid has been saved yet.
func (s *Store) LoadRecord() (settings.Record, bool) {
	ns := s.prefs.Namespace(nsSettings)
	if !ns.Bool(keyValid, false) {
		return settings.Default(), false
	}

	d := settings.Default()
	r := d
	r.AutoJoin = ns.Bool(keyAutoJoin, d.AutoJoin)
	r.OTAA = ns.Bool(keyOTAA, d.OTAA)
	ns.Bytes(keyDevEUI, r.DevEUI[:])
	ns.Bytes(keyAppEUI, r.AppEUI[:])
	ns.Bytes(keyAppKey, r.AppKey[:])
	ns.Bytes(keyNwkSKey, r.NwkSKey[:])
	ns.Bytes(keyAppSKey, r.AppSKey[:])
	r.DevAddr = ns.Long(keyDevAddr, d.DevAddr)
	r.RepeatInterval = ns.Long(keyRepeat, d.RepeatInterval)
	r.ADR = ns.Bool(keyADR, d.ADR)
	r.PublicNetwork = ns.Bool(keyPublic, d.PublicNetwork)
	r.DutyCycle = ns.Bool(keyDutyCycle, d.DutyCycle)
	r.JoinTrials = uint8(ns.Short(keyJoinTrials, int16(d.JoinTrials)))
	r.TxPower = uint8(ns.Short(keyTxPower, int16(d.TxPower)))
	r.DataRate = uint8(ns.Short(keyDataRate, int16(d.DataRate)))
	r.Class = settings.Class(ns.Short(keyClass, int16(d.Class)))
	r.SubBand = uint8(ns.Short(keySubBand, int16(d.SubBand)))
	r.AppPort = uint8(ns.Short(keyAppPort, int16(d.AppPort)))
	r.Confirmed = ns.Short(keyConfirmed, 0) != 0
	r.Region = uint8(ns.Short(keyRegion, int16(d.Region)))
	return r, true
}

// SaveRecord writes every field and the valid flag in one commit.
func (s *Store) SaveRecord(r settings.Record) error {
	err := s.prefs.Namespace(nsSettings).Update(func(tx *prefs.Tx) error {
		tx.PutBool(keyAutoJoin, r.AutoJoin)
		tx.PutBool(keyOTAA, r.OTAA)
		tx.PutBytes(keyDevEUI, r.DevEUI[:])
		tx.PutBytes(keyAppEUI, r.AppEUI[:])
		tx.PutBytes(keyAppKey, r.AppKey[:])
		tx.PutBytes(keyNwkSKey, r.NwkSKey[:])
		tx.PutBytes(keyAppSKey, r.AppSKey[:])
		tx.PutLong(keyDevAddr, r.DevAddr)
		tx.PutLong(keyRepeat, r.RepeatInterval)
		tx.PutBool(keyADR, r.ADR)
		tx.PutBool(keyPublic, r.PublicNetwork)
		tx.PutBool(keyDutyCycle, r.DutyCycle)
		tx.PutShort(keyJoinTrials, int16(r.JoinTrials))
		tx.PutShort(keyTxPower, int16(r.TxPower))
		tx.PutShort(keyDataRate, int16(r.DataRate))
		tx.PutShort(keyClass, int16(r.Class))
		tx.PutShort(keySubBand, int16(r.SubBand))
		tx.PutShort(keyAppPort, int16(r.AppPort))
		tx.PutShort(keyConfirmed, int16(boolToInt(r.Confirmed)))
		tx.PutShort(keyRegion, int16(r.Region))
		tx.PutBool(keyValid, true)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) LoadCredentials() Credentials {
	ns := s.prefs.Namespace(nsCredentials)
	c := Credentials{
		PrimarySSID:       ns.String(keyPrimarySSID, ""),
		PrimaryPassword:   ns.String(keyPrimaryPassword, ""),
		SecondarySSID:     ns.String(keySecondarySSID, ""),
		SecondaryPassword: ns.String(keySecondaryPassword, ""),
		Valid:             ns.Bool(keyValid, false),
	}
	if ns.Has(keyRadioPreference) {
		c.RadioPreference = uint8(ns.Short(keyRadioPreference, 0))
		c.HasRadioPreference = true
	}
	if addr, err := ParseInverterAddr(ns.String(keyInverterAddr, "")); err == nil {
		c.InverterAddr = addr
	}
	return c
}

// SaveCredentials persists c and marks the namespace valid in one commit.
// The radio preference and inverter address are only written when c
// carries them.
func (s *Store) SaveCredentials(c Credentials) error {
	err := s.prefs.Namespace(nsCredentials).Update(func(tx *prefs.Tx) error {
		tx.PutString(keyPrimarySSID, c.PrimarySSID)
		tx.PutString(keyPrimaryPassword, c.PrimaryPassword)
		tx.PutString(keySecondarySSID, c.SecondarySSID)
		tx.PutString(keySecondaryPassword, c.SecondaryPassword)
		tx.PutBool(keyValid, true)
		if c.HasRadioPreference {
			tx.PutShort(keyRadioPreference, int16(c.RadioPreference))
		}
		if c.InverterAddr.IsValid() {
			if !c.InverterAddr.Is4() || c.InverterAddr.IsUnspecified() {
				return fmt.Errorf("%w: %q", ErrInvalidInverterAddr, c.InverterAddr)
			}
			tx.PutString(keyInverterAddr, c.InverterAddr.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *Store) EraseCredentials() error {
	if err := s.prefs.Namespace(nsCredentials).Clear(); err != nil {
		return fmt.Errorf("erase credentials: %w", err)
	}
	return nil
}

// EraseAll wipes every persisted namespace.
func (s *Store) EraseAll() error {
	if err := s.prefs.EraseAll(); err != nil {
		return fmt.Errorf("erase all: %w", err)
	}
	return nil
}

// InverterAddr returns the persisted inverter address override, if any.
func (s *Store) InverterAddr() (netip.Addr, bool) {
	addr, err := ParseInverterAddr(s.prefs.Namespace(nsCredentials).String(keyInverterAddr, ""))
	return addr, err == nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
