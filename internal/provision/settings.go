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

package provision

import (
	"fmt"

	"smagate/internal/settings"
	"smagate/pkg/logger"
)

// SettingsChannel carries the binary LoRaWAN settings record.
type SettingsChannel struct {
	store  RecordStore
	reboot Rebooter
	log    *logger.Logger
}

func NewSettingsChannel(st RecordStore, reboot Rebooter) *SettingsChannel {
	return &SettingsChannel{store: st, reboot: reboot, log: logger.New("ProvLoRa")}
}

func (c *SettingsChannel) Name() string { return "settings" }
func (c *SettingsChannel) UUID() string { return SettingsUUID }

// Write validates the size, then the markers, and only then persists.
func (c *SettingsChannel) Write(data []byte) error {
	if len(data) == 0 {
		c.log.Debug("received empty value")
		return nil
	}
	if len(data) != settings.RecordSize {
		c.log.Error("received settings have wrong size %d", len(data))
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), settings.RecordSize)
	}

	rec, err := settings.Decode(data)
	if err != nil {
		c.log.Error("received settings rejected: %v", err)
		return err
	}
	if err := c.store.ApplyRecord(rec); err != nil {
		c.log.Error("save settings: %v", err)
		return err
	}
	c.log.Info("settings saved, region %d", rec.Region)

	// ResetRequest never travels on the wire, so a decoded record always
	// has it cleared. Kept so a future record format can carry it.
	if rec.ResetRequest {
		c.reboot.Reboot("settings reset request")
	}
	return nil
}

func (c *SettingsChannel) Read() []byte {
	return settings.Encode(c.store.Record())
}
