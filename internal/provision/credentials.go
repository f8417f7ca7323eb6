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
	"encoding/json"
	"fmt"

	"smagate/internal/store"
	"smagate/pkg/logger"
)

var credentialKeys = [4]string{"g_ssid_prim", "g_pw_prim", "g_ssid_sec", "g_pw_sec"}

// credentialsReply is the document returned on read, field order matters to
// the companion app.
type credentialsReply struct {
	PrimarySSID       string `json:"g_ssid_prim"`
	PrimaryPassword   string `json:"g_pw_prim"`
	SecondarySSID     string `json:"g_ssid_sec"`
	SecondaryPassword string `json:"g_pw_sec"`
	IP                string `json:"ip"`
	AP                string `json:"ap"`
	Firmware          string `json:"sw"`
}

// CredentialsChannel carries the WiFi credentials as JSON obfuscated with
// the device name.
type CredentialsChannel struct {
	key      string
	firmware string
	store    CredentialStore
	net      Network
	reboot   Rebooter
	log      *logger.Logger
}

func NewCredentialsChannel(deviceName, firmware string, st CredentialStore, net Network, reboot Rebooter) *CredentialsChannel {
	return &CredentialsChannel{
		key:      deviceName,
		firmware: firmware,
		store:    st,
		net:      net,
		reboot:   reboot,
		log:      logger.New("ProvWiFi"),
	}
}

func (c *CredentialsChannel) Name() string { return "credentials" }
func (c *CredentialsChannel) UUID() string { return CredentialsUUID }

// Write handles one client document. Empty payloads are ignored. "erase"
// wins over everything else, a full credential set comes next and "reset"
// last.
func (c *CredentialsChannel) Write(data []byte) error {
	if len(data) == 0 {
		c.log.Debug("received empty value")
		return nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(Obfuscate(data, c.key), &doc); err != nil {
		c.log.Error("received invalid JSON: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if _, ok := doc["erase"]; ok {
		c.log.Info("received erase command")
		c.net.Disconnect()
		err := c.store.EraseAll()
		if err != nil {
			c.log.Error("erase: %v", err)
		}
		c.reboot.Reboot("credentials erased")
		return err
	}

	if hasAll(doc, credentialKeys[:]) {
		return c.applyCredentials(doc)
	}

	if _, ok := doc["reset"]; ok {
		c.log.Info("received reset command")
		c.net.Disconnect()
		c.reboot.Reboot("reset requested")
		return nil
	}

	c.log.Error("document has neither the four credential fields nor a command")
	return ErrNoCommand
}

func (c *CredentialsChannel) applyCredentials(doc map[string]json.RawMessage) error {
	var vals [4]string
	for i, k := range credentialKeys {
		if err := json.Unmarshal(doc[k], &vals[i]); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidJSON, k, err)
		}
	}
	creds := store.Credentials{
		PrimarySSID:       vals[0],
		PrimaryPassword:   vals[1],
		SecondarySSID:     vals[2],
		SecondaryPassword: vals[3],
		Valid:             true,
	}

	if raw, ok := doc["lora"]; ok {
		var pref uint8
		if err := json.Unmarshal(raw, &pref); err != nil {
			return fmt.Errorf("%w: lora: %v", ErrInvalidJSON, err)
		}
		creds.RadioPreference = pref
		creds.HasRadioPreference = true
	}

	if raw, ok := doc["sma_ip"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("%w: sma_ip: %v", ErrInvalidJSON, err)
		}
		addr, err := store.ParseInverterAddr(text)
		if err != nil {
			return fmt.Errorf("%w: sma_ip: %v", ErrInvalidJSON, err)
		}
		creds.InverterAddr = addr
	}

	if err := c.store.ApplyCredentials(creds); err != nil {
		c.log.Error("save credentials: %v", err)
		return err
	}
	c.log.Info("received credentials: primary %q, secondary %q", creds.PrimarySSID, creds.SecondarySSID)
	if creds.InverterAddr.IsValid() {
		c.log.Info("inverter address set to %s", creds.InverterAddr)
	}

	c.net.Disconnect()
	c.net.Reconnect()
	return nil
}

// Read returns the stored credentials and link state, obfuscated.
func (c *CredentialsChannel) Read() []byte {
	creds := c.store.Credentials()
	reply := credentialsReply{
		PrimarySSID:       creds.PrimarySSID,
		PrimaryPassword:   creds.PrimaryPassword,
		SecondarySSID:     creds.SecondarySSID,
		SecondaryPassword: creds.SecondaryPassword,
		IP:                "0.0.0.0",
		Firmware:          c.firmware,
	}
	if c.net.Connected() {
		if ip, ok := c.net.LocalIP(); ok {
			reply.IP = ip.String()
		}
		reply.AP = c.net.SSID()
	}

	data, err := json.Marshal(reply)
	if err != nil {
		c.log.Error("marshal credentials: %v", err)
		return nil
	}
	c.log.Debug("stored settings: %s", data)
	return Obfuscate(data, c.key)
}

func hasAll(doc map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := doc[k]; !ok {
			return false
		}
	}
	return true
}
