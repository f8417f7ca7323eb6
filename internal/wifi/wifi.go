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

// Package wifi drives the wireless uplink through external commands
// (nmcli, wpa_cli, ...) and reports link state from the interface addresses.
package wifi

import (
	"context"
	"net"
	"net/netip"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"smagate/internal/config"
	"smagate/internal/store"
	"smagate/pkg/logger"
)

const connectTimeout = 30 * time.Second

// CredentialSource provides the stored networks.
type CredentialSource interface {
	Credentials() store.Credentials
}

// runner executes a command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Manager struct {
	iface string
	conf  config.WiFiConfig
	creds CredentialSource
	log   *logger.Logger

	run   runner
	addrs func(iface string) ([]net.Addr, error)

	reconnecting atomic.Bool
}

func New(iface string, conf config.WiFiConfig, creds CredentialSource) *Manager {
	return &Manager{
		iface: iface,
		conf:  conf,
		creds: creds,
		log:   logger.New("WiFi"),
		run:   execRunner,
		addrs: interfaceAddrs,
	}
}

func interfaceAddrs(iface string) ([]net.Addr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	return ifi.Addrs()
}

// LocalIP returns the first IPv4 address of the interface.
func (m *Manager) LocalIP() (netip.Addr, bool) {
	addrs, err := m.addrs(m.iface)
	if err != nil {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		ip := prefix.Addr().Unmap()
		if ip.Is4() && !ip.IsLoopback() {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

// Connected reports whether the interface holds an IPv4 address.
func (m *Manager) Connected() bool {
	_, ok := m.LocalIP()
	return ok
}

// Reconnect starts a connection attempt in the background and returns at
// once. Calls made while an attempt runs are dropped.
func (m *Manager) Reconnect() {
	if !m.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.reconnecting.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		m.reconnect(ctx)
	}()
}

// reconnect tries the primary network, then the secondary one.
func (m *Manager) reconnect(ctx context.Context) bool {
	if len(m.conf.ConnectCmd) == 0 {
		m.log.Debug("no connect command configured")
		return false
	}
	c := m.creds.Credentials()
	if !c.Usable() {
		m.log.Info("no valid credentials, waiting for provisioning")
		return false
	}

	networks := [][2]string{{c.PrimarySSID, c.PrimaryPassword}}
	if c.SecondarySSID != "" {
		networks = append(networks, [2]string{c.SecondarySSID, c.SecondaryPassword})
	}
	for _, n := range networks {
		m.log.Info("connecting to %q", n[0])
		out, err := m.exec(ctx, m.conf.ConnectCmd, n[0], n[1])
		if err == nil {
			m.log.Info("connected to %q", n[0])
			return true
		}
		m.log.Error("connect %q: %v: %s", n[0], err, strings.TrimSpace(string(out)))
	}
	return false
}

// Disconnect drops the current association.
func (m *Manager) Disconnect() {
	if len(m.conf.DisconnectCmd) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, err := m.exec(ctx, m.conf.DisconnectCmd, "", ""); err != nil {
		m.log.Error("disconnect: %v: %s", err, strings.TrimSpace(string(out)))
	}
}

// SSID returns the network the interface is associated with, or "".
func (m *Manager) SSID() string {
	if len(m.conf.SSIDCmd) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := m.exec(ctx, m.conf.SSIDCmd, "", "")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (m *Manager) exec(ctx context.Context, cmd []string, ssid, password string) ([]byte, error) {
	r := strings.NewReplacer("{ssid}", ssid, "{password}", password, "{iface}", m.iface)
	args := make([]string, len(cmd)-1)
	for i, a := range cmd[1:] {
		args[i] = r.Replace(a)
	}
	return m.run(ctx, cmd[0], args...)
}
