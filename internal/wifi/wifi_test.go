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

package wifi

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"smagate/internal/config"
	"smagate/internal/store"
)

type credsFunc func() store.Credentials

func (f credsFunc) Credentials() store.Credentials { return f() }

type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool // keyed by ssid
	block chan struct{}
}

func (r *recorder) run(_ context.Context, name string, args ...string) ([]byte, error) {
	if r.block != nil {
		<-r.block
	}
	line := name + " " + strings.Join(args, " ")
	r.mu.Lock()
	r.calls = append(r.calls, line)
	r.mu.Unlock()
	for ssid := range r.fail {
		if strings.Contains(line, ssid) {
			return []byte("no network"), errors.New("exit status 10")
		}
	}
	return []byte("home\n"), nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var conf = config.WiFiConfig{
	ConnectCmd:    []string{"nmcli", "connect", "{ssid}", "{password}", "{iface}"},
	DisconnectCmd: []string{"nmcli", "disconnect", "{iface}"},
	SSIDCmd:       []string{"iwgetid", "{iface}", "--raw"},
}

func newManager(r *recorder, c store.Credentials) *Manager {
	m := New("wlan0", conf, credsFunc(func() store.Credentials { return c }))
	m.run = r.run
	return m
}

func TestReconnectFallsBackToSecondary(t *testing.T) {
	r := &recorder{fail: map[string]bool{"home": true}}
	m := newManager(r, store.Credentials{
		PrimarySSID: "home", PrimaryPassword: "pw1",
		SecondarySSID: "barn", SecondaryPassword: "pw2",
		Valid: true,
	})

	if !m.reconnect(context.Background()) {
		t.Fatal("secondary network not tried")
	}
	calls := r.Calls()
	want := []string{"nmcli connect home pw1 wlan0", "nmcli connect barn pw2 wlan0"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("calls = %q", calls)
	}
}

func TestReconnectNeedsUsableCredentials(t *testing.T) {
	r := &recorder{}
	m := newManager(r, store.Credentials{Valid: true})
	if m.reconnect(context.Background()) {
		t.Fatal("connected without an ssid")
	}
	if len(r.Calls()) != 0 {
		t.Fatalf("unexpected calls %q", r.Calls())
	}
}

func TestReconnectDoesNotBlock(t *testing.T) {
	r := &recorder{block: make(chan struct{})}
	m := newManager(r, store.Credentials{PrimarySSID: "home", Valid: true})

	done := make(chan struct{})
	go func() {
		m.Reconnect()
		m.Reconnect() // dropped, attempt in flight
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reconnect blocked")
	}

	close(r.block)
	deadline := time.Now().Add(time.Second)
	for m.reconnecting.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(r.Calls()); n != 1 {
		t.Fatalf("%d connect attempts, want 1", n)
	}
}

func TestConnectedAndLocalIP(t *testing.T) {
	m := newManager(&recorder{}, store.Credentials{})

	m.addrs = func(string) ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.40").To4(), Mask: net.CIDRMask(24, 32)},
		}, nil
	}
	ip, ok := m.LocalIP()
	if !ok || ip.String() != "192.168.1.40" || !m.Connected() {
		t.Fatalf("LocalIP = %v %v", ip, ok)
	}

	m.addrs = func(string) ([]net.Addr, error) { return nil, errors.New("no such interface") }
	if m.Connected() {
		t.Fatal("connected without interface")
	}
}

func TestSSIDAndDisconnect(t *testing.T) {
	r := &recorder{}
	m := newManager(r, store.Credentials{})
	if got := m.SSID(); got != "home" {
		t.Fatalf("SSID = %q", got)
	}
	m.Disconnect()
	calls := r.Calls()
	if calls[len(calls)-1] != "nmcli disconnect wlan0" {
		t.Fatalf("calls = %q", calls)
	}
}
