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
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smagate/internal/settings"
	"smagate/pkg/logger"
)

type countingAdvertiser struct {
	names []string
}

func (a *countingAdvertiser) Advertise(name string) error {
	a.names = append(a.names, name)
	return nil
}

func newServer() (*Server, *fakeStore, *countingAdvertiser, *UartChannel) {
	st := &fakeStore{record: settings.Default()}
	adv := &countingAdvertiser{}
	uart := NewUartChannel()
	srv := NewServer(deviceName, adv,
		NewCredentialsChannel(deviceName, "1.0.0", st, &fakeNet{}, &fakeReboot{}),
		NewSettingsChannel(st, &fakeReboot{}),
		uart,
	)
	return srv, st, adv, uart
}

func TestServerDispatch(t *testing.T) {
	srv, _, _, _ := newServer()

	byUUID, err := srv.Read(SettingsUUID)
	if err != nil {
		t.Fatal(err)
	}
	byName, err := srv.Read("settings")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(byUUID, byName) || len(byName) != settings.RecordSize {
		t.Fatal("settings channel not reachable by uuid and name")
	}

	if _, err := srv.Read(strings.ToUpper(CredentialsUUID)); err != nil {
		t.Fatalf("uuid lookup is case sensitive: %v", err)
	}
	if err := srv.Write("nope", nil); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("err = %v", err)
	}
}

func TestServerReadvertisesOnDisconnect(t *testing.T) {
	srv, _, adv, _ := newServer()

	srv.Disconnect() // no session, nothing to do
	srv.Connect()
	if !srv.Connected() {
		t.Fatal("not connected")
	}
	srv.Disconnect()
	if srv.Connected() || len(adv.names) != 1 || adv.names[0] != deviceName {
		t.Fatalf("advertised %v", adv.names)
	}
}

func TestUartMirrorsLogWhileConnected(t *testing.T) {
	srv, _, _, uart := newServer()
	log := logger.New("UartTest")

	log.Info("before connect")
	srv.Connect()
	log.Info("packet enqueued")
	srv.Disconnect()
	log.Info("after disconnect")

	got := string(uart.Read())
	if !strings.Contains(got, "packet enqueued") {
		t.Fatalf("mirror missed the line: %q", got)
	}
	if strings.Contains(got, "before connect") || strings.Contains(got, "after disconnect") {
		t.Fatalf("mirror leaked lines outside the session: %q", got)
	}
	if len(uart.Read()) != 0 {
		t.Fatal("Read does not drain")
	}
}

func TestUartBacklogIsBounded(t *testing.T) {
	u := NewUartChannel()
	sink := u.sink()
	for i := 0; i < uartBacklog+10; i++ {
		sink.Write([]byte("x\n"))
	}
	if n := len(u.Read()); n != uartBacklog*2 {
		t.Fatalf("backlog %d bytes", n)
	}
}

func TestHTTPBridge(t *testing.T) {
	srv, st, _, _ := newServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	do := func(method, path string, body []byte) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	rec := settings.Default()
	rec.JoinTrials = 9
	if resp := do(http.MethodPut, "/settings", settings.Encode(rec)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT settings: %d", resp.StatusCode)
	}
	if st.record.JoinTrials != 9 {
		t.Fatal("record not applied")
	}
	if resp := do(http.MethodPut, "/settings", []byte{0xAA, 0x57}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short PUT: %d", resp.StatusCode)
	}
	if resp := do(http.MethodGet, "/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown channel: %d", resp.StatusCode)
	}
	if resp := do(http.MethodPost, "/connect", nil); resp.StatusCode != http.StatusNoContent || !srv.Connected() {
		t.Fatalf("connect: %d", resp.StatusCode)
	}

	resp := do(http.MethodGet, "/", nil)
	var list struct {
		Device    string `json:"device"`
		Connected bool   `json:"connected"`
		Channels  []struct {
			Name string `json:"name"`
		} `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Device != deviceName || !list.Connected || len(list.Channels) != 3 {
		t.Fatalf("list = %+v", list)
	}

	do(http.MethodPost, "/disconnect", nil)
	if srv.Connected() {
		t.Fatal("still connected")
	}
}
