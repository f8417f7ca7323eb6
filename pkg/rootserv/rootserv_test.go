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

package rootserv

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAttachStripsPrefix(t *testing.T) {
	ms := New(":0", "Test")
	var seen string
	ms.Attach("/status", "Status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
	}))

	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/ws", nil))

	if seen != "/ws" {
		t.Fatalf("sub handler saw %q, want /ws", seen)
	}
}

func TestIndexListsSubservers(t *testing.T) {
	ms := New(":0", "Gateway")
	ms.Attach("logger", "Logger", http.NotFoundHandler())
	ms.Attach("/ota/", "Firmware update", http.NotFoundHandler())

	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index", nil))

	body := rec.Body.String()
	for _, want := range []string{"/logger", "/ota", "Firmware update"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestRootRedirectsToIndex(t *testing.T) {
	ms := New(":0", "Gateway")

	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	if loc := rec.Header().Get("Location"); loc != "/index" {
		t.Fatalf("Location = %q, want /index", loc)
	}
}
