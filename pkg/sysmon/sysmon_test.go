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

package sysmon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeJSON(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var m Metrics
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.DataDir != dir || m.GoVersion == "" {
		t.Fatalf("metrics %+v", m)
	}
	if m.DiskTotal == 0 || m.DiskFree > m.DiskTotal {
		t.Fatalf("disk total %d free %d", m.DiskTotal, m.DiskFree)
	}
}

func TestServeHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	New(t.TempDir()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "System Monitor") {
		t.Fatalf("page %s", rec.Body)
	}
}
