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

package battery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMillivoltsToPercent(t *testing.T) {
	tests := []struct {
		mv   float64
		want uint8
	}{
		{0, 0},
		{3299, 0},
		{3300, 0},
		{3450, 5},
		{3599, 9},
		{3600, 10},
		{3900, 55},
		{4200, 100},
		{4500, 100},
	}
	for _, tt := range tests {
		if got := MillivoltsToPercent(tt.mv); got != tt.want {
			t.Errorf("MillivoltsToPercent(%v) = %d, want %d", tt.mv, got, tt.want)
		}
	}
}

func TestLoRaLevel(t *testing.T) {
	tests := map[uint8]uint8{0: 0, 50: 127, 100: 254}
	for in, want := range tests {
		if got := LoRaLevel(in); got != want {
			t.Errorf("LoRaLevel(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestReaderLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltage_now")
	if err := os.WriteFile(path, []byte("3900000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	percent, lora, err := NewReader(path).Level()
	if err != nil {
		t.Fatal(err)
	}
	if percent != 55 || lora != 139 {
		t.Fatalf("percent %d lora %d", percent, lora)
	}

	if _, _, err := NewReader(filepath.Join(t.TempDir(), "missing")).Level(); err == nil {
		t.Fatal("missing file accepted")
	}
}
