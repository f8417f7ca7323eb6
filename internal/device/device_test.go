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

package device

import (
	"net"
	"strings"
	"testing"
	"time"

	"smagate/pkg/service"
)

func TestNameFromMAC(t *testing.T) {
	mac := net.HardwareAddr{0x24, 0x6f, 0x28, 0x0a, 0xb1, 0xc2}
	if got := NameFromMAC("MHC-SMA-", mac); got != "MHC-SMA-246F280AB1C2" {
		t.Fatalf("got %q", got)
	}
}

func TestNameFallbackIsStable(t *testing.T) {
	a := Name("MHC-SMA-", "no-such-iface0")
	b := Name("MHC-SMA-", "no-such-iface0")
	if a != b || !strings.HasPrefix(a, "MHC-SMA-") || len(a) != len("MHC-SMA-")+12 {
		t.Fatalf("names %q %q", a, b)
	}
}

type exitRecorder chan int

func (e exitRecorder) Exit(code int) { e <- code }

func TestRebootOnce(t *testing.T) {
	exits := make(exitRecorder, 2)
	r := NewRebooter(exits, nil, 10*time.Millisecond)
	r.Reboot("erase")
	r.Reboot("again")

	select {
	case code := <-exits:
		if code != service.ExitRestart {
			t.Fatalf("code = %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("no exit")
	}
	select {
	case <-exits:
		t.Fatal("rebooted twice")
	case <-time.After(50 * time.Millisecond):
	}
}
