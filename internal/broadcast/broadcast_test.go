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

package broadcast

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestUDPDeliversDatagram(t *testing.T) {
	ln, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	u, err := NewUDP("127.0.0.1", ln.LocalAddr().(*net.UDPAddr).Port)
	if err != nil {
		t.Fatal(err)
	}

	doc := []byte(`{"de":"spm","s":1500,"c":0}`)
	u.Broadcast(context.Background(), doc)

	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("no datagram: %v", err)
	}
	if string(buf[:n]) != string(doc) {
		t.Fatalf("got %s, want %s", buf[:n], doc)
	}
}

func TestNewUDPRejectsBadHost(t *testing.T) {
	if _, err := NewUDP("not a host", 9997); err == nil {
		t.Fatal("expected resolve error")
	}
}

type recordSink struct{ got [][]byte }

func (r *recordSink) Broadcast(_ context.Context, p []byte) { r.got = append(r.got, p) }

func TestMultiSendsToAll(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	Multi{a, b}.Broadcast(context.Background(), []byte("x"))
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("a=%d b=%d", len(a.got), len(b.got))
	}
}
