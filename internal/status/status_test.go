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

package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smagate/internal/events"
	"smagate/pkg/eventbus"

	"github.com/gorilla/websocket"
)

type fixedBattery struct {
	percent, lora uint8
	err           error
}

func (b fixedBattery) Level() (uint8, uint8, error) { return b.percent, b.lora, b.err }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestViewFollowsEvents(t *testing.T) {
	bus := eventbus.New()
	s := New("MHC-SMA-000000000001", bus, fixedBattery{percent: 50, lora: 127})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, func() bool { return s.View().Battery == 50 })

	bus.Publish(events.TopicSample, events.SampleUpdate{Power: 1500, EnergyToday: 4200, OK: true, RadioOutcome: "enqueued", Broadcast: true})
	waitFor(t, func() bool { return s.View().Power == 1500 })
	if v := s.View(); v.Marker != "O" || v.RadioOutcome != "enqueued" || v.BatteryLoRa != 127 {
		t.Fatalf("view %+v", v)
	}

	// failed acquisitions still refresh the display
	bus.Publish(events.TopicSample, events.SampleUpdate{})
	waitFor(t, func() bool { return s.View().Marker == "X" })

	bus.Publish(events.TopicLoopState, events.LoopStateUpdate{State: "pace"})
	waitFor(t, func() bool { return s.View().LoopState == "pace" })
}

func TestBatteryUnknown(t *testing.T) {
	s := New("dev", eventbus.New(), fixedBattery{err: errors.New("no battery")})
	s.readBattery()
	if s.View().Battery != -1 {
		t.Fatalf("battery %d", s.View().Battery)
	}
}

func TestWebSocketFeed(t *testing.T) {
	bus := eventbus.New()
	s := New("dev", bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ts := httptest.NewServer(s)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	var v View
	if err := ws.ReadJSON(&v); err != nil {
		t.Fatal(err)
	}
	if v.Device != "dev" {
		t.Fatalf("initial view %+v", v)
	}

	bus.Publish(events.TopicSample, events.SampleUpdate{Power: 42, OK: true})
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for v.Power != 42 {
		if err := ws.ReadJSON(&v); err != nil {
			t.Fatal(err)
		}
	}
	if v.Marker != "O" {
		t.Fatalf("pushed view %+v", v)
	}
}

func TestPages(t *testing.T) {
	s := New("MHC-SMA-0A0B0C0D0E0F", eventbus.New(), nil)
	for _, path := range []string{"/", "/state"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "MHC-SMA-0A0B0C0D0E0F") {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body)
		}
	}
}
