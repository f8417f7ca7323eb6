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

// Package status is the gateway's display: a small page with the latest
// sample, fed live over a websocket.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"smagate/internal/events"
	"smagate/pkg/eventbus"
	"smagate/pkg/logger"

	"github.com/gorilla/websocket"
)

const batteryEvery = time.Minute

// Battery reads the cell charge; *battery.Reader satisfies it.
type Battery interface {
	Level() (percent, lora uint8, err error)
}

// View is what the display shows.
type View struct {
	Device       string    `json:"device"`
	Power        int       `json:"power"`
	EnergyToday  int       `json:"energy_today"`
	Marker       string    `json:"marker"` // O on success, X otherwise
	RadioOutcome string    `json:"radio_outcome"`
	Broadcast    bool      `json:"broadcast"`
	LoopState    string    `json:"loop_state"`
	Updated      time.Time `json:"updated,omitzero"`
	Battery      int       `json:"battery"` // percent, -1 when unknown
	BatteryLoRa  int       `json:"battery_lora"`
}

type Service struct {
	bus     *eventbus.Bus
	battery Battery
	log     *logger.Logger
	clients clientSync

	mu   sync.Mutex
	view View
}

// New returns the display service. battery may be nil.
func New(device string, bus *eventbus.Bus, battery Battery) *Service {
	return &Service{
		bus:     bus,
		battery: battery,
		log:     logger.New("Status"),
		clients: clientSync{clients: make(map[*websocket.Conn]bool)},
		view:    View{Device: device, Marker: "X", Battery: -1, BatteryLoRa: -1},
	}
}

func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Service) Run(ctx context.Context) {
	s.log.Info("Running...")
	samples := s.bus.Subscribe(ctx, events.TopicSample, true)
	states := s.bus.Subscribe(ctx, events.TopicLoopState, true)

	ticker := time.NewTicker(batteryEvery)
	defer ticker.Stop()
	s.readBattery()

	for {
		select {
		case <-ctx.Done():
			s.clients.closeAll()
			s.log.Info("Stopped")
			return
		case ev, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			if u, ok := ev.(events.SampleUpdate); ok {
				s.applySample(u)
			}
		case ev, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if u, ok := ev.(events.LoopStateUpdate); ok {
				s.update(func(v *View) { v.LoopState = u.State })
			}
		case <-ticker.C:
			s.readBattery()
		}
	}
}

// applySample refreshes the display after every acquisition, failed ones included.
func (s *Service) applySample(u events.SampleUpdate) {
	s.update(func(v *View) {
		v.Power = u.Power
		v.EnergyToday = u.EnergyToday
		v.Marker = "X"
		if u.OK {
			v.Marker = "O"
		}
		v.RadioOutcome = u.RadioOutcome
		v.Broadcast = u.Broadcast
		v.Updated = u.Time
	})
}

func (s *Service) readBattery() {
	if s.battery == nil {
		return
	}
	percent, lora, err := s.battery.Level()
	if err != nil {
		s.log.Debug("battery: %v", err)
		return
	}
	s.update(func(v *View) {
		v.Battery = int(percent)
		v.BatteryLoRa = int(lora)
	})
}

func (s *Service) update(fn func(v *View)) {
	s.mu.Lock()
	fn(&s.view)
	view := s.view
	s.mu.Unlock()
	s.push(view)
}

func (s *Service) push(v View) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to marshal view: %v", err)
		return
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		s.log.Error("failed to prepare message: %v", err)
		return
	}
	s.clients.broadcast(pm, s.log)
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimRight(r.URL.Path, "/") {
	case "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page.Execute(w, s.View())
	case "/state":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.View())
	case "/ws":
		s.serveWebSocket(w, r)
	default:
		http.NotFound(w, r)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || strings.Contains(origin, "localhost") {
			return true
		}
		return strings.Contains(origin, r.Host)
	},
}

func (s *Service) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade websocket: %v", err)
		return
	}
	if err := s.clients.add(ws, s.View()); err != nil {
		ws.Close()
		return
	}
	defer func() {
		s.clients.remove(ws)
		ws.Close()
	}()

	// the feed is one way, reading only detects the close
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read: %v", err)
			}
			return
		}
	}
}

type clientSync struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
}

func (c *clientSync) broadcast(pm *websocket.PreparedMessage, log *logger.Logger) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		if err := ws.WritePreparedMessage(pm); err != nil {
			log.Error("failed to write message: %v", err)
			ws.Close()
			delete(c.clients, ws)
		}
	}
}

// add sends the current view and registers ws for broadcasts.
func (c *clientSync) add(ws *websocket.Conn, initial View) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := ws.WriteJSON(initial); err != nil {
		return err
	}
	c.clients[ws] = true
	return nil
}

func (c *clientSync) remove(ws *websocket.Conn) {
	c.mutex.Lock()
	delete(c.clients, ws)
	c.mutex.Unlock()
}

func (c *clientSync) closeAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		ws.Close()
		delete(c.clients, ws)
	}
}
