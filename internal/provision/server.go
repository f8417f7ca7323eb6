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
	"context"
	"fmt"
	"strings"
	"sync"

	"smagate/pkg/logger"
)

// Advertiser makes the gateway discoverable to configuration clients.
type Advertiser interface {
	Advertise(name string) error
}

// LogAdvertiser only records that the gateway is discoverable; the HTTP
// bridge needs nothing more.
type LogAdvertiser struct {
	log *logger.Logger
}

func NewLogAdvertiser() *LogAdvertiser {
	return &LogAdvertiser{log: logger.New("Advertise")}
}

func (a *LogAdvertiser) Advertise(name string) error {
	a.log.Info("advertising as %s", name)
	return nil
}

// Server dispatches reads and writes to channels by UUID or name and tracks
// the client session.
type Server struct {
	name     string
	adv      Advertiser
	channels map[string]Channel
	uart     *UartChannel
	log      *logger.Logger

	mu         sync.Mutex
	connected  bool
	detachSink func()
}

func NewServer(name string, adv Advertiser, channels ...Channel) *Server {
	s := &Server{
		name:     name,
		adv:      adv,
		channels: make(map[string]Channel),
		log:      logger.New("Provision"),
	}
	for _, ch := range channels {
		s.channels[strings.ToLower(ch.UUID())] = ch
		s.channels[ch.Name()] = ch
		if u, ok := ch.(*UartChannel); ok {
			s.uart = u
			s.channels[strings.ToLower(UartRxUUID)] = ch
		}
	}
	return s
}

func (s *Server) channel(key string) (Channel, error) {
	ch, ok := s.channels[strings.ToLower(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, key)
	}
	return ch, nil
}

func (s *Server) Read(key string) ([]byte, error) {
	ch, err := s.channel(key)
	if err != nil {
		return nil, err
	}
	s.log.Debug("read %s", ch.Name())
	return ch.Read(), nil
}

func (s *Server) Write(key string, data []byte) error {
	ch, err := s.channel(key)
	if err != nil {
		return err
	}
	s.log.Debug("write %s (%d bytes)", ch.Name(), len(data))
	return ch.Write(data)
}

// Connect starts a client session and attaches the log mirror.
func (s *Server) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return
	}
	s.connected = true
	s.log.Debug("client connected")
	if s.uart != nil {
		s.detachSink = logger.AddSink("uart", s.uart.sink())
	}
}

// Disconnect ends the session and advertises again so the next client can
// find the gateway.
func (s *Server) Disconnect() {
	if !s.endSession() {
		return
	}
	s.log.Debug("client disconnected")
	s.advertise()
}

func (s *Server) endSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false
	}
	s.connected = false
	if s.detachSink != nil {
		s.detachSink()
		s.detachSink = nil
	}
	return true
}

func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Server) advertise() {
	if err := s.adv.Advertise(s.name); err != nil {
		s.log.Error("advertise: %v", err)
	}
}

// Run advertises until ctx ends.
func (s *Server) Run(ctx context.Context) {
	s.log.Info("Running...")
	s.advertise()
	<-ctx.Done()
	s.endSession()
	s.log.Info("Stopped")
}
