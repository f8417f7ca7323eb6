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

package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"smagate/internal/events"
	"smagate/internal/settings"
	"smagate/pkg/eventbus"
	"smagate/pkg/logger"
)

// RecordSource yields the live settings record.
type RecordSource interface {
	Record() settings.Record
}

// Service keeps the modem configured from the settings record and is the
// uplink used by the acquisition loop.
type Service struct {
	modem    *Modem
	settings RecordSource
	bus      *eventbus.Bus
	log      *logger.Logger

	appPort atomic.Uint32
	joined  atomic.Bool
}

func NewService(m *Modem, src RecordSource, bus *eventbus.Bus) *Service {
	s := &Service{modem: m, settings: src, bus: bus, log: logger.New("LoRaWAN")}
	s.appPort.Store(uint32(src.Record().AppPort))
	m.OnEvent = s.onEvent
	return s
}

// Run configures the modem, starts the join and re-applies the settings
// every time they change.
func (s *Service) Run(ctx context.Context) {
	defer s.modem.Close()

	var updates <-chan eventbus.Event
	if s.bus != nil {
		updates = s.bus.Subscribe(ctx, events.TopicSettings, false)
	}

	s.apply(ctx, s.settings.Record())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if u, ok := ev.(events.SettingsUpdate); ok {
				s.log.Info("settings changed, reconfiguring modem")
				s.apply(ctx, u.Record)
			}
		}
	}
}

func (s *Service) apply(ctx context.Context, r settings.Record) {
	cmds, err := ConfigCommands(r)
	if err != nil {
		s.log.Error("cannot configure modem: %v", err)
		return
	}
	s.joined.Store(false)
	for _, cmd := range cmds {
		if _, err := s.modem.Command(ctx, cmd); err != nil {
			s.log.Error("configure: %v", err)
			return
		}
	}
	s.appPort.Store(uint32(r.AppPort))
	s.log.Info("modem configured: %s, class %s, %s", RegionName(r.Region), r.Class, joinMode(r.OTAA))

	if !r.OTAA {
		s.joined.Store(true)
		return
	}
	if _, err := s.modem.Command(ctx, JoinCommand(r)); err != nil {
		s.log.Error("join: %v", err)
	}
}

// Joined asks the modem unless a join event was already seen.
func (s *Service) Joined(ctx context.Context) bool {
	if s.joined.Load() {
		return true
	}
	lines, err := s.modem.Command(ctx, "AT+NJS=?")
	if err != nil {
		s.log.Debug("join status: %v", err)
	} else if parseFlag(lines, "AT+NJS=") {
		s.joined.Store(true)
	}
	// a JOINED event may have arrived while the query ran
	return s.joined.Load()
}

// Send queues payload on the configured application port.
func (s *Service) Send(ctx context.Context, payload []byte) (Outcome, error) {
	cmd := fmt.Sprintf("AT+SEND=%d:%X", s.appPort.Load(), payload)
	_, err := s.modem.Command(ctx, cmd)
	outcome, err := Classify(err)
	if errors.Is(err, ErrNotJoined) {
		s.joined.Store(false)
	}
	return outcome, err
}

// Classify maps the reply to an AT+SEND into an outcome. The outcome is
// only meaningful when the returned error is nil.
func Classify(err error) (Outcome, error) {
	if err == nil {
		return Enqueued, nil
	}
	var re *ReplyError
	if errors.As(err, &re) {
		switch re.Code {
		case codeBusy:
			return Busy, nil
		case codeParam, codeOverflow:
			return TooLarge, nil
		case codeNoNetwork:
			return Enqueued, ErrNotJoined
		}
	}
	return Enqueued, err
}

func (s *Service) onEvent(ev string) {
	switch {
	case ev == "JOINED":
		s.log.Info("joined network")
		s.joined.Store(true)
	case strings.HasPrefix(ev, "JOIN_FAILED"):
		s.log.Error("join failed: %s", ev)
		s.joined.Store(false)
	default:
		s.log.Debug("event %s", ev)
	}
}

// parseFlag reads replies like "AT+NJS=1" or a bare "1".
func parseFlag(lines []string, prefix string) bool {
	for _, l := range lines {
		v := strings.TrimPrefix(l, prefix)
		if v == "1" {
			return true
		}
	}
	return false
}

func joinMode(otaa bool) string {
	if otaa {
		return "OTAA"
	}
	return "ABP"
}
