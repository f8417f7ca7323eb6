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

package store

import (
	"net/netip"
	"sync"
	"time"

	"smagate/internal/events"
	"smagate/internal/settings"
	"smagate/pkg/eventbus"
	"smagate/pkg/logger"
)

// Service is the single owner of the live settings record and credentials.
// Configuration channels write through it while the acquisition loop reads
// from it; readers always get copies.
type Service struct {
	store *Store
	bus   *eventbus.Bus
	log   *logger.Logger

	// wmu orders writers so that disk, memory and published events agree.
	wmu sync.Mutex

	mu            sync.RWMutex
	record        settings.Record
	creds         Credentials
	statusChanged bool
}

// NewService loads the persisted state. bus may be nil.
func NewService(st *Store, bus *eventbus.Bus) *Service {
	s := &Service{store: st, bus: bus, log: logger.New("Settings")}

	rec, ok := st.LoadRecord()
	if !ok {
		s.log.Info("no valid settings stored, saving defaults")
		if err := st.SaveRecord(rec); err != nil {
			s.log.Error("save default settings: %v", err)
		}
	}
	s.record = rec
	s.creds = st.LoadCredentials()
	if s.creds.Valid && !s.creds.Usable() {
		s.log.Error("found credentials but they are invalid")
	}
	return s
}

func (s *Service) Record() settings.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

func (s *Service) RepeatInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Interval()
}

// ApplyRecord persists r and only then makes it the live record.
func (s *Service) ApplyRecord(r settings.Record) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.store.SaveRecord(r); err != nil {
		return err
	}
	s.mu.Lock()
	s.record = r
	s.mu.Unlock()

	for _, line := range r.Lines() {
		s.log.Debug("%s", line)
	}
	s.publish(events.TopicSettings, events.SettingsUpdate{Record: r})
	return nil
}

func (s *Service) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

func (s *Service) HasCredentials() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Usable()
}

// ApplyCredentials persists c, marks it valid and flags a connection
// status change. A radio preference or inverter address missing from c
// keeps the previous one.
func (s *Service) ApplyCredentials(c Credentials) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.store.SaveCredentials(c); err != nil {
		return err
	}
	c.Valid = true

	s.mu.Lock()
	if !c.HasRadioPreference && s.creds.HasRadioPreference {
		c.RadioPreference = s.creds.RadioPreference
		c.HasRadioPreference = true
	}
	if !c.InverterAddr.IsValid() {
		c.InverterAddr = s.creds.InverterAddr
	}
	s.creds = c
	s.statusChanged = true
	s.mu.Unlock()

	s.publish(events.TopicCredentials, events.CredentialsUpdate{HasCredentials: c.Usable(), PrimarySSID: c.PrimarySSID})
	return nil
}

// EraseAll wipes the credentials, every other persisted namespace and the
// in-memory credentials. The live record stays until the next boot.
func (s *Service) EraseAll() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.store.EraseCredentials(); err != nil {
		return err
	}

	s.mu.Lock()
	s.creds = Credentials{}
	s.statusChanged = true
	s.mu.Unlock()
	s.publish(events.TopicCredentials, events.CredentialsUpdate{})

	return s.store.EraseAll()
}

// TakeStatusChanged reports and clears the connection-status-changed flag.
func (s *Service) TakeStatusChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.statusChanged
	s.statusChanged = false
	return changed
}

// InverterAddr returns the inverter address override, if one was provisioned.
func (s *Service) InverterAddr() (netip.Addr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.InverterAddr, s.creds.InverterAddr.IsValid()
}

func (s *Service) publish(topic eventbus.Topic, ev eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}
