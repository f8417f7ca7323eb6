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

package events

import (
	"time"

	"smagate/internal/settings"
	"smagate/pkg/eventbus"
)

var (
	TopicSample      eventbus.Topic = "sample"
	TopicSettings    eventbus.Topic = "settings"
	TopicCredentials eventbus.Topic = "credentials"
	TopicLoopState   eventbus.Topic = "loop_state"
)

// SampleUpdate is published once per acquisition cycle, successful or not.
type SampleUpdate struct {
	Power        int
	EnergyToday  int
	OK           bool
	RadioOutcome string
	Broadcast    bool
	Time         time.Time
}

type SettingsUpdate struct {
	Record settings.Record
}

type CredentialsUpdate struct {
	HasCredentials bool
	PrimarySSID    string
}

type LoopStateUpdate struct {
	State string
	Time  time.Time
}
