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

package sma

import (
	"fmt"
	"time"

	"smagate/internal/telemetry"
)

type valueCheck func(value int, now time.Time, last map[string]reading) error

var valueChecks = map[string]valueCheck{
	"power":        powerCheck,
	"energy_today": energyTodayCheck,
}

func checkValue(name string, value int, now time.Time, last map[string]reading) error {
	check, ok := valueChecks[name]
	if !ok {
		return nil
	}
	return check(value, now, last)
}

// powerCheck only rejects negative readings; the plausibility ceiling is
// applied by the loop.
func powerCheck(power int, _ time.Time, _ map[string]reading) error {
	if power < 0 && power != telemetry.NoGeneration {
		return fmt.Errorf("negative power")
	}
	return nil
}

func energyTodayCheck(energy int, _ time.Time, _ map[string]reading) error {
	if energy < 0 && energy != telemetry.NoGeneration {
		return fmt.Errorf("negative energy")
	}
	return nil
}

// counterRegressed reports a daily counter below the previous reading of the
// same day. It is logged only; the new reading becomes the baseline.
func counterRegressed(name string, value int, now time.Time, last map[string]reading) (int, bool) {
	if name != "energy_today" || value < 0 {
		return 0, false
	}
	prev, ok := last[name]
	if !ok || prev.value < 0 || !sameDay(prev.at, now) {
		return 0, false
	}
	return prev.value, value < prev.value
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
