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

// Outcome classifies what the modem did with an uplink.
type Outcome int

const (
	Enqueued Outcome = iota
	Busy
	TooLarge
)

func (o Outcome) String() string {
	switch o {
	case Enqueued:
		return "enqueued"
	case Busy:
		return "busy"
	case TooLarge:
		return "too large"
	default:
		return "unknown"
	}
}
