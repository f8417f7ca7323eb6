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

package settings

import "fmt"

// Lines renders the record one field per line, annotated with the wire
// offset of each field.
func (r Record) Lines() []string {
	lines := make([]string, 0, len(layout)+1)
	for _, f := range layout {
		lines = append(lines, fmt.Sprintf("%02d %-12s %s", f.offset, f.name, f.show(&r)))
	}
	lines = append(lines, fmt.Sprintf("-- %-12s %v", "reset req", r.ResetRequest))
	return lines
}
