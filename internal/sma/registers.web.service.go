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
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"time"

	"smagate/pkg/logger"
	"smagate/pkg/modbus"
)

const browseTimeout = 10 * time.Second

// ValueReader reads one configured register; *modbus.Client satisfies it.
type ValueReader interface {
	ReadValue(ctx context.Context, name string) (any, error)
}

// Value is one register as shown by the browser.
type Value struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Value       any    `json:"value"`
	Error       string `json:"error,omitempty"`
}

// RegisterBrowser reads every configured register on request, for checking
// a register map against a live inverter.
type RegisterBrowser struct {
	client    ValueReader
	registers map[string]modbus.RegisterDef
	log       *logger.Logger
}

func NewRegisterBrowser(client ValueReader, registers map[string]modbus.RegisterDef) *RegisterBrowser {
	return &RegisterBrowser{client: client, registers: registers, log: logger.New("SMARegs")}
}

// ReadAll reads the registers in name order.
func (b *RegisterBrowser) ReadAll(ctx context.Context) []Value {
	names := make([]string, 0, len(b.registers))
	for name := range b.registers {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]Value, 0, len(names))
	for _, name := range names {
		v := Value{ID: name, Description: b.registers[name].Description}
		val, err := b.client.ReadValue(ctx, name)
		switch {
		case errors.Is(err, modbus.ErrUnavailable):
			v.Error = "not available"
		case err != nil:
			v.Error = err.Error()
			b.log.Error("read %s: %v", name, err)
		default:
			v.Value = val
		}
		values = append(values, v)
	}
	return values
}

func (b *RegisterBrowser) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), browseTimeout)
	defer cancel()

	switch r.URL.Path {
	case "/api/values":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.ReadAll(ctx)); err != nil {
			b.log.Error("failed to encode values: %v", err)
		}
	case "/", "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		registersPage.Execute(w, b.ReadAll(ctx))
	default:
		http.NotFound(w, r)
	}
}

var registersPage = template.Must(template.New("registers").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Inverter Registers</title>
	<style>
		body { font-family: sans-serif; margin: 2em; }
		table { border-collapse: collapse; }
		th, td { border: 1px solid #ccc; padding: 0.4em 1em; text-align: left; }
		.err { color: #b00; }
	</style>
</head>
<body>
	<h1>Inverter Registers</h1>
	<table>
		<tr><th>Name</th><th>Description</th><th>Value</th></tr>
		{{range .}}<tr><td>{{.ID}}</td><td>{{.Description}}</td>{{if .Error}}<td class="err">{{.Error}}</td>{{else}}<td>{{.Value}}</td>{{end}}</tr>
		{{end}}
	</table>
</body>
</html>
`))
