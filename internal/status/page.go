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

import "html/template"

var page = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Device}}</title>
	<style>
		body { font-family: monospace; margin: 2em; background: #111; color: #eee; }
		.big { font-size: 3em; }
		td { padding: 0.3em 1em; }
	</style>
</head>
<body>
	<h1 id="device">{{.Device}}</h1>
	<p class="big"><span id="marker">{{.Marker}}</span> <span id="power">{{.Power}}</span> W</p>
	<table>
		<tr><td>Energy today</td><td id="energy_today">{{.EnergyToday}} Wh</td></tr>
		<tr><td>LoRa</td><td id="radio_outcome">{{.RadioOutcome}}</td></tr>
		<tr><td>Broadcast</td><td id="broadcast">{{.Broadcast}}</td></tr>
		<tr><td>Loop</td><td id="loop_state">{{.LoopState}}</td></tr>
		<tr><td>Battery</td><td id="battery">{{.Battery}} %</td></tr>
		<tr><td>Updated</td><td id="updated">{{.Updated.Format "15:04:05"}}</td></tr>
	</table>
	<script>
		const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + location.pathname.replace(/\/$/, "") + "/ws");
		ws.onmessage = (ev) => {
			const v = JSON.parse(ev.data);
			document.getElementById("marker").textContent = v.marker;
			document.getElementById("power").textContent = v.power;
			document.getElementById("energy_today").textContent = v.energy_today + " Wh";
			document.getElementById("radio_outcome").textContent = v.radio_outcome;
			document.getElementById("broadcast").textContent = v.broadcast;
			document.getElementById("loop_state").textContent = v.loop_state;
			document.getElementById("battery").textContent = v.battery + " %";
			if (v.updated) document.getElementById("updated").textContent = new Date(v.updated).toLocaleTimeString();
		};
	</script>
</body>
</html>
`))
