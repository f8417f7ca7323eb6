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

package sysmon

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"runtime"
	"time"

	"smagate/pkg/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Service reports the health of the host and of the gateway process.
type Service struct {
	dataDir string
	started time.Time
	log     *logger.Logger
}

// New reports disk usage for the filesystem holding dataDir.
func New(dataDir string) *Service {
	return &Service{
		dataDir: dataDir,
		started: time.Now(),
		log:     logger.New("SysMonitor"),
	}
}

type Metrics struct {
	GoVersion     string  `json:"go_version"`
	Hostname      string  `json:"hostname"`
	HostUptime    uint64  `json:"host_uptime_s"`
	ProcessUptime int64   `json:"process_uptime_s"`
	Load1         float64 `json:"load1"`
	CPUSystem     float64 `json:"cpu_system_percent"`
	CPUProcess    float64 `json:"cpu_process_percent"`
	MemTotal      uint64  `json:"mem_total"`
	MemUsed       uint64  `json:"mem_used"`
	MemAvailable  uint64  `json:"mem_available"`
	ProcessRSS    uint64  `json:"process_rss"`
	DataDir       string  `json:"data_dir"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskFree      uint64  `json:"disk_free"`
}

// Collect gathers a snapshot; unavailable values stay zero.
func (s *Service) Collect() Metrics {
	m := Metrics{
		GoVersion:     runtime.Version(),
		ProcessUptime: int64(time.Since(s.started).Seconds()),
		DataDir:       s.dataDir,
	}
	m.Hostname, _ = os.Hostname()

	if up, err := host.Uptime(); err == nil {
		m.HostUptime = up
	}
	if avg, err := load.Avg(); err == nil {
		m.Load1 = avg.Load1
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUSystem = pct[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemTotal, m.MemUsed, m.MemAvailable = vmem.Total, vmem.Used, vmem.Available
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			m.ProcessRSS = info.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			m.CPUProcess = pct
		}
	}

	d, err := dataDirUsage(s.dataDir)
	if err != nil {
		s.log.Debug("disk usage %s: %v", s.dataDir, err)
	}
	m.DiskTotal, m.DiskFree, m.DiskUsed = d.total, d.free, d.total-d.free
	return m
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m := s.Collect()

	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboard.Execute(w, m); err != nil {
		s.log.Error("render: %v", err)
	}
}

func gb(v uint64) float64 { return float64(v) / (1 << 30) }
func mb(v uint64) float64 { return float64(v) / (1 << 20) }

var dashboard = template.Must(template.New("sysmon").Funcs(template.FuncMap{"gb": gb, "mb": mb}).Parse(`<!DOCTYPE html>
<html>
<head>
	<title>System Monitor</title>
	<style>
		body { font-family: sans-serif; margin: 2em; background: #f9f9f9; }
		h1 { color: #333; }
		table { border-collapse: collapse; width: 60%; margin-top: 1em; }
		th, td { border: 1px solid #ccc; padding: 0.6em 1em; text-align: left; }
		th { background: #eee; }
	</style>
</head>
<body>
	<h1>System Monitor: {{.Hostname}}</h1>
	<p>Go {{.GoVersion}}, host up {{.HostUptime}} s, gateway up {{.ProcessUptime}} s, load {{printf "%.2f" .Load1}}</p>
	<h2>CPU</h2>
	<table>
		<tr><th>System %</th><th>Process %</th></tr>
		<tr><td>{{printf "%.2f" .CPUSystem}}</td><td>{{printf "%.2f" .CPUProcess}}</td></tr>
	</table>
	<h2>Memory</h2>
	<table>
		<tr><th>Total</th><th>Used</th><th>Available</th><th>Process RSS</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .MemTotal)}} GB</td>
			<td>{{printf "%.2f" (gb .MemUsed)}} GB</td>
			<td>{{printf "%.2f" (gb .MemAvailable)}} GB</td>
			<td>{{printf "%.2f" (mb .ProcessRSS)}} MB</td>
		</tr>
	</table>
	<h2>Disk ({{.DataDir}})</h2>
	<table>
		<tr><th>Total</th><th>Used</th><th>Free</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .DiskTotal)}} GB</td>
			<td>{{printf "%.2f" (gb .DiskUsed)}} GB</td>
			<td>{{printf "%.2f" (gb .DiskFree)}} GB</td>
		</tr>
	</table>
</body>
</html>
`))
