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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smagate/pkg/eventbus"

	"gopkg.in/yaml.v3"
)

type DeviceConfig struct {
	NamePrefix string `yaml:"name_prefix"`
	Interface  string `yaml:"interface"`
	Firmware   string `yaml:"firmware"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type InverterConfig struct {
	RegisterFile string   `yaml:"register_file"`
	Metrics      []string `yaml:"metrics"` // power, energy today
	MaxPower     int      `yaml:"max_power"`
}

type RadioConfig struct {
	Port           string        `yaml:"port"`
	Baud           int           `yaml:"baud"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

type BroadcastConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DeviceTag string `yaml:"device_tag"`
}

// NATSConfig enables the NATS mirror of the broadcast when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type LoopConfig struct {
	PollEvery     time.Duration `yaml:"poll_every"`
	IdleWait      time.Duration `yaml:"idle_wait"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	MaxAttempts   int           `yaml:"max_attempts"`
	DecoupleDelay time.Duration `yaml:"decouple_delay"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// WiFiConfig holds the commands used to drive the wireless link. Arguments
// may contain {ssid}, {password} and {iface} placeholders.
type WiFiConfig struct {
	ConnectCmd    []string `yaml:"connect_cmd"`
	DisconnectCmd []string `yaml:"disconnect_cmd"`
	SSIDCmd       []string `yaml:"ssid_cmd"`
}

type RebootConfig struct {
	Command []string      `yaml:"command"`
	Grace   time.Duration `yaml:"grace"`
}

type BatteryConfig struct {
	VoltagePath string `yaml:"voltage_path"` // sysfs file in microvolts
}

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Log       LogConfig       `yaml:"log"`
	DataDir   string          `yaml:"data_dir"`
	Inverter  InverterConfig  `yaml:"inverter"`
	Radio     RadioConfig     `yaml:"radio"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	NATS      NATSConfig      `yaml:"nats"`
	Loop      LoopConfig      `yaml:"loop"`
	Web       WebConfig       `yaml:"web"`
	WiFi      WiFiConfig      `yaml:"wifi"`
	Reboot    RebootConfig    `yaml:"reboot"`
	Battery   BatteryConfig   `yaml:"battery"`

	// not loaded from file, but added here to
	// pass to all services alongside config
	RootDir  string        `yaml:"-"`
	EventBus *eventbus.Bus `yaml:"-"`
}

// Load reads the config file below rootDir. A missing file yields the defaults.
func Load(rootDir, path string) (*Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	c.RootDir = rootDir
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("SMAGATE_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if port := os.Getenv("SMAGATE_RADIO_PORT"); port != "" {
		c.Radio.Port = port
	}
	if addr := os.Getenv("SMAGATE_WEB_ADDR"); addr != "" {
		c.Web.Addr = addr
	}
	if iface := os.Getenv("SMAGATE_INTERFACE"); iface != "" {
		c.Device.Interface = iface
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Device.NamePrefix == "" {
		c.Device.NamePrefix = "MHC-SMA-"
	}
	if c.Device.Interface == "" {
		c.Device.Interface = "wlan0"
	}
	if c.Device.Firmware == "" {
		c.Device.Firmware = "1.0.0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "var/logs/smagate.log"
	}
	if c.DataDir == "" {
		c.DataDir = "var/cache"
	}
	if c.Inverter.RegisterFile == "" {
		c.Inverter.RegisterFile = "var/config/sma.modbus.yml"
	}
	if len(c.Inverter.Metrics) == 0 {
		c.Inverter.Metrics = []string{"power", "energy_today"}
	}
	if c.Inverter.MaxPower == 0 {
		c.Inverter.MaxPower = 3000
	}
	if c.Radio.Port == "" {
		c.Radio.Port = "/dev/ttyUSB0"
	}
	if c.Radio.Baud == 0 {
		c.Radio.Baud = 115200
	}
	if c.Radio.CommandTimeout == 0 {
		c.Radio.CommandTimeout = 10 * time.Second
	}
	if c.Broadcast.Host == "" {
		c.Broadcast.Host = "192.168.1.255"
	}
	if c.Broadcast.Port == 0 {
		c.Broadcast.Port = 9997
	}
	if c.Broadcast.DeviceTag == "" {
		c.Broadcast.DeviceTag = "spm"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "smagate.telemetry"
	}
	if c.Loop.PollEvery == 0 {
		c.Loop.PollEvery = 100 * time.Millisecond
	}
	if c.Loop.IdleWait == 0 {
		c.Loop.IdleWait = 5 * time.Second
	}
	if c.Loop.RetryBackoff == 0 {
		c.Loop.RetryBackoff = 5 * time.Second
	}
	if c.Loop.MaxAttempts == 0 {
		c.Loop.MaxAttempts = 5
	}
	if c.Loop.DecoupleDelay == 0 {
		c.Loop.DecoupleDelay = 5 * time.Second
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":80"
	}
	if c.Reboot.Grace == 0 {
		c.Reboot.Grace = 2 * time.Second
	}
	if c.Battery.VoltagePath == "" {
		c.Battery.VoltagePath = "/sys/class/power_supply/battery/voltage_now"
	}
}

func (c *Config) validate() error {
	if len(c.Inverter.Metrics) != 2 {
		return fmt.Errorf("inverter.metrics: need exactly 2 names, got %d", len(c.Inverter.Metrics))
	}
	if c.Inverter.MaxPower < 0 {
		return fmt.Errorf("inverter.max_power: must be positive")
	}
	if c.Broadcast.Port < 0 || c.Broadcast.Port > 65535 {
		return fmt.Errorf("broadcast.port: out of range")
	}
	if c.Loop.MaxAttempts < 1 {
		return fmt.Errorf("loop.max_attempts: must be at least 1")
	}
	if c.Loop.PollEvery <= 0 {
		return fmt.Errorf("loop.poll_every: must be positive")
	}
	for name, d := range map[string]time.Duration{
		"loop.idle_wait":      c.Loop.IdleWait,
		"loop.retry_backoff":  c.Loop.RetryBackoff,
		"loop.decouple_delay": c.Loop.DecoupleDelay,
		"reboot.grace":        c.Reboot.Grace,
	} {
		if d < 0 {
			return fmt.Errorf("%s: must not be negative", name)
		}
	}
	if c.Loop.PollEvery > time.Second {
		return fmt.Errorf("loop.poll_every: %v keeps the update listener waiting too long", c.Loop.PollEvery)
	}
	return nil
}

// Path resolves p against the root dir unless it is absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir, p)
}

// Metrics returns the two inverter value names in loop order.
func (c *Config) Metrics() [2]string {
	return [2]string{c.Inverter.Metrics[0], c.Inverter.Metrics[1]}
}
