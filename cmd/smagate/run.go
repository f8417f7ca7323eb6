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

package main

import (
	"fmt"
	"net/http"
	"path/filepath"

	"smagate/internal/broadcast"
	"smagate/internal/config"
	"smagate/internal/device"
	"smagate/internal/gateway"
	"smagate/internal/ota"
	"smagate/internal/provision"
	"smagate/internal/radio"
	"smagate/internal/sma"
	"smagate/internal/status"
	"smagate/internal/store"
	"smagate/internal/wifi"
	"smagate/pkg/appctx"
	"smagate/pkg/battery"
	"smagate/pkg/eventbus"
	"smagate/pkg/logger"
	"smagate/pkg/modbus"
	"smagate/pkg/prefs"
	"smagate/pkg/rootserv"
	"smagate/pkg/service"
	"smagate/pkg/sysmon"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	return config.Load(rootDir, path)
}

func runGateway(_ *cobra.Command, _ []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(conf.Path(conf.Log.File)); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logger.Close()
	if err := logger.SetLevel(conf.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log := logger.New("Main")

	modbusConf, err := modbus.LoadConfig(conf.Path(conf.Inverter.RegisterFile))
	if err != nil {
		return err
	}

	// use conf to pass eventbus to whoever needs it
	conf.EventBus = eventbus.New()
	dataDir := conf.Path(conf.DataDir)

	ctx, ctxCancel := appctx.New()
	defer ctxCancel()
	supervisor := service.NewSupervisor(ctxCancel)

	// persisted state
	prefStore, err := prefs.Open(filepath.Join(dataDir, "prefs"))
	if err != nil {
		return err
	}
	settingsService := store.NewService(store.New(prefStore), conf.EventBus)

	name := device.Name(conf.Device.NamePrefix, conf.Device.Interface)
	log.Info("device name %s, firmware %s", name, conf.Device.Firmware)
	rebooter := device.NewRebooter(supervisor, conf.Reboot.Command, conf.Reboot.Grace)
	network := wifi.New(conf.Device.Interface, conf.WiFi, settingsService)

	// collaborators of the acquisition loop
	modbusClient := modbus.NewClient(modbusConf)
	defer modbusClient.Close()
	inverter := sma.New(modbusClient, settingsService)

	modem, err := radio.Open(conf.Radio.Port, conf.Radio.Baud, conf.Radio.CommandTimeout)
	if err != nil {
		return err
	}
	loraService := radio.NewService(modem, settingsService, conf.EventBus)

	udp, err := broadcast.NewUDP(conf.Broadcast.Host, conf.Broadcast.Port)
	if err != nil {
		return err
	}
	sinks := broadcast.Multi{udp}

	var services []service.Runnable
	if conf.NATS.URL != "" {
		natsSink, err := broadcast.DialNATS(broadcast.NATSOptions{
			URL:           conf.NATS.URL,
			Name:          name,
			Subject:       conf.NATS.Subject,
			ReconnectWait: conf.Loop.IdleWait,
			MaxReconnects: -1,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, natsSink)
		services = append(services, natsSink)
	}

	updateService := ota.New(filepath.Join(dataDir, "firmware"), rebooter)

	loop := gateway.New(gateway.Options{
		Metrics:       conf.Metrics(),
		DeviceTag:     conf.Broadcast.DeviceTag,
		MaxPower:      conf.Inverter.MaxPower,
		MaxAttempts:   conf.Loop.MaxAttempts,
		PollEvery:     conf.Loop.PollEvery,
		IdleWait:      conf.Loop.IdleWait,
		RetryBackoff:  conf.Loop.RetryBackoff,
		DecoupleDelay: conf.Loop.DecoupleDelay,
	}, gateway.Deps{
		Source:      inverter,
		Radio:       loraService,
		Broadcaster: sinks,
		Network:     network,
		Updates:     updateService,
		Settings:    settingsService,
		Bus:         conf.EventBus,
	})

	// configuration channels
	provisionServer := provision.NewServer(name, provision.NewLogAdvertiser(),
		provision.NewCredentialsChannel(name, conf.Device.Firmware, settingsService, network, rebooter),
		provision.NewSettingsChannel(settingsService, rebooter),
		provision.NewUartChannel(),
	)

	display := status.New(name, conf.EventBus, battery.NewReader(conf.Battery.VoltagePath))

	// attach web handler enabled services
	server := rootserv.New(conf.Web.Addr, name)
	server.Attach("/", "Status", http.RedirectHandler("/status/", http.StatusTemporaryRedirect))
	server.Attach("/status", "Live Status", display)
	server.Attach("/inverter", "Inverter Registers", sma.NewRegisterBrowser(modbusClient, modbusConf.Registers))
	server.Attach("/logger", "Logger", logger.WebService())
	server.Attach("/monitor", "System Monitor", sysmon.New(dataDir))
	server.Attach("/provision", "Configuration Channels", provisionServer.Handler())
	server.Attach("/ota", "Firmware Update", updateService)

	// start runnable services
	services = append(services,
		loraService,
		loop,
		provisionServer,
		display,
		server,
	)
	exitCh := supervisor.Start(ctx, services)

	// waits for all services to stop
	exitCode = <-exitCh
	log.Info("exit code %d", exitCode)
	return nil
}
