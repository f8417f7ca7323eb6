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
	"os"

	"github.com/spf13/cobra"
)

var (
	rootDir    string
	configFile string

	// set by the run command, handed to os.Exit by main
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "smagate",
	Short: "SMA inverter to LoRaWAN gateway",
	Long: `smagate reads live power and daily energy from an SMA inverter over
Modbus TCP and forwards each sample over LoRaWAN and as a UDP broadcast on
the local network.

The gateway is configured in the field through its configuration channels
(WiFi credentials and the LoRaWAN settings record), exposed over HTTP below
/provision. The settings and creds commands work on the same wire formats
offline.`,
	SilenceUsage: true,
}

func init() {
	root := os.Getenv("PROJECT_ROOT")
	if root == "" {
		root = "."
	}
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", root, "Project root holding var/ (env PROJECT_ROOT)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "var/config/smagate.yml", "Config file, relative to --root")
}
