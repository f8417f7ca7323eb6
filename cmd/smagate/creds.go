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
	"encoding/hex"
	"fmt"
	"strings"

	"smagate/internal/device"
	"smagate/internal/provision"

	"github.com/spf13/cobra"
)

var deviceName string

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Encode or decode credentials channel documents",
	Long: `Credentials documents are JSON, XOR-obfuscated with the device name.
Without --name the name of this host is used.`,
}

var credsObfuscateCmd = &cobra.Command{
	Use:   "obfuscate JSON",
	Short: "Obfuscate a JSON document and print it as hex",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := credsKey()
		if err != nil {
			return err
		}
		out := provision.Obfuscate([]byte(args[0]), name)
		fmt.Fprintln(cmd.OutOrStdout(), strings.ToUpper(hex.EncodeToString(out)))
		return nil
	},
}

var credsRevealCmd = &cobra.Command{
	Use:   "reveal HEX",
	Short: "Print the JSON document hidden in a hex channel value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
		name, err := credsKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(provision.Obfuscate(data, name)))
		return nil
	},
}

func init() {
	credsCmd.PersistentFlags().StringVarP(&deviceName, "name", "n", "", "Device name used as key")
	credsCmd.AddCommand(credsObfuscateCmd, credsRevealCmd)
	rootCmd.AddCommand(credsCmd)
}

func credsKey() (string, error) {
	if deviceName != "" {
		return deviceName, nil
	}
	conf, err := loadConfig()
	if err != nil {
		return "", err
	}
	return device.Name(conf.Device.NamePrefix, conf.Device.Interface), nil
}
