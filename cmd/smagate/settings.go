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
	"path/filepath"
	"strings"

	"smagate/internal/settings"
	"smagate/internal/store"
	"smagate/pkg/prefs"

	"github.com/spf13/cobra"
)

var useDefaults bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect the LoRaWAN settings record",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored settings record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := storedRecord()
		if err != nil {
			return err
		}
		printRecord(cmd, rec)
		return nil
	},
}

var settingsEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the wire image of the stored (or default) record as hex",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec := settings.Default()
		if !useDefaults {
			var err error
			if rec, err = storedRecord(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.ToUpper(hex.EncodeToString(settings.Encode(rec))))
		return nil
	},
}

var settingsDecodeCmd = &cobra.Command{
	Use:   "decode HEX",
	Short: "Decode a hex wire image and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
		rec, err := settings.Decode(data)
		if err != nil {
			return err
		}
		printRecord(cmd, rec)
		return nil
	},
}

func init() {
	settingsEncodeCmd.Flags().BoolVar(&useDefaults, "default", false, "Encode the factory defaults instead of the stored record")
	settingsCmd.AddCommand(settingsShowCmd, settingsEncodeCmd, settingsDecodeCmd)
	rootCmd.AddCommand(settingsCmd)
}

func storedRecord() (settings.Record, error) {
	conf, err := loadConfig()
	if err != nil {
		return settings.Record{}, err
	}
	p, err := prefs.Open(filepath.Join(conf.Path(conf.DataDir), "prefs"))
	if err != nil {
		return settings.Record{}, err
	}
	rec, _ := store.New(p).LoadRecord()
	return rec, nil
}

func printRecord(cmd *cobra.Command, rec settings.Record) {
	for _, line := range rec.Lines() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}
