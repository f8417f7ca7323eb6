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

import (
	"fmt"

	"smagate/internal/settings"
)

// Region codes as stored in the settings record.
const (
	RegionAS923   uint8 = 0
	RegionAU915   uint8 = 1
	RegionCN470   uint8 = 2
	RegionCN779   uint8 = 3
	RegionEU433   uint8 = 4
	RegionEU868   uint8 = 5
	RegionKR920   uint8 = 6
	RegionIN865   uint8 = 7
	RegionUS915   uint8 = 8
	RegionAS923_2 uint8 = 9
	RegionAS923_3 uint8 = 10
	RegionAS923_4 uint8 = 11
	RegionRU864   uint8 = 12
)

// rui3Bands maps a record region code to the modem's AT+BAND value.
var rui3Bands = map[uint8]int{
	RegionEU433:   0,
	RegionCN470:   1,
	RegionRU864:   2,
	RegionIN865:   3,
	RegionEU868:   4,
	RegionUS915:   5,
	RegionAU915:   6,
	RegionKR920:   7,
	RegionAS923:   8,
	RegionAS923_2: 9,
	RegionAS923_3: 10,
	RegionAS923_4: 11,
}

var regionNames = map[uint8]string{
	RegionAS923: "AS923", RegionAU915: "AU915", RegionCN470: "CN470", RegionCN779: "CN779",
	RegionEU433: "EU433", RegionEU868: "EU868", RegionKR920: "KR920", RegionIN865: "IN865",
	RegionUS915: "US915", RegionAS923_2: "AS923-2", RegionAS923_3: "AS923-3",
	RegionAS923_4: "AS923-4", RegionRU864: "RU864",
}

func RegionName(code uint8) string {
	if n, ok := regionNames[code]; ok {
		return n
	}
	return fmt.Sprintf("region(%d)", code)
}

// Band returns the AT+BAND value for a region code.
func Band(region uint8) (int, error) {
	band, ok := rui3Bands[region]
	if !ok {
		return 0, fmt.Errorf("radio: region %s not supported by modem", RegionName(region))
	}
	return band, nil
}

// hasSubBands reports whether the region uses 8-channel sub-band masks.
func hasSubBands(region uint8) bool {
	return region == RegionUS915 || region == RegionAU915 || region == RegionCN470
}

// subBandMask renders the AT+MASK value enabling one sub-band (1-based).
func subBandMask(subBand uint8) string {
	if subBand == 0 {
		return "0000"
	}
	return fmt.Sprintf("%04X", uint16(1)<<(subBand-1))
}

// ConfigCommands renders the AT commands that bring the modem in line
// with r, in the order they must be issued.
func ConfigCommands(r settings.Record) ([]string, error) {
	band, err := Band(r.Region)
	if err != nil {
		return nil, err
	}

	class := "A"
	switch r.Class {
	case settings.ClassA:
	case settings.ClassC:
		class = "C"
	default:
		return nil, fmt.Errorf("radio: device class %s not supported", r.Class)
	}

	cmds := []string{
		"AT+NWM=1",
		"AT+NJM=" + flag(r.OTAA),
		"AT+BAND=" + fmt.Sprint(band),
	}
	if hasSubBands(r.Region) {
		cmds = append(cmds, "AT+MASK="+subBandMask(r.SubBand))
	}
	if r.OTAA {
		cmds = append(cmds,
			"AT+DEVEUI="+r.DevEUI.String(),
			"AT+APPEUI="+r.AppEUI.String(),
			"AT+APPKEY="+r.AppKey.String(),
		)
	} else {
		cmds = append(cmds,
			fmt.Sprintf("AT+DEVADDR=%08X", r.DevAddr),
			"AT+NWKSKEY="+r.NwkSKey.String(),
			"AT+APPSKEY="+r.AppSKey.String(),
		)
	}
	cmds = append(cmds,
		"AT+CLASS="+class,
		"AT+PNM="+flag(r.PublicNetwork),
		"AT+ADR="+flag(r.ADR),
		"AT+DCS="+flag(r.DutyCycle),
		fmt.Sprintf("AT+TXP=%d", r.TxPower),
		fmt.Sprintf("AT+DR=%d", r.DataRate),
		"AT+CFM="+flag(r.Confirmed),
	)
	return cmds, nil
}

// JoinCommand starts an OTAA join: join now, auto join on boot, 8 s between
// attempts and the configured number of attempts.
func JoinCommand(r settings.Record) string {
	return fmt.Sprintf("AT+JOIN=1:%s:8:%d", flag(r.AutoJoin), r.JoinTrials)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
