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

// Package device holds the gateway identity and the remote reboot path.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"smagate/pkg/logger"
	"smagate/pkg/service"
)

// Name derives the advertised name from the MAC of iface. Hosts without that
// interface fall back to a hash of the hostname so the name stays stable.
func Name(prefix, iface string) string {
	if ifi, err := net.InterfaceByName(iface); err == nil && len(ifi.HardwareAddr) >= 6 {
		return NameFromMAC(prefix, ifi.HardwareAddr)
	}
	host, _ := os.Hostname()
	h := fnv.New64a()
	h.Write([]byte(host))
	var mac [8]byte
	binary.BigEndian.PutUint64(mac[:], h.Sum64())
	return NameFromMAC(prefix, mac[:6])
}

func NameFromMAC(prefix string, mac net.HardwareAddr) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, x := range mac[:6] {
		fmt.Fprintf(&b, "%02X", x)
	}
	return b.String()
}

// Exiter ends the process with a code; *service.Supervisor satisfies it.
type Exiter interface {
	Exit(code int)
}

// Rebooter restarts the gateway after a grace delay so pending replies and
// log lines get out first.
type Rebooter struct {
	exit    Exiter
	command []string
	grace   time.Duration
	log     *logger.Logger
	once    sync.Once
}

// NewRebooter returns a Rebooter. command, if set, runs right before exit.
func NewRebooter(exit Exiter, command []string, grace time.Duration) *Rebooter {
	return &Rebooter{
		exit:    exit,
		command: command,
		grace:   grace,
		log:     logger.New("Reboot"),
	}
}

// Reboot schedules the restart; only the first call counts.
func (r *Rebooter) Reboot(reason string) {
	r.once.Do(func() {
		r.log.Info("rebooting in %v: %s", r.grace, reason)
		time.AfterFunc(r.grace, r.restart)
	})
}

func (r *Rebooter) restart() {
	if len(r.command) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if out, err := exec.CommandContext(ctx, r.command[0], r.command[1:]...).CombinedOutput(); err != nil {
			r.log.Error("reboot command: %v: %s", err, strings.TrimSpace(string(out)))
		}
	}
	r.exit.Exit(service.ExitRestart)
}
