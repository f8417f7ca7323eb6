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

package service

import (
	"context"
	"runtime/debug"
	"sync"

	"smagate/pkg/logger"
)

// Exit codes handed back to main.
const (
	ExitOK      = 0
	ExitPanic   = -1
	ExitRestart = 3 // the service manager restarts the gateway
)

// Runnable is the common interface for all services.
type Runnable interface {
	Run(ctx context.Context)
}

// Func adapts a plain function to Runnable.
type Func func(ctx context.Context)

func (f Func) Run(ctx context.Context) { f(ctx) }

// Supervisor runs services until the root context ends and records the
// exit code the process should leave with.
type Supervisor struct {
	cancel context.CancelFunc
	log    *logger.Logger

	mu   sync.Mutex
	code int
}

func NewSupervisor(cancel context.CancelFunc) *Supervisor {
	return &Supervisor{cancel: cancel, log: logger.New("Supervisor")}
}

// Exit stops every service. The first non-zero code wins.
func (s *Supervisor) Exit(code int) {
	s.mu.Lock()
	if s.code == ExitOK {
		s.code = code
	}
	s.mu.Unlock()
	s.log.Info("exit requested (code %d)", code)
	s.cancel()
}

func (s *Supervisor) exitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Start runs every service in its own goroutine. A panic in one of them is
// logged and shuts the others down.
func (s *Supervisor) Start(ctx context.Context, services []Runnable) <-chan int {
	wg := &sync.WaitGroup{}
	exitCh := make(chan int, 1)

	for _, svc := range services {
		wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic: %v\n%s", r, debug.Stack())
					s.Exit(ExitPanic)
				}
			}()
			svc.Run(ctx)
		})
	}

	go func() {
		wg.Wait()
		exitCh <- s.exitCode()
	}()

	return exitCh
}
