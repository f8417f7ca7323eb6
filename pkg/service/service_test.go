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
	"testing"
	"time"
)

func TestSupervisorPanicExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSupervisor(cancel)
	exitCh := s.Start(ctx, []Runnable{
		Func(func(ctx context.Context) { <-ctx.Done() }),
		Func(func(ctx context.Context) { panic("boom") }),
	})

	select {
	case code := <-exitCh:
		if code != ExitPanic {
			t.Fatalf("exit code = %d, want %d", code, ExitPanic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("services did not stop after panic")
	}
}

func TestSupervisorFirstCodeWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSupervisor(cancel)
	exitCh := s.Start(ctx, []Runnable{
		Func(func(ctx context.Context) { <-ctx.Done() }),
	})

	s.Exit(ExitRestart)
	s.Exit(ExitPanic)

	if code := <-exitCh; code != ExitRestart {
		t.Fatalf("exit code = %d, want %d", code, ExitRestart)
	}
}
