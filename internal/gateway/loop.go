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

package gateway

import (
	"context"
	"errors"
	"time"

	"smagate/internal/events"
	"smagate/internal/radio"
	"smagate/internal/telemetry"
	"smagate/pkg/eventbus"
	"smagate/pkg/logger"
)

type State int

const (
	WaitNetwork State = iota
	WaitJoin
	Acquire
	SendRadio
	Broadcast
	Pace
	Suspended
)

func (s State) String() string {
	switch s {
	case WaitNetwork:
		return "wait-network"
	case WaitJoin:
		return "wait-join"
	case Acquire:
		return "acquire"
	case SendRadio:
		return "send-radio"
	case Broadcast:
		return "broadcast"
	case Pace:
		return "pace"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

type Options struct {
	Metrics       [2]string // power, energy today
	DeviceTag     string
	MaxPower      int
	MaxAttempts   int
	PollEvery     time.Duration
	IdleWait      time.Duration
	RetryBackoff  time.Duration
	DecoupleDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Metrics:       [2]string{"power", "energy_today"},
		DeviceTag:     "spm",
		MaxPower:      3000,
		MaxAttempts:   5,
		PollEvery:     100 * time.Millisecond,
		IdleWait:      5 * time.Second,
		RetryBackoff:  5 * time.Second,
		DecoupleDelay: 5 * time.Second,
	}
}

type Deps struct {
	Source      Source
	Radio       Radio
	Broadcaster Broadcaster
	Network     Network
	Updates     UpdateListener
	Settings    Settings
	Bus         *eventbus.Bus // optional
	Clock       Clock         // optional
}

// Loop is the acquisition state machine. Step performs one transition;
// Run interleaves steps with waits that keep polling the update listener.
type Loop struct {
	opts Options
	deps Deps
	log  *logger.Logger

	state    State
	attempts int
	sample   telemetry.Sample
	outcome  string
}

func New(opts Options, deps Deps) *Loop {
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = DefaultOptions().PollEvery
	}
	return &Loop{
		opts:  opts,
		deps:  deps,
		log:   logger.New("Loop"),
		state: WaitNetwork,
	}
}

func (l *Loop) State() State {
	return l.state
}

// Run drives the machine until ctx ends.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("running")
	for ctx.Err() == nil {
		if l.state != Suspended && l.deps.Updates.PollActive() {
			l.suspend()
		}
		if !l.wait(ctx, l.Step(ctx)) {
			break
		}
	}
	l.log.Info("stopped")
}

// wait idles for d in slices of PollEvery, polling the update listener after
// each slice. It returns false once ctx ends.
func (l *Loop) wait(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		slice := min(d, l.opts.PollEvery)
		if err := l.deps.Clock.Sleep(ctx, slice); err != nil {
			return false
		}
		d -= slice
		if l.state != Suspended && l.deps.Updates.PollActive() {
			l.suspend()
			return true
		}
	}
	return ctx.Err() == nil
}

func (l *Loop) suspend() {
	l.log.Info("update in progress, suspending")
	l.setState(Suspended)
}

// Step performs one transition and returns how long to idle before the
// next one.
func (l *Loop) Step(ctx context.Context) time.Duration {
	switch l.state {
	case WaitNetwork:
		if !l.deps.Network.Connected() {
			l.log.Info("network down, reconnecting")
			l.deps.Network.Reconnect()
			return l.opts.IdleWait
		}
		l.setState(WaitJoin)
		return 0

	case WaitJoin:
		if !l.deps.Radio.Joined(ctx) {
			l.log.Debug("waiting for LoRaWAN join")
			l.setState(WaitNetwork)
			return l.opts.IdleWait
		}
		l.attempts = 0
		l.setState(Acquire)
		return 0

	case Acquire:
		return l.acquire(ctx)

	case SendRadio:
		l.sendRadio(ctx)
		l.setState(Broadcast)
		return l.opts.DecoupleDelay

	case Broadcast:
		l.deps.Broadcaster.Broadcast(ctx, l.sample.BroadcastPayload(l.opts.DeviceTag))
		l.log.Info("broadcast sent")
		l.report(l.sample, true)
		l.setState(Pace)
		return 0

	case Pace:
		l.setState(WaitNetwork)
		return l.deps.Settings.RepeatInterval()

	case Suspended:
		if l.deps.Updates.PollActive() {
			return l.opts.PollEvery
		}
		l.log.Info("update finished, resuming")
		l.setState(WaitNetwork)
		return 0
	}
	return l.opts.IdleWait
}

func (l *Loop) acquire(ctx context.Context) time.Duration {
	l.attempts++
	now := l.deps.Clock.Now()

	values, ok := l.deps.Source.Fetch(ctx, l.opts.Metrics)
	if !ok {
		l.log.Error("acquisition failed (attempt %d/%d)", l.attempts, l.opts.MaxAttempts)
		if l.attempts >= l.opts.MaxAttempts {
			l.log.Error("giving up this cycle")
			l.outcome = ""
			l.report(telemetry.Sample{At: now}, false)
			l.setState(Pace)
			return 0
		}
		return l.opts.RetryBackoff
	}

	sample, err := telemetry.Normalize(values[0], values[1], l.opts.MaxPower, now)
	if errors.Is(err, telemetry.ErrImplausible) {
		l.log.Error("values not valid: %v", err)
		l.outcome = ""
		l.report(sample, false)
		l.setState(Pace)
		return 0
	}

	l.log.Info("power %d W, energy today %d Wh", sample.Power, sample.EnergyToday)
	l.sample = sample
	l.setState(SendRadio)
	return 0
}

func (l *Loop) sendRadio(ctx context.Context) {
	outcome, err := l.deps.Radio.Send(ctx, l.sample.RadioPayload())
	if err != nil {
		l.log.Error("radio send: %v", err)
		l.outcome = "error"
		return
	}
	l.outcome = outcome.String()
	switch outcome {
	case radio.Enqueued:
		l.log.Info("packet enqueued")
	case radio.Busy:
		l.log.Error("LoRa transceiver is busy")
	case radio.TooLarge:
		l.log.Error("packet too large for current data rate")
	}
}

func (l *Loop) report(s telemetry.Sample, broadcast bool) {
	if l.deps.Bus == nil {
		return
	}
	l.deps.Bus.Publish(events.TopicSample, events.SampleUpdate{
		Power:        s.Power,
		EnergyToday:  s.EnergyToday,
		OK:           s.OK,
		RadioOutcome: l.outcome,
		Broadcast:    broadcast,
		Time:         s.At,
	})
}

func (l *Loop) setState(s State) {
	if s == l.state {
		return
	}
	l.log.Debug("%s -> %s", l.state, s)
	l.state = s
	if l.deps.Bus != nil {
		l.deps.Bus.Publish(events.TopicLoopState, events.LoopStateUpdate{State: s.String(), Time: l.deps.Clock.Now()})
	}
}
