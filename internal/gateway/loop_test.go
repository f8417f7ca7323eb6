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
	"bytes"
	"context"
	"testing"
	"time"

	"smagate/internal/events"
	"smagate/internal/radio"
	"smagate/pkg/eventbus"
)

type fakeSource struct {
	results []fetchResult // consumed in order, last one repeats
	calls   int
	names   [2]string
}

type fetchResult struct {
	values [2]int
	ok     bool
}

func (f *fakeSource) Fetch(_ context.Context, names [2]string) ([2]int, bool) {
	f.names = names
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.values, r.ok
}

type fakeRadio struct {
	joined  bool
	outcome radio.Outcome
	sent    [][]byte
}

func (f *fakeRadio) Joined(context.Context) bool { return f.joined }

func (f *fakeRadio) Send(_ context.Context, p []byte) (radio.Outcome, error) {
	f.sent = append(f.sent, append([]byte(nil), p...))
	return f.outcome, nil
}

type fakeBroadcaster struct {
	sent [][]byte
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, p []byte) {
	f.sent = append(f.sent, append([]byte(nil), p...))
}

type fakeNetwork struct {
	up         bool
	reconnects int
}

func (f *fakeNetwork) Connected() bool { return f.up }
func (f *fakeNetwork) Reconnect()      { f.reconnects++ }

type fixedInterval time.Duration

func (f fixedInterval) RepeatInterval() time.Duration { return time.Duration(f) }

// fakeClock advances virtual time on Sleep and ends the run at limit.
type fakeClock struct {
	now    time.Time
	limit  time.Time
	cancel context.CancelFunc
	slept  time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	c.slept += d
	if c.cancel != nil && !c.limit.IsZero() && !c.now.Before(c.limit) {
		c.cancel()
	}
	return ctx.Err()
}

// fakeUpdates records the virtual time of every poll and reports active
// inside [activeFrom, activeUntil).
type fakeUpdates struct {
	clock       *fakeClock
	polls       []time.Time
	activeFrom  time.Time
	activeUntil time.Time
}

func (f *fakeUpdates) PollActive() bool {
	now := f.clock.now
	f.polls = append(f.polls, now)
	return !f.activeFrom.IsZero() && !now.Before(f.activeFrom) && now.Before(f.activeUntil)
}

type rig struct {
	loop    *Loop
	source  *fakeSource
	radio   *fakeRadio
	bcast   *fakeBroadcaster
	net     *fakeNetwork
	clock   *fakeClock
	updates *fakeUpdates
}

func newRig(results ...fetchResult) *rig {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := &rig{
		source:  &fakeSource{results: results},
		radio:   &fakeRadio{joined: true},
		bcast:   &fakeBroadcaster{},
		net:     &fakeNetwork{up: true},
		clock:   clock,
		updates: &fakeUpdates{clock: clock},
	}
	r.loop = New(DefaultOptions(), Deps{
		Source:      r.source,
		Radio:       r.radio,
		Broadcaster: r.bcast,
		Network:     r.net,
		Updates:     r.updates,
		Settings:    fixedInterval(2 * time.Minute),
		Clock:       clock,
	})
	return r
}

// stepUntil steps until the machine reaches want, with a safety bound.
func (r *rig) stepUntil(t *testing.T, want State) []time.Duration {
	t.Helper()
	var waits []time.Duration
	for i := 0; i < 50; i++ {
		waits = append(waits, r.loop.Step(context.Background()))
		if r.loop.State() == want {
			return waits
		}
	}
	t.Fatalf("state %s never reached, stuck in %s", want, r.loop.State())
	return nil
}

func TestAlwaysFailingSourceIsTriedFiveTimes(t *testing.T) {
	r := newRig(fetchResult{ok: false})

	waits := r.stepUntil(t, Pace)

	if r.source.calls != 5 {
		t.Fatalf("fetch calls = %d, want 5", r.source.calls)
	}
	if len(r.radio.sent) != 0 || len(r.bcast.sent) != 0 {
		t.Fatal("a transport was used after failed acquisition")
	}
	backoffs := 0
	for _, w := range waits {
		if w == 5*time.Second {
			backoffs++
		}
	}
	if backoffs != 4 {
		t.Fatalf("backoff waits = %d, want 4", backoffs)
	}

	if d := r.loop.Step(context.Background()); d != 2*time.Minute {
		t.Fatalf("pace wait = %v, want 2m", d)
	}
	if r.loop.State() != WaitNetwork {
		t.Fatalf("state after pace = %s", r.loop.State())
	}
}

func TestRecoversAfterTransientFailures(t *testing.T) {
	r := newRig(
		fetchResult{ok: false},
		fetchResult{ok: false},
		fetchResult{values: [2]int{800, 100}, ok: true},
	)
	r.stepUntil(t, Pace)

	if r.source.calls != 3 {
		t.Fatalf("fetch calls = %d, want 3", r.source.calls)
	}
	if len(r.radio.sent) != 1 || len(r.bcast.sent) != 1 {
		t.Fatalf("sent radio=%d broadcast=%d, want 1/1", len(r.radio.sent), len(r.bcast.sent))
	}
}

func TestScenarioPayloads(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{1500, 4200}, ok: true})
	waits := r.stepUntil(t, Pace)

	if r.source.names != [2]string{"power", "energy_today"} {
		t.Fatalf("fetched %v", r.source.names)
	}
	if want := []byte{0x20, 0x05, 0xDC, 0x10, 0x68}; !bytes.Equal(r.radio.sent[0], want) {
		t.Fatalf("radio payload = % X, want % X", r.radio.sent[0], want)
	}
	if got := string(r.bcast.sent[0]); got != `{"de":"spm","s":1500,"c":0}` {
		t.Fatalf("broadcast = %s", got)
	}

	decoupled := false
	for _, w := range waits {
		if w == 5*time.Second {
			decoupled = true
		}
	}
	if !decoupled {
		t.Fatal("no decouple delay between radio and broadcast")
	}
}

func TestNoGenerationSentinel(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{-1, 500}, ok: true})
	r.stepUntil(t, Pace)

	if want := []byte{0x20, 0x00, 0x00, 0x01, 0xF4}; !bytes.Equal(r.radio.sent[0], want) {
		t.Fatalf("radio payload = % X, want % X", r.radio.sent[0], want)
	}
	if got := string(r.bcast.sent[0]); got != `{"de":"spm","s":0,"c":0}` {
		t.Fatalf("broadcast = %s", got)
	}
}

func TestImplausiblePowerIsNotRetriedOrSent(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{3000, 10}, ok: true})
	r.stepUntil(t, Pace)

	if r.source.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", r.source.calls)
	}
	if len(r.radio.sent) != 0 || len(r.bcast.sent) != 0 {
		t.Fatal("implausible sample was disseminated")
	}
}

func TestRadioOutcomesAreNotFatal(t *testing.T) {
	for _, outcome := range []radio.Outcome{radio.Busy, radio.TooLarge} {
		t.Run(outcome.String(), func(t *testing.T) {
			r := newRig(fetchResult{values: [2]int{100, 100}, ok: true})
			r.radio.outcome = outcome
			r.stepUntil(t, Pace)
			if len(r.bcast.sent) != 1 {
				t.Fatal("broadcast skipped after radio outcome")
			}
		})
	}
}

func TestWaitsForNetworkAndJoin(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{100, 100}, ok: true})
	r.net.up = false

	ctx := context.Background()
	if d := r.loop.Step(ctx); d != 5*time.Second || r.loop.State() != WaitNetwork {
		t.Fatalf("network down: wait %v state %s", d, r.loop.State())
	}
	if r.net.reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", r.net.reconnects)
	}

	r.net.up = true
	r.radio.joined = false
	r.loop.Step(ctx)
	if d := r.loop.Step(ctx); d != 5*time.Second || r.loop.State() != WaitNetwork {
		t.Fatalf("not joined: wait %v state %s", d, r.loop.State())
	}
	if r.source.calls != 0 {
		t.Fatal("fetched before join")
	}

	r.radio.joined = true
	r.stepUntil(t, Pace)
	if r.source.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", r.source.calls)
	}
}

func TestRunPollsUpdateListenerOften(t *testing.T) {
	r := newRig(
		fetchResult{ok: false},
		fetchResult{ok: false},
		fetchResult{values: [2]int{1500, 4200}, ok: true},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.clock.cancel = cancel
	r.clock.limit = r.clock.now.Add(10 * time.Minute)

	r.loop.Run(ctx)

	polls := r.updates.polls
	if len(polls) < 1000 {
		t.Fatalf("only %d polls in 10 minutes", len(polls))
	}
	for i := 1; i < len(polls); i++ {
		if gap := polls[i].Sub(polls[i-1]); gap > 100*time.Millisecond {
			t.Fatalf("gap of %v between polls %d and %d", gap, i-1, i)
		}
	}
	if r.source.calls < 4 {
		t.Fatalf("fetch calls = %d, expected several cycles", r.source.calls)
	}
}

func TestWaitWithNonPositivePollEveryTerminates(t *testing.T) {
	r := newRig()
	opts := DefaultOptions()
	opts.PollEvery = -time.Millisecond
	r.loop = New(opts, Deps{
		Source:      r.source,
		Radio:       r.radio,
		Broadcaster: r.bcast,
		Network:     r.net,
		Updates:     r.updates,
		Settings:    fixedInterval(2 * time.Minute),
		Clock:       r.clock,
	})

	if !r.loop.wait(context.Background(), time.Second) {
		t.Fatal("wait reported cancellation")
	}
	if n := len(r.updates.polls); n != 10 {
		t.Fatalf("polls = %d, want 10", n)
	}
}

func TestRunSuspendsDuringUpdate(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{1500, 4200}, ok: true})
	bus := eventbus.New()
	r.loop.deps.Bus = bus

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	states := bus.Subscribe(ctx, events.TopicLoopState, false)

	start := r.clock.now
	// the update starts while the first sample waits out its decouple delay
	r.updates.activeFrom = start.Add(2 * time.Second)
	r.updates.activeUntil = start.Add(30 * time.Second)
	r.clock.cancel = cancel
	r.clock.limit = start.Add(20 * time.Second)

	r.loop.Run(ctx)

	if r.loop.State() != Suspended {
		t.Fatalf("state = %s, want suspended", r.loop.State())
	}
	if len(r.radio.sent) != 1 {
		t.Fatalf("radio sends = %d, want 1", len(r.radio.sent))
	}
	if len(r.bcast.sent) != 0 {
		t.Fatal("broadcast continued during update")
	}

	var last events.LoopStateUpdate
	for ev := range states {
		last = ev.(events.LoopStateUpdate)
	}
	if last.State != "suspended" {
		t.Fatalf("last published state = %q", last.State)
	}
}

func TestResumesAfterUpdateEnds(t *testing.T) {
	r := newRig(fetchResult{values: [2]int{1500, 4200}, ok: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := r.clock.now
	r.updates.activeFrom = start.Add(2 * time.Second)
	r.updates.activeUntil = start.Add(4 * time.Second)
	r.clock.cancel = cancel
	r.clock.limit = start.Add(30 * time.Second)

	r.loop.Run(ctx)

	if r.source.calls != 2 {
		t.Fatalf("fetch calls = %d, want 2 (aborted cycle + resumed cycle)", r.source.calls)
	}
	if len(r.bcast.sent) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(r.bcast.sent))
	}
}
