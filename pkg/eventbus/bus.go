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

// Package eventbus is a latest-value pub/sub: a slow subscriber only ever
// misses intermediate values, never the newest one.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

type Topic string
type Event = any

type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]chan Event
	last   map[Topic]Event
	nextID atomic.Uint64
	closed atomic.Bool

	replaced atomic.Int64
}

func New() *Bus {
	return &Bus{
		subs: make(map[Topic]map[uint64]chan Event),
		last: make(map[Topic]Event),
	}
}

// Publish stores ev as the topic's latest value and hands it to every
// subscriber, replacing anything they have not consumed yet.
func (b *Bus) Publish(topic Topic, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return
	}
	b.last[topic] = ev
	// offer never blocks, so sending under the lock keeps channels from
	// being closed mid-send
	for _, ch := range b.subs[topic] {
		b.offer(ch, ev)
	}
}

func (b *Bus) offer(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
			b.replaced.Add(1)
		default:
		}
	}
}

// Subscribe returns a channel receiving the topic's values until ctx ends,
// at which point the channel is closed.
func (b *Bus) Subscribe(ctx context.Context, topic Topic, withLast bool) <-chan Event {
	ch := make(chan Event, 1)
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]chan Event)
	}
	b.subs[topic][id] = ch
	if last, ok := b.last[topic]; ok && withLast {
		b.offer(ch, last)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if m, ok := b.subs[topic]; ok {
			if _, ok := m[id]; ok {
				delete(m, id)
				close(ch)
			}
		}
	}()

	return ch
}

func (b *Bus) Last(topic Topic) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.last[topic]
	return v, ok
}

// Replaced counts values a subscriber never saw because a newer one arrived.
func (b *Bus) Replaced() int64 {
	return b.replaced.Load()
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Swap(true) {
		return
	}
	for _, m := range b.subs {
		for id, ch := range m {
			close(ch)
			delete(m, id)
		}
	}
}
