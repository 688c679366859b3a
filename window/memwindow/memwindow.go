// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package memwindow implements the anti-replay window store with a
// volatile, capacity bounded in-process backend.
//
// Nothing survives a restart, and once a channel overflows its capacity
// the oldest entries are evicted, so a replay of an entry older than the
// current window goes undetected.  This is a deliberate trade-off for
// high throughput deployments that accept bounded replay protection in
// exchange for zero I/O; deployments that need the full guarantee use the
// durable backend instead.
package memwindow

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window"
)

// DefaultCapacity is the default per-channel entry bound.
const DefaultCapacity = 256

type channelWindow struct {
	order *list.List // window.Entry values, front is oldest.
	index map[string]*list.Element
}

func newChannelWindow() *channelWindow {
	return &channelWindow{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

type memWindow struct {
	sync.RWMutex

	channels map[string]*channelWindow
	capacity int
}

// New creates a volatile window store with the given per-channel capacity.
// A capacity of 0 selects DefaultCapacity.
func New(capacity int) window.Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &memWindow{
		channels: make(map[string]*channelWindow),
		capacity: capacity,
	}
}

func (m *memWindow) Exists(channel, id string) (bool, error) {
	m.RLock()
	defer m.RUnlock()

	ch := m.channels[channel]
	if ch == nil {
		return false, nil
	}
	_, ok := ch.index[id]
	return ok, nil
}

func (m *memWindow) Add(channel, id string, issuedAt, validUntil uint64) (bool, error) {
	m.Lock()
	defer m.Unlock()

	ch := m.channels[channel]
	if ch == nil {
		ch = newChannelWindow()
		m.channels[channel] = ch
	}
	if _, ok := ch.index[id]; ok {
		return false, nil
	}

	// Evict the oldest entry to stay within the capacity bound.
	if ch.order.Len() >= m.capacity {
		oldest := ch.order.Front()
		ch.order.Remove(oldest)
		delete(ch.index, oldest.Value.(window.Entry).ID)
	}

	e := window.Entry{
		Channel:    channel,
		ID:         id,
		IssuedAt:   issuedAt,
		ValidUntil: validUntil,
	}
	ch.index[id] = ch.order.PushBack(e)
	return true, nil
}

func (m *memWindow) GC(now time.Time) (int, error) {
	cutoff := uint64(now.Unix())

	m.Lock()
	defer m.Unlock()

	removed := 0
	for name, ch := range m.channels {
		var next *list.Element
		for el := ch.order.Front(); el != nil; el = next {
			next = el.Next()
			e := el.Value.(window.Entry)
			if e.ValidUntil >= cutoff {
				continue
			}
			ch.order.Remove(el)
			delete(ch.index, e.ID)
			removed++
		}
		if ch.order.Len() == 0 {
			delete(m.channels, name)
		}
	}
	return removed, nil
}

func (m *memWindow) Count(channel string) (int, error) {
	m.RLock()
	defer m.RUnlock()

	if channel != "" {
		ch := m.channels[channel]
		if ch == nil {
			return 0, nil
		}
		return ch.order.Len(), nil
	}
	total := 0
	for _, ch := range m.channels {
		total += ch.order.Len()
	}
	return total, nil
}

func (m *memWindow) Channels() ([]string, error) {
	m.RLock()
	defer m.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memWindow) Close() error {
	return nil
}
