// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package window defines the anti-replay window store interface.  A window
// store remembers which (channel, rotation id) pairs have already been
// consumed so a previously accepted rotation pack can never be applied
// twice.
package window

import "time"

// Store is an anti-replay window store.  Channels are disjoint
// namespaces, the same rotation id on two channels is tracked
// independently.
//
// Implementations must make Add atomic with respect to concurrent callers:
// for a given (channel, id) at most one Add may ever return true, and no
// caller may observe "absent" and then insert behind a concurrent
// inserter's back.
type Store interface {
	// Exists returns true if (channel, id) has already been consumed.
	Exists(channel, id string) (bool, error)

	// Add records (channel, id) as consumed.  It returns false, without
	// inserting, if the pair is already present.
	Add(channel, id string, issuedAt, validUntil uint64) (bool, error)

	// GC removes entries whose validity ended before now and returns the
	// number removed.
	GC(now time.Time) (int, error)

	// Count returns the number of entries for channel, or across all
	// channels if channel is empty.
	Count(channel string) (int, error)

	// Channels returns the sorted list of channels with live entries.
	Channels() ([]string, error)

	// Close releases the store.
	Close() error
}

// Entry is a single consumed rotation id record.
type Entry struct {
	Channel    string
	ID         string
	IssuedAt   uint64
	ValidUntil uint64
}
