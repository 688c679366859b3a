// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package boltwindow implements the anti-replay window store with a
// durable boltdb backend.  Entries recorded by a completed Add survive
// crashes and restarts, so replay protection holds across the node's
// whole deployment lifetime, bounded only by entry expiry.
package boltwindow

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window"
)

const (
	metadataBucket = "metadata"
	versionKey     = "version"

	channelsBucket = "channels"
	expiryBucket   = "expiry"

	// DefaultLockWait bounds the wait for the database file lock.
	DefaultLockWait = 5 * time.Second
)

// expiryRef locates a window entry from the expiry index.
type expiryRef struct {
	Channel string `cbor:"channel"`
	ID      string `cbor:"id"`
}

type boltWindow struct {
	db *bolt.DB
}

func (b *boltWindow) Exists(channel, id string) (bool, error) {
	exists := false
	err := b.db.View(func(tx *bolt.Tx) error {
		chBkt := tx.Bucket([]byte(channelsBucket)).Bucket([]byte(channel))
		if chBkt == nil {
			return nil
		}
		exists = chBkt.Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (b *boltWindow) Add(channel, id string, issuedAt, validUntil uint64) (bool, error) {
	added := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		chBkt, err := tx.Bucket([]byte(channelsBucket)).CreateBucketIfNotExists([]byte(channel))
		if err != nil {
			return err
		}

		// The (channel, id) uniqueness check and the insert happen in
		// one write transaction, boltdb serializes writers so this is
		// the atomic test-and-set the replay invariant needs.
		if chBkt.Get([]byte(id)) != nil {
			return nil
		}

		var v [16]byte
		binary.BigEndian.PutUint64(v[0:8], issuedAt)
		binary.BigEndian.PutUint64(v[8:16], validUntil)
		if err = chBkt.Put([]byte(id), v[:]); err != nil {
			return err
		}

		// Maintain the expiry index for GC sweeps.
		eBkt := tx.Bucket([]byte(expiryBucket))
		seq, err := eBkt.NextSequence()
		if err != nil {
			return err
		}
		var k [16]byte
		binary.BigEndian.PutUint64(k[0:8], validUntil)
		binary.BigEndian.PutUint64(k[8:16], seq)
		ref, err := cbor.Marshal(&expiryRef{Channel: channel, ID: id})
		if err != nil {
			return err
		}
		if err = eBkt.Put(k[:], ref); err != nil {
			return err
		}

		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (b *boltWindow) GC(now time.Time) (int, error) {
	cutoff := uint64(now.Unix())
	removed := 0

	// A single batch transaction walks the expiry index in valid_until
	// order and stops at the first live entry.
	err := b.db.Update(func(tx *bolt.Tx) error {
		chansBkt := tx.Bucket([]byte(channelsBucket))
		eBkt := tx.Bucket([]byte(expiryBucket))
		touched := make(map[string]bool)

		c := eBkt.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if binary.BigEndian.Uint64(k[0:8]) >= cutoff {
				break
			}
			ref := new(expiryRef)
			if err := cbor.Unmarshal(v, ref); err != nil {
				return fmt.Errorf("boltwindow: corrupted expiry index: %v", err)
			}
			if chBkt := chansBkt.Bucket([]byte(ref.Channel)); chBkt != nil {
				if err := chBkt.Delete([]byte(ref.ID)); err != nil {
					return err
				}
				touched[ref.Channel] = true
			}
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}

		// Drop channel buckets the sweep emptied.
		for name := range touched {
			chBkt := chansBkt.Bucket([]byte(name))
			if chBkt == nil {
				continue
			}
			if k, _ := chBkt.Cursor().First(); k == nil {
				if err := chansBkt.DeleteBucket([]byte(name)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (b *boltWindow) Count(channel string) (int, error) {
	count := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		chansBkt := tx.Bucket([]byte(channelsBucket))
		if channel != "" {
			chBkt := chansBkt.Bucket([]byte(channel))
			if chBkt == nil {
				return nil
			}
			count = chBkt.Stats().KeyN
			return nil
		}
		return chansBkt.ForEach(func(k, v []byte) error {
			if v == nil {
				count += chansBkt.Bucket(k).Stats().KeyN
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (b *boltWindow) Channels() ([]string, error) {
	var names []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(channelsBucket)).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (b *boltWindow) Close() error {
	if err := b.db.Sync(); err != nil {
		return err
	}
	return b.db.Close()
}

// New creates (or loads) a durable window store with the given file name
// f.  The open blocks for at most lockWait on file lock contention before
// failing, a lockWait of 0 selects DefaultLockWait.
func New(f string, lockWait time.Duration) (window.Store, error) {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}

	db, err := bolt.Open(f, 0600, &bolt.Options{Timeout: lockWait})
	if err != nil {
		return nil, err
	}
	b := &boltWindow{db: db}

	if err = db.Update(func(tx *bolt.Tx) error {
		mBkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists([]byte(channelsBucket)); err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists([]byte(expiryBucket)); err != nil {
			return err
		}

		if ver := mBkt.Get([]byte(versionKey)); ver != nil {
			// Loaded an existing database.
			if len(ver) != 1 || ver[0] != 0 {
				return fmt.Errorf("boltwindow: incompatible version: %d", uint(ver[0]))
			}
			return nil
		}
		return mBkt.Put([]byte(versionKey), []byte{0})
	}); err != nil {
		// The struct isn't getting returned so clean up the database.
		db.Close()
		return nil, err
	}

	return b, nil
}
