// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package memwindow

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAndExists(t *testing.T) {
	require := require.New(t)
	s := New(0)
	now := uint64(time.Now().Unix())

	added, err := s.Add("channel1", "rot1", now, now+300)
	require.NoError(err)
	require.True(added)

	exists, err := s.Exists("channel1", "rot1")
	require.NoError(err)
	require.True(exists)

	exists, err = s.Exists("channel1", "rot999")
	require.NoError(err)
	require.False(exists)

	// Duplicate insert is the replay signal.
	added, err = s.Add("channel1", "rot1", now, now+300)
	require.NoError(err)
	require.False(added)
}

func TestChannelIsolation(t *testing.T) {
	require := require.New(t)
	s := New(0)
	now := uint64(time.Now().Unix())

	added, err := s.Add("channel1", "rot1", now, now+300)
	require.NoError(err)
	require.True(added)

	// The same rotation id on another channel is independent.
	added, err = s.Add("channel2", "rot1", now, now+300)
	require.NoError(err)
	require.True(added)

	n, err := s.Count("channel1")
	require.NoError(err)
	require.Equal(1, n)
	n, err = s.Count("")
	require.NoError(err)
	require.Equal(2, n)

	channels, err := s.Channels()
	require.NoError(err)
	require.Equal([]string{"channel1", "channel2"}, channels)
}

func TestCapacityEviction(t *testing.T) {
	require := require.New(t)
	s := New(256)
	now := uint64(time.Now().Unix())

	for i := 1; i <= 300; i++ {
		added, err := s.Add("ch", fmt.Sprintf("rot%d", i), now, now+3600)
		require.NoError(err)
		require.True(added)
	}

	n, err := s.Count("ch")
	require.NoError(err)
	require.Equal(256, n)

	// The oldest entries were evicted, the newest survive.
	exists, err := s.Exists("ch", "rot1")
	require.NoError(err)
	require.False(exists)
	exists, err = s.Exists("ch", "rot44")
	require.NoError(err)
	require.False(exists)
	exists, err = s.Exists("ch", "rot45")
	require.NoError(err)
	require.True(exists)
	exists, err = s.Exists("ch", "rot300")
	require.NoError(err)
	require.True(exists)
}

func TestGC(t *testing.T) {
	require := require.New(t)
	s := New(0)
	now := time.Now()
	nowSec := uint64(now.Unix())

	added, err := s.Add("ch", "live", nowSec, nowSec+300)
	require.NoError(err)
	require.True(added)
	added, err = s.Add("ch", "expired", nowSec-600, nowSec-300)
	require.NoError(err)
	require.True(added)
	added, err = s.Add("other", "expired2", nowSec-600, nowSec-1)
	require.NoError(err)
	require.True(added)

	removed, err := s.GC(now)
	require.NoError(err)
	require.Equal(2, removed)

	exists, err := s.Exists("ch", "expired")
	require.NoError(err)
	require.False(exists)
	exists, err = s.Exists("ch", "live")
	require.NoError(err)
	require.True(exists)

	// The emptied channel is gone entirely.
	channels, err := s.Channels()
	require.NoError(err)
	require.Equal([]string{"ch"}, channels)
}

func TestConcurrentAdd(t *testing.T) {
	require := require.New(t)
	s := New(0)
	now := uint64(time.Now().Unix())

	const workers = 50
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.Add("ch", "contested", now, now+300)
			require.NoError(err)
			wins <- added
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for added := range wins {
		if added {
			won++
		}
	}
	require.Equal(1, won)
}
