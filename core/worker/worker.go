// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package worker provides managed background go routines.
package worker

import (
	"sync"
	"time"
)

// Worker is a set of managed background go routines.
type Worker struct {
	sync.WaitGroup
	initOnce sync.Once

	haltCh chan interface{}
}

// Go executes the function fn in a new go routine.  Multiple go routines
// may be started under the same Worker.  It is the function's
// responsibility to monitor the channel returned by `Worker.HaltCh()` and
// to return.
func (w *Worker) Go(fn func()) {
	w.initOnce.Do(w.init)
	w.Add(1)
	go func() {
		defer w.Done()
		fn()
	}()
}

// Halt signals all go routines started under a Worker to terminate, and
// waits till all go routines have returned.
func (w *Worker) Halt() {
	w.initOnce.Do(w.init)
	close(w.haltCh)
	w.Wait()
}

// HaltCh returns the channel that will be closed on a call to Halt.
func (w *Worker) HaltCh() <-chan interface{} {
	w.initOnce.Do(w.init)
	return w.haltCh
}

// Sleep blocks for the given duration, and returns false if the sleep was
// interrupted because the Worker is halting.
func (w *Worker) Sleep(d time.Duration) bool {
	w.initOnce.Do(w.init)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.haltCh:
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) init() {
	w.haltCh = make(chan interface{})
}
