// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// throttle caps the number of concurrently running per-locus tasks. A task
// that fails reports its error here; the failure is logged against its
// locus and counted, and sibling tasks keep running. One malformed
// alignment must not abort the batch.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	setupOnce sync.Once
	failures  int64
}

func (t *throttle) Acquire() {
	t.setupOnce.Do(func() { t.ch = make(chan bool, t.Max) })
	t.wg.Add(1)
	t.ch <- true
}

func (t *throttle) Release() {
	t.wg.Done()
	<-t.ch
}

// Report logs a per-locus failure and counts it. A nil err is a no-op.
func (t *throttle) Report(locus string, err error) {
	if err != nil {
		atomic.AddInt64(&t.failures, 1)
		log.Warnf("%s: skipped: %s", locus, err)
	}
}

// Wait blocks until every acquired task has released, then returns the
// number of reported failures.
func (t *throttle) Wait() int {
	t.wg.Wait()
	return int(atomic.LoadInt64(&t.failures))
}
