/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lock

import (
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	r := NewRegistry()

	if !r.Acquire("g1", time.Second) {
		t.Fatalf("expected first acquire to succeed")
	}
	if !r.IsLocked("g1") {
		t.Fatalf("expected g1 to be locked")
	}

	r.Release("g1")
	if r.IsLocked("g1") {
		t.Fatalf("expected g1 to be unlocked after release")
	}
}

func TestAcquireTimesOut(t *testing.T) {
	r := NewRegistry()

	if !r.Acquire("g1", time.Second) {
		t.Fatalf("expected first acquire to succeed")
	}

	start := time.Now()
	if r.Acquire("g1", 150*time.Millisecond) {
		t.Fatalf("expected second acquire to time out")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("acquire returned after %v, before the timeout elapsed", elapsed)
	}
}

func TestTenantsAreIndependent(t *testing.T) {
	r := NewRegistry()

	if !r.Acquire("g1", time.Second) {
		t.Fatalf("expected acquire for g1 to succeed")
	}
	if !r.Acquire("g2", 50*time.Millisecond) {
		t.Fatalf("g1's lock should not block g2")
	}
}

func TestMutualExclusion(t *testing.T) {
	r := NewRegistry()

	const workers = 8
	var mu sync.Mutex
	var held, maxHeld int

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !r.Acquire("g1", 5*time.Second) {
				return
			}
			mu.Lock()
			held++
			if held > maxHeld {
				maxHeld = held
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			held--
			mu.Unlock()
			r.Release("g1")
		}()
	}
	wg.Wait()

	if maxHeld > 1 {
		t.Fatalf("lock held by %d workers at once", maxHeld)
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	r := NewRegistry()

	if !r.Acquire("g1", time.Second) {
		t.Fatalf("expected first acquire to succeed")
	}

	done := make(chan bool)
	go func() {
		done <- r.Acquire("g1", 2*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	r.Release("g1")

	if !<-done {
		t.Fatalf("expected waiting acquire to succeed after release")
	}
}
