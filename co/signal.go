// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
)

// Waiter observes broadcasts of a Signal.
type Waiter interface {
	// C is readable once after one or more broadcasts. Broadcasts that
	// happen while a notification is pending are coalesced.
	C() <-chan struct{}
	// Stop detaches the waiter from its signal.
	Stop()
}

// Signal is a broadcast change notifier keeping a list of waiters.
// The zero value is ready to use.
type Signal struct {
	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

// Broadcast notifies every waiter without blocking.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.waiters {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// NewWaiter returns a waiter notified by broadcasts issued after this call.
func (s *Signal) NewWaiter() Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiters == nil {
		s.waiters = make(map[*waiter]struct{})
	}
	w := &waiter{s: s, ch: make(chan struct{}, 1)}
	s.waiters[w] = struct{}{}
	return w
}

// Len returns the number of attached waiters.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.waiters)
}

type waiter struct {
	s  *Signal
	ch chan struct{}
}

func (w *waiter) C() <-chan struct{} {
	return w.ch
}

func (w *waiter) Stop() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	delete(w.s.waiters, w)
}
