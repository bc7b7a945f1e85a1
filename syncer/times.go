// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package syncer

import (
	"context"
	"time"

	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/endpoint"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
)

// TimesRefresher reads the round timings once per handle, retrying failed
// reads with a fixed delay. It never blocks on the snapshot cycle.
type TimesRefresher struct {
	source     HandleSource
	model      *model.Model
	counter    *reqcount.Counter
	retryDelay time.Duration
}

func NewTimesRefresher(source HandleSource, m *model.Model, counter *reqcount.Counter, retryDelay time.Duration) *TimesRefresher {
	return &TimesRefresher{
		source:     source,
		model:      m,
		counter:    counter,
		retryDelay: retryDelay,
	}
}

func (r *TimesRefresher) Run(ctx context.Context) {
	changes := r.source.Changes()
	defer changes.Stop()

	for {
		if !r.refresh(ctx, changes) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-changes.C():
		}
	}
}

// refresh publishes the times of the current handle. It returns false when
// ctx ends first.
func (r *TimesRefresher) refresh(ctx context.Context, changes co.Waiter) bool {
	for {
		h := r.source.Handle()
		if h == nil {
			r.model.SetTimes(model.None[*contracts.Times]())
			return true
		}

		times, err := r.fetch(ctx, h)
		if err == nil {
			r.model.SetTimes(model.Some(times))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Debug("failed to read times", "url", h.URL(), "retry", r.retryDelay, "err", err)

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-changes.C():
			// retry right away against the new handle
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (r *TimesRefresher) fetch(ctx context.Context, h endpoint.Handle) (*contracts.Times, error) {
	defer r.counter.Track()()
	return h.Times(ctx)
}
