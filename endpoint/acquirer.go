// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/metrics"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/thor"
)

var (
	logger = log.WithContext("pkg", "endpoint")

	metricAttempts = metrics.LazyLoadCounterVec("endpoint_attempts_count", []string{"result"})
)

// Acquirer keeps a Handle for one network. It retries failed resolutions
// forever with a fixed delay and holds at most one retry timer.
type Acquirer struct {
	resolver   Resolver
	network    *thor.Network
	counter    *reqcount.Counter
	retryDelay time.Duration

	mu        sync.Mutex
	handle    Handle
	changed   co.Signal
	reacquire chan struct{}
}

func NewAcquirer(resolver Resolver, network *thor.Network, counter *reqcount.Counter, retryDelay time.Duration) *Acquirer {
	return &Acquirer{
		resolver:   resolver,
		network:    network,
		counter:    counter,
		retryDelay: retryDelay,
		reacquire:  make(chan struct{}, 1),
	}
}

// Handle returns the current handle, nil until the first success.
func (a *Acquirer) Handle() Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle
}

// Changes notifies after every newly published handle.
func (a *Acquirer) Changes() co.Waiter {
	return a.changed.NewWaiter()
}

// Reacquire asks Run to resolve again. The current handle stays published
// until a replacement is found.
func (a *Acquirer) Reacquire() {
	select {
	case a.reacquire <- struct{}{}:
	default:
	}
}

func (a *Acquirer) Run(ctx context.Context) {
	logger.Debug("acquirer started", "network", a.network)
	defer logger.Debug("acquirer stopped", "network", a.network)

	for {
		h, err := a.attempt(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("failed to acquire endpoint", "network", a.network, "retry", a.retryDelay, "err", err)
			if !co.Sleep(ctx, a.retryDelay) {
				return
			}
			continue
		}

		a.publish(h)
		logger.Info("endpoint acquired", "network", a.network, "url", h.URL())

		select {
		case <-ctx.Done():
			return
		case <-a.reacquire:
		}
	}
}

func (a *Acquirer) attempt(ctx context.Context) (Handle, error) {
	defer a.counter.Track()()

	h, err := a.resolver.Resolve(ctx, a.network)
	if err != nil {
		metricAttempts().AddWithLabel(1, map[string]string{"result": "failure"})
		return nil, err
	}
	metricAttempts().AddWithLabel(1, map[string]string{"result": "success"})
	return h, nil
}

func (a *Acquirer) publish(h Handle) {
	a.mu.Lock()
	a.handle = h
	a.mu.Unlock()

	// requests made while resolving are answered by this handle
	select {
	case <-a.reacquire:
	default:
	}
	a.changed.Broadcast()
}
