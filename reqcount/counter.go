// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reqcount counts in-flight network operations. The count is a
// liveness hint for the presentation layer, e.g. to show a busy indicator.
package reqcount

import (
	"sync/atomic"

	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/metrics"
)

var metricInFlight = metrics.LazyLoadGauge("requests_in_flight")

// Counter is safe for concurrent use. Every Begin must be paired with
// exactly one End.
type Counter struct {
	n       atomic.Int64
	changed co.Signal
}

// Begin marks the start of a network operation.
func (c *Counter) Begin() {
	c.n.Add(1)
	metricInFlight().Add(1)
	c.changed.Broadcast()
}

// End marks the end of an operation started with Begin.
func (c *Counter) End() {
	c.n.Add(-1)
	metricInFlight().Add(-1)
	c.changed.Broadcast()
}

// Track calls Begin and returns End, for use with defer.
func (c *Counter) Track() func() {
	c.Begin()
	return c.End
}

// Count returns the number of operations in flight.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// Changes returns a waiter notified on every Begin and End.
func (c *Counter) Changes() co.Waiter {
	return c.changed.NewWaiter()
}
