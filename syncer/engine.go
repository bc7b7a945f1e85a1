// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package syncer keeps the model in step with the chain: the Engine commits
// block-consistent account snapshots, the TimesRefresher follows round timings.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vechain/stakesync/cache"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/endpoint"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/metrics"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/thor"
)

// MsgUnreachable is shown while sync cycles fail.
const MsgUnreachable = "Unable to access blockchain"

// ErrStaleBlock is returned when the node reports a best block below the cursor.
var ErrStaleBlock = errors.New("stale block")

var (
	logger = log.WithContext("pkg", "syncer")

	metricCycles        = metrics.LazyLoadCounterVec("sync_cycles_count", []string{"result"})
	metricBlock         = metrics.LazyLoadGauge("sync_block")
	metricCycleDuration = metrics.LazyLoadHistogram("sync_cycle_duration_ms", metrics.Bucket10s)
)

// HandleSource publishes the current endpoint handle.
type HandleSource interface {
	Handle() endpoint.Handle
	Changes() co.Waiter
}

// Endpoint is a HandleSource that can be asked for a new handle.
type Endpoint interface {
	HandleSource
	Reacquire()
}

type Options struct {
	UpdateInterval  time.Duration
	RetryDelay      time.Duration
	CycleTimeout    time.Duration // deadline of one cycle, 0 none
	ReacquireAfter  int           // consecutive failures before asking for another node, 0 never
	WalletCacheSize int
}

// DefaultOptions match the public node rate limits.
var DefaultOptions = Options{
	UpdateInterval:  30 * time.Second,
	RetryDelay:      6 * time.Second,
	CycleTimeout:    20 * time.Second,
	ReacquireAfter:  5,
	WalletCacheSize: 256,
}

type walletKey struct {
	routing thor.Address
	owner   thor.Address
}

// Engine runs the snapshot cycle. It is the only writer of the snapshot.
type Engine struct {
	source  Endpoint
	model   *model.Model
	counter *reqcount.Counter
	errs    *errmsg.Channel
	opts    Options

	wallets   *cache.LRU[walletKey, thor.Address]
	refreshCh chan chan error
	failures  int
}

func NewEngine(source Endpoint, m *model.Model, counter *reqcount.Counter, errs *errmsg.Channel, opts Options) (*Engine, error) {
	wallets, err := cache.NewLRU[walletKey, thor.Address](opts.WalletCacheSize)
	if err != nil {
		return nil, fmt.Errorf("wallet cache: %w", err)
	}
	return &Engine{
		source:    source,
		model:     m,
		counter:   counter,
		errs:      errs,
		opts:      opts,
		wallets:   wallets,
		refreshCh: make(chan chan error),
	}, nil
}

// Run cycles until ctx ends. A cycle starts right away, then after every
// interval, handle change, tracked address change or Refresh call. Cycles
// never overlap.
func (e *Engine) Run(ctx context.Context) {
	handles := e.source.Changes()
	defer handles.Stop()
	addresses := e.model.AddressChanges()
	defer addresses.Stop()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		var reply chan error
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-handles.C():
		case <-addresses.C():
		case reply = <-e.refreshCh:
		}

		err := e.cycle(ctx)
		if reply != nil {
			reply <- err
		}
		if ctx.Err() != nil {
			return
		}

		delay := e.opts.UpdateInterval
		if err != nil {
			delay = e.opts.RetryDelay
		}
		timer.Reset(delay)
	}
}

// Refresh runs one cycle out of band and returns its result once committed.
func (e *Engine) Refresh(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case e.refreshCh <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) cycle(ctx context.Context) error {
	h := e.source.Handle()
	if h == nil {
		e.model.Disconnect()
		return nil
	}

	defer e.counter.Track()()
	start := time.Now()

	syncCtx := ctx
	if e.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, e.opts.CycleTimeout)
		defer cancel()
	}
	err := e.sync(syncCtx, h)
	metricCycleDuration().Observe(time.Since(start).Milliseconds())

	switch {
	case err == nil:
		metricCycles().AddWithLabel(1, map[string]string{"result": "success"})
		e.failures = 0
		e.errs.ClearIf(MsgUnreachable)
		if changed, hit, miss := e.wallets.Stats(); changed {
			logger.Debug("wallet cache stats", "hit", hit, "miss", miss)
		}
		return nil
	case errors.Is(err, model.ErrAddressChanged):
		// the address change triggers the next cycle
		metricCycles().AddWithLabel(1, map[string]string{"result": "discarded"})
		logger.Debug("snapshot discarded", "err", err)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}

	result := "failure"
	if errors.Is(err, ErrStaleBlock) || errors.Is(err, model.ErrStaleCommit) {
		result = "stale"
	}
	metricCycles().AddWithLabel(1, map[string]string{"result": result})
	logger.Debug("sync cycle failed", "url", h.URL(), "err", err)

	e.errs.Set(MsgUnreachable, errorExpiry(e.opts.RetryDelay))

	e.failures++
	if e.opts.ReacquireAfter > 0 && e.failures >= e.opts.ReacquireAfter {
		logger.Info("node keeps failing, reacquiring", "url", h.URL(), "failures", e.failures)
		e.failures = 0
		e.source.Reacquire()
	}
	return err
}

// errorExpiry keeps the message up until just before the retry. It is always
// positive, an expiry of zero would keep the message forever.
func errorExpiry(retryDelay time.Duration) time.Duration {
	expiry := max(retryDelay-500*time.Millisecond, retryDelay/2)
	if expiry <= 0 {
		return time.Second
	}
	return expiry
}

func (e *Engine) sync(ctx context.Context, h endpoint.Handle) error {
	prev, gen := e.model.Read()

	best, err := h.BestBlock(ctx)
	if err != nil {
		return err
	}
	if best < prev.Block {
		return fmt.Errorf("%w: best %d below cursor %d", ErrStaleBlock, best, prev.Block)
	}

	var (
		treasury   *contracts.TreasuryState
		balance    model.Maybe[*big.Int]
		walletAddr model.Maybe[thor.Address]
		wallet     model.Maybe[*contracts.WalletState]
		usedRoute  model.Maybe[thor.Address]
	)
	owner, tracked := prev.Address.Get()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		treasury, err = h.Treasury(gctx, best)
		return err
	})
	if tracked {
		g.Go(func() error {
			v, err := h.Balance(gctx, best, owner)
			if err != nil {
				return err
			}
			balance = model.Some(v)
			return nil
		})
		if prevTreasury, ok := prev.Treasury.Get(); ok {
			if routing, ok := prevTreasury.RoutingContract(); ok {
				usedRoute = model.Some(routing)
				g.Go(func() error {
					var err error
					walletAddr, wallet, err = e.resolveWallet(gctx, h, best, routing, owner, prev.WalletAddress)
					return err
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// the routing contract may only be known from the treasury just read
	if tracked {
		if routing, ok := treasury.RoutingContract(); ok {
			if used, ok := usedRoute.Get(); !ok || used != routing {
				walletAddr, wallet, err = e.resolveWallet(ctx, h, best, routing, owner, model.None[thor.Address]())
				if err != nil {
					return err
				}
			}
		}
	}

	if err := e.model.Commit(gen, model.Snapshot{
		Block:         best,
		Balance:       balance,
		Treasury:      model.Some(treasury),
		WalletAddress: walletAddr,
		Wallet:        wallet,
	}); err != nil {
		return err
	}
	metricBlock().Set(int64(best))
	return nil
}

// resolveWallet finds the wallet of owner and reads its state. A known
// address is reused, then the cache, before asking the routing contract.
// A wallet that is not deployed yields an absent state.
func (e *Engine) resolveWallet(
	ctx context.Context,
	h endpoint.Handle,
	block uint32,
	routing, owner thor.Address,
	known model.Maybe[thor.Address],
) (model.Maybe[thor.Address], model.Maybe[*contracts.WalletState], error) {
	none := model.None[*contracts.WalletState]()

	addr, ok := known.Get()
	if !ok {
		var err error
		addr, err = e.wallets.GetOrLoad(walletKey{routing, owner}, func(k walletKey) (thor.Address, error) {
			return h.WalletAddress(ctx, block, k.routing, k.owner)
		})
		if errors.Is(err, contracts.ErrNotDeployed) {
			return model.None[thor.Address](), none, nil
		}
		if err != nil {
			return model.None[thor.Address](), none, err
		}
	}

	state, err := h.Wallet(ctx, block, addr)
	if errors.Is(err, contracts.ErrNotDeployed) {
		return model.Some(addr), none, nil
	}
	if err != nil {
		return model.None[thor.Address](), none, err
	}
	return model.Some(addr), model.Some(state), nil
}
