// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package txcoord submits stake and unstake requests to the connected wallet
// and waits for them to show up in the account balance.
package txcoord

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/pborman/uuid"

	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/metrics"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/thor"
	tccommon "github.com/vechain/stakesync/thorclient/common"
)

var (
	ErrNotReady      = errors.New("account not loaded")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrBusy          = errors.New("a transaction is pending")
)

var (
	logger = log.WithContext("pkg", "txcoord")

	metricOutcomes = metrics.LazyLoadCounterVec("tx_outcomes_count", []string{"outcome"})
)

// Sender delivers a request to the wallet.
type Sender interface {
	SendTransaction(ctx context.Context, req *bridge.Request) (*bridge.Receipt, error)
}

// Refresher runs one sync cycle on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	PollInterval time.Duration
	PollAttempts int
	ValidFor     time.Duration // validity window handed to the wallet
	Referrer     *thor.Address
}

var DefaultOptions = Options{
	PollInterval: 6 * time.Second,
	PollAttempts: 60,
	ValidFor:     5 * time.Minute,
}

// Coordinator drives the wait state of the model:
// Idle -> AwaitingConfirmation -> Confirmed|TimedOut -> Idle.
type Coordinator struct {
	model     *model.Model
	sender    Sender
	refresher Refresher
	counter   *reqcount.Counter
	treasury  thor.Address
	opts      Options

	submitting atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	goes       co.Goes
}

func New(m *model.Model, sender Sender, refresher Refresher, counter *reqcount.Counter, treasury thor.Address, opts Options) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		model:     m,
		sender:    sender,
		refresher: refresher,
		counter:   counter,
		treasury:  treasury,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit sends the active action with the current amount to the wallet. It
// returns once the wallet accepted or rejected the request; confirmation is
// then awaited in the background.
func (c *Coordinator) Submit(ctx context.Context) (*bridge.Receipt, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.submitting.Store(false)

	st := c.model.State()
	if st.Wait != model.Idle {
		return nil, ErrBusy
	}
	req, err := c.buildRequest(&st)
	if err != nil {
		return nil, err
	}

	receipt, err := c.send(ctx, req)
	if err != nil {
		metricOutcomes().AddWithLabel(1, map[string]string{"outcome": "rejected"})
		return nil, err
	}
	logger.Info("transaction accepted by wallet", "id", req.ID, "action", st.Action, "txid", receipt.TxID)

	if !c.model.CompareAndSetWait(model.Idle, model.AwaitingConfirmation) {
		return nil, ErrBusy
	}
	balance, _ := st.Balance.Get()
	address, _ := st.Address.Get()
	c.goes.Go(func() { c.poll(c.ctx, address, balance) })
	return receipt, nil
}

func (c *Coordinator) send(ctx context.Context, req *bridge.Request) (*bridge.Receipt, error) {
	defer c.counter.Track()()
	return c.sender.SendTransaction(ctx, req)
}

func (c *Coordinator) buildRequest(st *model.State) (*bridge.Request, error) {
	from, ok := st.Address.Get()
	if !ok || !st.Balance.Present() || !st.Treasury.Present() {
		return nil, ErrNotReady
	}
	amount, ok := st.Amount()
	if !ok || !st.AmountValid() || !st.AmountPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		clause *tccommon.Clause
		err    error
	)
	switch st.Action {
	case model.Unstake:
		wallet, ok := st.WalletAddress.Get()
		if !ok {
			return nil, ErrNotReady
		}
		clause, err = contracts.UnstakeMessage(wallet, amount)
	default:
		clause, err = contracts.DepositMessage(c.treasury, amount, c.opts.Referrer)
	}
	if err != nil {
		return nil, err
	}

	return &bridge.Request{
		ID:         uuid.New(),
		ValidUntil: time.Now().Add(c.opts.ValidFor).Unix(),
		Network:    st.Network.Name,
		ChainTag:   st.Network.ChainTag,
		From:       from,
		Messages:   []tccommon.Clause{*clause},
	}, nil
}

// poll refreshes the snapshot until the balance of address moves away from
// balance. A balance change is taken as confirmation; it may also come from
// an unrelated transfer. Each attempt waits at most one poll interval for
// its refresh, so the wait ends after PollAttempts attempts whatever the node
// does.
func (c *Coordinator) poll(ctx context.Context, address thor.Address, balance *big.Int) {
	for attempt := 1; attempt <= c.opts.PollAttempts; attempt++ {
		if !co.Sleep(ctx, c.opts.PollInterval) {
			return
		}
		if err := c.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("refresh failed while waiting for transaction", "attempt", attempt, "err", err)
		}

		st := c.model.State()
		if st.Address != model.Some(address) {
			continue
		}
		if current, ok := st.Balance.Get(); ok && current.Cmp(balance) != 0 {
			c.finish(model.Confirmed, "confirmed")
			return
		}
	}
	c.finish(model.TimedOut, "timeout")
}

func (c *Coordinator) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.PollInterval)
	defer cancel()
	return c.refresher.Refresh(ctx)
}

func (c *Coordinator) finish(to model.WaitState, outcome string) {
	if c.model.CompareAndSetWait(model.AwaitingConfirmation, to) {
		c.model.ClearAmount()
	}
	metricOutcomes().AddWithLabel(1, map[string]string{"outcome": outcome})
	logger.Info("transaction wait finished", "outcome", outcome)
}

// Acknowledge returns a finished wait to Idle. It reports whether there was
// one to acknowledge.
func (c *Coordinator) Acknowledge() bool {
	return c.model.CompareAndSetWait(model.Confirmed, model.Idle) ||
		c.model.CompareAndSetWait(model.TimedOut, model.Idle)
}

// SetActiveAction switches between stake and unstake.
func (c *Coordinator) SetActiveAction(a model.Action) {
	c.model.SetAction(a)
}

func (c *Coordinator) SetAmountInput(text string) {
	c.model.SetAmountInput(text)
}

func (c *Coordinator) SetAmountToMax() {
	c.model.SetAmountToMax()
}

// Close stops a running poll and waits for it to return.
func (c *Coordinator) Close() {
	c.cancel()
	c.goes.Wait()
}
