// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package syncer

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakesync/amount"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/endpoint"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/test/datagen"
	"github.com/vechain/stakesync/test/testnode"
	"github.com/vechain/stakesync/thor"
)

type fakeSource struct {
	mu         sync.Mutex
	h          endpoint.Handle
	changed    co.Signal
	reacquired atomic.Int32
}

func (s *fakeSource) Handle() endpoint.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h
}

func (s *fakeSource) Changes() co.Waiter {
	return s.changed.NewWaiter()
}

func (s *fakeSource) Reacquire() {
	s.reacquired.Add(1)
}

func (s *fakeSource) set(h endpoint.Handle) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
	s.changed.Broadcast()
}

type fixture struct {
	node    *testnode.Node
	staking *testnode.Staking
	source  *fakeSource
	model   *model.Model
	counter *reqcount.Counter
	errs    *errmsg.Channel
	engine  *Engine
	owner   thor.Address
}

var testOptions = Options{
	UpdateInterval:  time.Hour,
	RetryDelay:      2 * time.Second,
	WalletCacheSize: 16,
}

func newFixture(t *testing.T, opts Options) *fixture {
	node := testnode.New()
	t.Cleanup(node.Close)

	f := &fixture{
		node:    node,
		staking: node.DeployStaking(datagen.RandAddress()),
		source:  &fakeSource{},
		model:   model.New(thor.TestNet),
		counter: &reqcount.Counter{},
		errs:    &errmsg.Channel{},
		owner:   datagen.RandAddress(),
	}
	f.staking.SetTreasury(contracts.TreasuryState{TotalCoins: amount.Coins(1000), TotalTokens: amount.Coins(900)})
	f.node.SetBalance(f.owner, amount.Coins(100))
	f.source.set(endpoint.NodeDialer(f.staking.Treasury)(node.URL()))

	engine, err := NewEngine(f.source, f.model, f.counter, f.errs, opts)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) track() {
	f.model.SetAddress(model.Some(f.owner))
}

func TestEngine_NoHandle(t *testing.T) {
	f := newFixture(t, testOptions)
	require.NoError(t, f.engine.cycle(context.Background()))
	require.True(t, f.model.State().Treasury.Present())

	f.source.set(nil)
	assert.NoError(t, f.engine.cycle(context.Background()))

	st := f.model.State()
	assert.False(t, st.Treasury.Present(), "disconnected")
	assert.Equal(t, uint32(1), st.Block)
	_, hasErr := f.errs.Message()
	assert.False(t, hasErr)
	assert.Equal(t, int64(0), f.counter.Count())
}

func TestEngine_Cycle(t *testing.T) {
	f := newFixture(t, testOptions)
	parent, wallet := datagen.RandAddress(), datagen.RandAddress()
	f.staking.SetParent(parent)
	f.staking.SetWallet(f.owner, wallet, &contracts.WalletState{Tokens: amount.Coins(5)})
	f.track()
	f.node.SetBestBlock(7)

	ctx := context.Background()
	require.NoError(t, f.engine.cycle(ctx))

	st := f.model.State()
	assert.Equal(t, uint32(7), st.Block)
	balance, ok := st.Balance.Get()
	require.True(t, ok)
	assert.Equal(t, amount.Coins(100).String(), balance.String())
	treasury, ok := st.Treasury.Get()
	require.True(t, ok)
	assert.Equal(t, parent, treasury.Parent)
	assert.Equal(t, model.Some(wallet), st.WalletAddress)
	w, ok := st.Wallet.Get()
	require.True(t, ok)
	assert.Equal(t, amount.Coins(5).String(), w.Tokens.String())
	assert.Equal(t, 1, f.node.Calls("getWalletAddress"))

	// the known wallet address is reused
	f.node.SetBestBlock(8)
	require.NoError(t, f.engine.cycle(ctx))
	assert.Equal(t, uint32(8), f.model.State().Block)
	assert.Equal(t, 1, f.node.Calls("getWalletAddress"))
	assert.Equal(t, 2, f.node.Calls("getWalletState"))
	assert.Equal(t, int64(0), f.counter.Count())
}

func TestEngine_LateRoutingContract(t *testing.T) {
	f := newFixture(t, testOptions)
	f.track()
	ctx := context.Background()

	require.NoError(t, f.engine.cycle(ctx))
	st := f.model.State()
	assert.False(t, st.WalletAddress.Present())
	assert.False(t, st.Wallet.Present())

	// the treasury reveals its routing contract between two cycles
	parent, wallet := datagen.RandAddress(), datagen.RandAddress()
	f.staking.SetParent(parent)
	f.staking.SetWallet(f.owner, wallet, &contracts.WalletState{Unstaking: big.NewInt(9)})

	require.NoError(t, f.engine.cycle(ctx))
	assert.Equal(t, 1, f.node.Calls("getWalletAddress"), "one extra round trip in the same cycle")
	st = f.model.State()
	assert.Equal(t, model.Some(wallet), st.WalletAddress)
	w, ok := st.Wallet.Get()
	require.True(t, ok)
	assert.Equal(t, "9", w.Unstaking.String())

	// a new routing contract replaces the reused address
	newParent, newWallet := datagen.RandAddress(), datagen.RandAddress()
	f.staking.SetParent(newParent)
	f.staking.SetWallet(f.owner, newWallet, &contracts.WalletState{Unstaking: big.NewInt(10)})

	require.NoError(t, f.engine.cycle(ctx))
	assert.Equal(t, 2, f.node.Calls("getWalletAddress"))
	st = f.model.State()
	assert.Equal(t, model.Some(newWallet), st.WalletAddress)
	w, _ = st.Wallet.Get()
	assert.Equal(t, "10", w.Unstaking.String())
}

func TestEngine_WalletNotDeployed(t *testing.T) {
	f := newFixture(t, testOptions)
	wallet := datagen.RandAddress()
	f.staking.SetParent(datagen.RandAddress())
	f.staking.SetWallet(f.owner, wallet, nil)
	f.track()

	require.NoError(t, f.engine.cycle(context.Background()))
	st := f.model.State()
	assert.Equal(t, model.Some(wallet), st.WalletAddress)
	assert.False(t, st.Wallet.Present())
	assert.True(t, st.Balance.Present())
}

func TestEngine_StaleBlock(t *testing.T) {
	f := newFixture(t, testOptions)
	f.track()
	f.node.SetBestBlock(10)
	ctx := context.Background()
	require.NoError(t, f.engine.cycle(ctx))
	before := f.model.State()

	f.node.SetBestBlock(5)
	f.node.SetBalance(f.owner, amount.Coins(1))
	err := f.engine.cycle(ctx)
	assert.ErrorIs(t, err, ErrStaleBlock)

	after := f.model.State()
	assert.Equal(t, before.Snapshot, after.Snapshot)
	msg, ok := f.errs.Message()
	require.True(t, ok)
	assert.Equal(t, MsgUnreachable, msg.Text)
	assert.Equal(t, int64(0), f.counter.Count())
}

func TestEngine_FailureAndRecovery(t *testing.T) {
	f := newFixture(t, testOptions)
	ctx := context.Background()

	f.node.FailNext(1)
	require.Error(t, f.engine.cycle(ctx))
	msg, ok := f.errs.Message()
	require.True(t, ok)
	assert.Equal(t, MsgUnreachable, msg.Text)
	assert.WithinDuration(t, time.Now().Add(testOptions.RetryDelay-500*time.Millisecond), msg.Expiry, time.Second)
	assert.False(t, f.model.State().Treasury.Present())

	require.NoError(t, f.engine.cycle(ctx))
	_, ok = f.errs.Message()
	assert.False(t, ok)
	assert.Equal(t, int64(0), f.counter.Count())
}

func TestEngine_PartialFailureCommitsNothing(t *testing.T) {
	tests := []struct {
		name   string
		late   bool // the routing contract shows up in the failing cycle
		inject func(f *fixture)
	}{
		{"balance", false, func(f *fixture) { f.node.FailPath("/accounts/"+f.owner.String(), 1) }},
		{"treasury", false, func(f *fixture) { f.node.FailMethod("getTreasuryState", 1) }},
		{"wallet state", false, func(f *fixture) { f.node.FailMethod("getWalletState", 1) }},
		{"late wallet address", true, func(f *fixture) { f.node.FailMethod("getWalletAddress", 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testOptions)
			parent, wallet := datagen.RandAddress(), datagen.RandAddress()
			if !tt.late {
				f.staking.SetParent(parent)
			}
			f.staking.SetWallet(f.owner, wallet, &contracts.WalletState{Tokens: amount.Coins(5)})
			f.track()
			f.node.SetBestBlock(10)

			ctx := context.Background()
			require.NoError(t, f.engine.cycle(ctx))
			before := f.model.State()

			// everything moved on chain, none of it may be committed
			if tt.late {
				f.staking.SetParent(parent)
			}
			f.node.SetBestBlock(11)
			f.node.SetBalance(f.owner, amount.Coins(1))
			f.staking.SetTreasury(contracts.TreasuryState{TotalCoins: amount.Coins(2000), TotalTokens: amount.Coins(1800)})
			f.staking.SetWallet(f.owner, wallet, &contracts.WalletState{Tokens: amount.Coins(6)})
			tt.inject(f)

			require.Error(t, f.engine.cycle(ctx))
			after := f.model.State()
			assert.Equal(t, before.Snapshot, after.Snapshot)
			assert.Equal(t, uint32(10), after.Block)
			msg, ok := f.errs.Message()
			require.True(t, ok)
			assert.Equal(t, MsgUnreachable, msg.Text)
			assert.Equal(t, int64(0), f.counter.Count())

			require.NoError(t, f.engine.cycle(ctx))
			assert.Equal(t, uint32(11), f.model.State().Block)
		})
	}
}

func TestEngine_HangingNode(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	opts := testOptions
	opts.CycleTimeout = 100 * time.Millisecond
	opts.ReacquireAfter = 2
	f := newFixture(t, opts)
	f.source.set(endpoint.NodeDialer(f.staking.Treasury)(srv.URL))

	ctx := context.Background()
	err := f.engine.cycle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	msg, ok := f.errs.Message()
	require.True(t, ok)
	assert.Equal(t, MsgUnreachable, msg.Text)
	assert.Equal(t, int64(0), f.counter.Count())

	require.Error(t, f.engine.cycle(ctx))
	assert.Equal(t, int32(1), f.source.reacquired.Load())
}

func TestErrorExpiry(t *testing.T) {
	assert.Equal(t, 5500*time.Millisecond, errorExpiry(6*time.Second))
	assert.Equal(t, 250*time.Millisecond, errorExpiry(500*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, errorExpiry(200*time.Millisecond))
	assert.Equal(t, time.Second, errorExpiry(0))
}

func TestEngine_KeepsForeignError(t *testing.T) {
	f := newFixture(t, testOptions)
	f.errs.Set("Your wallet must be on TestNet", 10*time.Second)

	require.NoError(t, f.engine.cycle(context.Background()))
	msg, ok := f.errs.Message()
	require.True(t, ok)
	assert.Equal(t, "Your wallet must be on TestNet", msg.Text)
}

func TestEngine_Reacquire(t *testing.T) {
	opts := testOptions
	opts.ReacquireAfter = 2
	f := newFixture(t, opts)
	ctx := context.Background()

	f.node.FailNext(1)
	require.Error(t, f.engine.cycle(ctx))
	require.NoError(t, f.engine.cycle(ctx))
	f.node.FailNext(2)
	require.Error(t, f.engine.cycle(ctx))
	assert.Equal(t, int32(0), f.source.reacquired.Load(), "success resets the count")
	require.Error(t, f.engine.cycle(ctx))
	assert.Equal(t, int32(1), f.source.reacquired.Load())
}

func TestEngine_CursorNeverDecreases(t *testing.T) {
	f := newFixture(t, testOptions)
	f.track()
	ctx := context.Background()

	var highest uint32
	for _, num := range datagen.RandBlockSequence(100, 50) {
		f.node.SetBestBlock(num)
		err := f.engine.cycle(ctx)
		if num < highest {
			assert.ErrorIs(t, err, ErrStaleBlock)
		} else {
			assert.NoError(t, err)
			highest = num
		}
		assert.Equal(t, highest, f.model.State().Block)
	}
	assert.Equal(t, int64(0), f.counter.Count())
}

func TestEngine_Run(t *testing.T) {
	f := newFixture(t, testOptions)
	f.source.set(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.engine.Run(ctx)
		close(done)
	}()

	// refresh without a handle leaves the model disconnected
	require.NoError(t, f.engine.Refresh(ctx))
	assert.False(t, f.model.State().Treasury.Present())

	// a new handle triggers a cycle
	f.source.set(endpoint.NodeDialer(f.staking.Treasury)(f.node.URL()))
	require.Eventually(t, func() bool { return f.model.State().Treasury.Present() }, 2*time.Second, 10*time.Millisecond)

	// so does a new address
	f.track()
	require.Eventually(t, func() bool { return f.model.State().Balance.Present() }, 2*time.Second, 10*time.Millisecond)

	f.node.SetBestBlock(3)
	require.NoError(t, f.engine.Refresh(ctx))
	assert.Equal(t, uint32(3), f.model.State().Block)

	f.node.FailNext(1)
	assert.Error(t, f.engine.Refresh(ctx))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}

	err := f.engine.Refresh(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewEngine_BadCacheSize(t *testing.T) {
	opts := testOptions
	opts.WalletCacheSize = 0
	_, err := NewEngine(&fakeSource{}, model.New(thor.TestNet), &reqcount.Counter{}, &errmsg.Channel{}, opts)
	assert.Error(t, err)
}
