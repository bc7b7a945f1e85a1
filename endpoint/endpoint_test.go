// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/test/datagen"
	"github.com/vechain/stakesync/test/testnode"
	"github.com/vechain/stakesync/thor"
)

func TestNode(t *testing.T) {
	node := testnode.New()
	defer node.Close()
	node.SetBestBlock(12)

	staking := node.DeployStaking(datagen.RandAddress())
	parent := datagen.RandAddress()
	staking.SetParent(parent)
	staking.SetTimes(contracts.Times{CurrentRoundSince: 1, NextRoundSince: 2})

	owner, wallet := datagen.RandAddress(), datagen.RandAddress()
	node.SetBalance(owner, big.NewInt(100))
	staking.SetWallet(owner, wallet, &contracts.WalletState{Tokens: big.NewInt(3)})

	h := NodeDialer(staking.Treasury)(node.URL())
	ctx := context.Background()

	best, err := h.BestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), best)

	balance, err := h.Balance(ctx, best, owner)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	treasury, err := h.Treasury(ctx, best)
	require.NoError(t, err)
	assert.Equal(t, parent, treasury.Parent)

	times, err := h.Times(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), times.NextRoundSince)

	addr, err := h.WalletAddress(ctx, best, parent, owner)
	require.NoError(t, err)
	assert.Equal(t, wallet, addr)

	state, err := h.Wallet(ctx, best, addr)
	require.NoError(t, err)
	assert.Equal(t, "3", state.Tokens.String())
}

func TestStaticResolver(t *testing.T) {
	node := testnode.New()
	defer node.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	r := NewStaticResolver([]string{dead.URL, node.URL()}, NodeDialer(thor.Address{}))
	h, err := r.Resolve(context.Background(), thor.TestNet)
	require.NoError(t, err)
	assert.Equal(t, node.URL(), h.URL())

	_, err = NewStaticResolver([]string{dead.URL}, NodeDialer(thor.Address{})).Resolve(context.Background(), thor.TestNet)
	assert.ErrorContains(t, err, "probe "+dead.URL)

	_, err = NewStaticResolver(nil, NodeDialer(thor.Address{})).Resolve(context.Background(), thor.TestNet)
	assert.ErrorIs(t, err, errNoNodes)
}

func TestDiscoveryResolver(t *testing.T) {
	node := testnode.New()
	defer node.Close()

	var failing atomic.Bool
	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nodes", r.URL.Path)
		if failing.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("network") != "main" {
			json.NewEncoder(w).Encode([]string{})
			return
		}
		json.NewEncoder(w).Encode([]string{node.URL()})
	}))
	defer discovery.Close()

	r := NewDiscoveryResolver(discovery.URL+"/", NodeDialer(thor.Address{}))

	h, err := r.Resolve(context.Background(), thor.MainNet)
	require.NoError(t, err)
	assert.Equal(t, node.URL(), h.URL())

	_, err = r.Resolve(context.Background(), thor.TestNet)
	assert.ErrorIs(t, err, errNoNodes)

	failing.Store(true)
	_, err = r.Resolve(context.Background(), thor.MainNet)
	assert.ErrorContains(t, err, "discovery status 503")
}

type fakeHandle struct {
	Handle
	url string
}

func (h *fakeHandle) URL() string { return h.url }

func TestAcquirer_RetriesUntilSuccess(t *testing.T) {
	var (
		attempts   atomic.Int32
		inFlight   atomic.Int32
		overlapped atomic.Bool
	)
	resolver := ResolverFunc(func(ctx context.Context, network *thor.Network) (Handle, error) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer inFlight.Add(-1)

		assert.Equal(t, thor.TestNet, network)
		if attempts.Add(1) <= 3 {
			return nil, errors.New("discovery unavailable")
		}
		return &fakeHandle{url: "node-1"}, nil
	})

	var counter reqcount.Counter
	acq := NewAcquirer(resolver, thor.TestNet, &counter, 20*time.Millisecond)
	changes := acq.Changes()
	defer changes.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go acq.Run(ctx)

	// absent while failing
	time.Sleep(30 * time.Millisecond)
	if attempts.Load() <= 3 {
		assert.Nil(t, acq.Handle())
	}

	select {
	case <-changes.C():
	case <-time.After(2 * time.Second):
		t.Fatal("handle never published")
	}
	assert.Equal(t, "node-1", acq.Handle().URL())
	assert.Equal(t, int32(4), attempts.Load())
	assert.False(t, overlapped.Load())
	assert.Equal(t, int64(0), counter.Count())

	// idle after success
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(4), attempts.Load())
}

func TestAcquirer_Reacquire(t *testing.T) {
	var n atomic.Int32
	resolver := ResolverFunc(func(context.Context, *thor.Network) (Handle, error) {
		if n.Add(1) == 1 {
			return &fakeHandle{url: "first"}, nil
		}
		return &fakeHandle{url: "second"}, nil
	})

	acq := NewAcquirer(resolver, thor.MainNet, &reqcount.Counter{}, time.Hour)
	changes := acq.Changes()
	defer changes.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		acq.Run(ctx)
		close(done)
	}()

	<-changes.C()
	assert.Equal(t, "first", acq.Handle().URL())

	acq.Reacquire()
	<-changes.C()
	assert.Equal(t, "second", acq.Handle().URL())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestAcquirer_StopsWhileWaiting(t *testing.T) {
	resolver := ResolverFunc(func(context.Context, *thor.Network) (Handle, error) {
		return nil, errors.New("down")
	})
	acq := NewAcquirer(resolver, thor.MainNet, &reqcount.Counter{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		acq.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
	assert.Nil(t, acq.Handle())
}
