// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bind_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakesync/test/datagen"
	"github.com/vechain/stakesync/test/testnode"
	"github.com/vechain/stakesync/thorclient"
	"github.com/vechain/stakesync/thorclient/bind"
	"github.com/vechain/stakesync/thorclient/common"
)

const counterABI = `[
	{"type":"function","name":"get","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"add","stateMutability":"view","inputs":[{"name":"a","type":"uint256"},{"name":"b","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"fail","stateMutability":"view","inputs":[],"outputs":[]}
]`

func newCounter(t *testing.T) (*testnode.Node, *bind.Caller) {
	node := testnode.New()
	t.Cleanup(node.Close)

	addr := datagen.RandAddress()
	caller, err := bind.NewCaller(thorclient.New(node.URL()), []byte(counterABI), addr)
	require.NoError(t, err)

	node.Deploy(addr, caller.ABI(), map[string]testnode.Method{
		"get": func(string, []any) ([]any, error) {
			return []any{big.NewInt(42)}, nil
		},
		"add": func(_ string, args []any) ([]any, error) {
			return []any{new(big.Int).Add(args[0].(*big.Int), args[1].(*big.Int))}, nil
		},
		"fail": func(string, []any) ([]any, error) {
			return nil, errors.New("nope")
		},
	})
	return node, caller
}

func TestCaller_Call(t *testing.T) {
	_, caller := newCounter(t)

	out, err := caller.Call(context.Background(), "get")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), out[0])

	out, err = caller.Call(context.Background(), "add", big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), out[0])
}

func TestCaller_Batch(t *testing.T) {
	node, caller := newCounter(t)

	out, err := caller.Revision("10").Batch(context.Background(),
		bind.Call{Method: "get"},
		bind.Call{Method: "add", Args: []any{big.NewInt(1), big.NewInt(1)}},
	)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, big.NewInt(42), out[0][0])
	assert.Equal(t, big.NewInt(2), out[1][0])
	assert.Equal(t, 1, node.Calls("get"))
}

func TestCaller_Errors(t *testing.T) {
	_, caller := newCounter(t)

	_, err := caller.Call(context.Background(), "fail")
	assert.ErrorIs(t, err, bind.ErrReverted)

	_, err = caller.Call(context.Background(), "missing")
	assert.ErrorContains(t, err, "failed to pack method (missing)")

	_, err = caller.Call(context.Background(), "add", big.NewInt(1))
	assert.Error(t, err)

	// no code at the address: empty output cannot be unpacked
	_, err = caller.At(datagen.RandAddress()).Call(context.Background(), "get")
	assert.ErrorContains(t, err, "failed to unpack output")
}

func TestCaller_RevertReason(t *testing.T) {
	// Error(string) selector followed by the abi encoded reason "paused"
	reason := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000006" +
		"7061757365640000000000000000000000000000000000000000000000000000"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*common.CallResult{{Data: reason, Reverted: true, VMError: "execution reverted"}})
	}))
	defer ts.Close()

	caller, err := bind.NewCaller(thorclient.New(ts.URL), []byte(counterABI), datagen.RandAddress())
	require.NoError(t, err)

	_, err = caller.Call(context.Background(), "get")
	assert.ErrorIs(t, err, bind.ErrReverted)
	assert.ErrorContains(t, err, "paused")
}

func TestCaller_VMError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*common.CallResult{{Data: "0x", VMError: "out of gas"}})
	}))
	defer ts.Close()

	caller, err := bind.NewCaller(thorclient.New(ts.URL), []byte(counterABI), datagen.RandAddress())
	require.NoError(t, err)

	_, err = caller.Call(context.Background(), "get")
	assert.ErrorIs(t, err, bind.ErrVM)

	_, err = caller.Batch(context.Background(), bind.Call{Method: "get"}, bind.Call{Method: "get"})
	assert.ErrorContains(t, err, "expected 2 results, got 1")
}

func TestCaller_Clause(t *testing.T) {
	_, caller := newCounter(t)

	clause, err := caller.ClauseWithValue(big.NewInt(9), "add", big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, caller.Address(), *clause.To)
	assert.Equal(t, big.NewInt(9), (*big.Int)(clause.Value))

	data, err := hexutil.Decode(clause.Data)
	require.NoError(t, err)
	assert.Equal(t, caller.ABI().Methods["add"].ID, data[:4])

	clause, err = caller.Clause("get")
	require.NoError(t, err)
	assert.Equal(t, 0, (*big.Int)(clause.Value).Sign())
}

func TestCaller_RevisionCopies(t *testing.T) {
	_, caller := newCounter(t)

	pinned := caller.Revision("5")
	assert.NotSame(t, caller, pinned)
	assert.Equal(t, caller.Address(), pinned.Address())
	assert.Same(t, caller.Client(), pinned.Client())
}
