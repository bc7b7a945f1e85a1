// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package endpoint acquires a working Thor node for the selected network and
// exposes it as a Handle to the sync loops.
package endpoint

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient"
)

// Handle performs the reads the sync loops need against one node. Reads taking
// a block number are pinned to that block.
type Handle interface {
	URL() string
	BestBlock(ctx context.Context) (uint32, error)
	Balance(ctx context.Context, block uint32, addr thor.Address) (*big.Int, error)
	Treasury(ctx context.Context, block uint32) (*contracts.TreasuryState, error)
	Times(ctx context.Context) (*contracts.Times, error)
	WalletAddress(ctx context.Context, block uint32, routing, owner thor.Address) (thor.Address, error)
	Wallet(ctx context.Context, block uint32, wallet thor.Address) (*contracts.WalletState, error)
}

// Dialer turns a node URL into a Handle.
type Dialer func(url string) Handle

// NodeDialer dials Thor REST nodes reading the treasury at the given address.
func NodeDialer(treasury thor.Address) Dialer {
	return func(url string) Handle {
		return NewNode(url, treasury)
	}
}

// requestTimeout bounds a single request to a node.
const requestTimeout = 10 * time.Second

// Node is the Handle of a Thor REST node.
type Node struct {
	client   *thorclient.Client
	treasury *contracts.Treasury
}

var _ Handle = (*Node)(nil)

func NewNode(url string, treasury thor.Address) *Node {
	client := thorclient.NewWithHTTP(url, &http.Client{Timeout: requestTimeout})
	return &Node{
		client:   client,
		treasury: contracts.NewTreasury(client, treasury),
	}
}

func (n *Node) URL() string {
	return n.client.URL()
}

func (n *Node) BestBlock(ctx context.Context) (uint32, error) {
	return n.client.BestBlockNumber(ctx)
}

func (n *Node) Balance(ctx context.Context, block uint32, addr thor.Address) (*big.Int, error) {
	return n.client.Balance(ctx, addr, thorclient.AtBlock(block))
}

func (n *Node) Treasury(ctx context.Context, block uint32) (*contracts.TreasuryState, error) {
	return n.treasury.Revision(thorclient.BlockRevision(block)).State(ctx)
}

// Times reads at the best block, round timings are not tied to the snapshot.
func (n *Node) Times(ctx context.Context) (*contracts.Times, error) {
	return n.treasury.Times(ctx)
}

func (n *Node) WalletAddress(ctx context.Context, block uint32, routing, owner thor.Address) (thor.Address, error) {
	return contracts.NewParent(n.client, routing).Revision(thorclient.BlockRevision(block)).WalletAddress(ctx, owner)
}

func (n *Node) Wallet(ctx context.Context, block uint32, wallet thor.Address) (*contracts.WalletState, error) {
	return contracts.NewWallet(n.client, wallet).Revision(thorclient.BlockRevision(block)).State(ctx)
}
