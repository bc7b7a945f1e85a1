// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package thorclient is a revision aware client for a Thor REST node.
package thorclient

import (
	"context"
	"math/big"
	"net/http"
	"strconv"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient/common"
	"github.com/vechain/stakesync/thorclient/httpclient"
)

type Client struct {
	httpConn *httpclient.Client
}

func New(url string) *Client {
	return &Client{
		httpConn: httpclient.New(url),
	}
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		httpConn: httpclient.NewWithHTTP(url, c),
	}
}

type Option func(*getOptions)

type getOptions struct {
	revision string
}

func applyOptions(opts []Option) *getOptions {
	options := &getOptions{
		revision: common.BestRevision,
	}
	for _, o := range opts {
		o(options)
	}
	return options
}

// Revision pins a read to a block revision (number, id, best or finalized).
func Revision(revision string) Option {
	return func(o *getOptions) {
		o.revision = revision
	}
}

// AtBlock pins a read to a block number.
func AtBlock(number uint32) Option {
	return Revision(BlockRevision(number))
}

// BlockRevision formats a block number as a revision.
func BlockRevision(number uint32) string {
	return strconv.FormatUint(uint64(number), 10)
}

func (c *Client) URL() string {
	return c.httpConn.URL()
}

func (c *Client) RawHTTPClient() *httpclient.Client {
	return c.httpConn
}

// Block returns the block at revision.
func (c *Client) Block(ctx context.Context, revision string) (*common.Block, error) {
	return c.httpConn.GetBlock(ctx, revision)
}

// BestBlockNumber returns the number of the best block.
func (c *Client) BestBlockNumber(ctx context.Context) (uint32, error) {
	b, err := c.httpConn.GetBlock(ctx, common.BestRevision)
	if err != nil {
		return 0, err
	}
	return b.Number, nil
}

func (c *Client) Account(ctx context.Context, addr thor.Address, opts ...Option) (*common.Account, error) {
	options := applyOptions(opts)
	return c.httpConn.GetAccount(ctx, addr, options.revision)
}

// Balance returns the VET balance of addr.
func (c *Client) Balance(ctx context.Context, addr thor.Address, opts ...Option) (*big.Int, error) {
	acc, err := c.Account(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return acc.BalanceInt(), nil
}

func (c *Client) InspectClauses(ctx context.Context, calldata *common.BatchCallData, opts ...Option) ([]*common.CallResult, error) {
	options := applyOptions(opts)
	return c.httpConn.InspectClauses(ctx, calldata, options.revision)
}
