// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bind calls ABI described contracts through clause inspection.
package bind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient"
	"github.com/vechain/stakesync/thorclient/common"
)

var (
	ErrReverted = errors.New("contract call reverted")
	ErrVM       = errors.New("vm error")
)

// ParseABI parses a JSON ABI definition.
func ParseABI(abiData []byte) (*abi.ABI, error) {
	contractABI, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return nil, err
	}
	return &contractABI, nil
}

// Caller is a generic contract wrapper for read-only calls and clause building.
type Caller struct {
	client *thorclient.Client
	abi    *abi.ABI
	addr   thor.Address
	rev    string
}

func NewCaller(client *thorclient.Client, abiData []byte, address thor.Address) (*Caller, error) {
	contractABI, err := ParseABI(abiData)
	if err != nil {
		return nil, err
	}
	return NewCallerWithABI(client, contractABI, address), nil
}

func NewCallerWithABI(client *thorclient.Client, contractABI *abi.ABI, address thor.Address) *Caller {
	return &Caller{
		client: client,
		abi:    contractABI,
		addr:   address,
		rev:    common.BestRevision,
	}
}

func (c *Caller) Address() thor.Address {
	return c.addr
}

func (c *Caller) ABI() *abi.ABI {
	return c.abi
}

// Client returns the underlying client.
func (c *Caller) Client() *thorclient.Client {
	return c.client
}

// Revision returns a copy reading at rev. Allows querying historical states.
func (c *Caller) Revision(rev string) *Caller {
	cpy := *c
	cpy.rev = rev
	return &cpy
}

// At returns a copy bound to another deployment of the same contract.
func (c *Caller) At(address thor.Address) *Caller {
	cpy := *c
	cpy.addr = address
	return &cpy
}

// Call is one method invocation inside a batch.
type Call struct {
	Method string
	Args   []any
}

// Call invokes one method and returns its unpacked outputs.
func (c *Caller) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	out, err := c.Batch(ctx, Call{Method: method, Args: args})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Batch invokes several methods of the contract in a single inspection
// request, so all outputs are read from the same state.
func (c *Caller) Batch(ctx context.Context, calls ...Call) ([][]any, error) {
	body := &common.BatchCallData{Clauses: make([]common.Clause, 0, len(calls))}
	for _, call := range calls {
		clause, err := c.Clause(call.Method, call.Args...)
		if err != nil {
			return nil, err
		}
		body.Clauses = append(body.Clauses, *clause)
	}

	res, err := c.client.InspectClauses(ctx, body, thorclient.Revision(c.rev))
	if err != nil {
		return nil, err
	}
	if len(res) != len(calls) {
		return nil, fmt.Errorf("expected %d results, got %d", len(calls), len(res))
	}

	outputs := make([][]any, 0, len(calls))
	for i, r := range res {
		if err := checkResult(r); err != nil {
			return nil, fmt.Errorf("%s: %w", calls[i].Method, err)
		}
		data, err := hexutil.Decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to decode output: %w", calls[i].Method, err)
		}
		out, err := c.abi.Unpack(calls[i].Method, data)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to unpack output: %w", calls[i].Method, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func checkResult(r *common.CallResult) error {
	if r.Reverted {
		if r.Data != "" && r.Data != "0x" {
			if decoded, err := hexutil.Decode(r.Data); err == nil {
				if reason, err := abi.UnpackRevert(decoded); err == nil {
					return fmt.Errorf("%w: %s", ErrReverted, reason)
				}
			}
		}
		return ErrReverted
	}
	if r.VMError != "" {
		return fmt.Errorf("%w: %s", ErrVM, r.VMError)
	}
	return nil
}

// Clause packs a call to method with no value attached.
func (c *Caller) Clause(method string, args ...any) (*common.Clause, error) {
	return c.ClauseWithValue(nil, method, args...)
}

// ClauseWithValue packs a call to method transferring value wei of VET.
func (c *Caller) ClauseWithValue(value *big.Int, method string, args ...any) (*common.Clause, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method (%s): %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	to := c.addr
	return &common.Clause{
		To:    &to,
		Value: (*math.HexOrDecimal256)(new(big.Int).Set(value)),
		Data:  hexutil.Encode(data),
	}, nil
}
