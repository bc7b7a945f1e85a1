// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package common holds the wire types of the Thor REST API that the client consumes.
package common

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/stakesync/thor"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNot200Status = errors.New("not 200 status code")
)

const (
	BestRevision      = "best"
	FinalizedRevision = "finalized"
)

// Block is the subset of a collapsed block the client reads.
type Block struct {
	Number    uint32       `json:"number"`
	ID        thor.Bytes32 `json:"id"`
	Timestamp uint64       `json:"timestamp"`
}

// Account is the state of an account at some revision.
type Account struct {
	Balance *math.HexOrDecimal256 `json:"balance"`
	Energy  *math.HexOrDecimal256 `json:"energy"`
	HasCode bool                  `json:"hasCode"`
}

// BalanceInt returns the balance, zero when missing.
func (a *Account) BalanceInt() *big.Int {
	if a.Balance == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(a.Balance))
}

// Clause is one contract call, either simulated or carried by a transaction.
type Clause struct {
	To    *thor.Address         `json:"to"`
	Value *math.HexOrDecimal256 `json:"value"`
	Data  string                `json:"data"`
}

// BatchCallData is the body of a clause inspection request.
type BatchCallData struct {
	Clauses []Clause      `json:"clauses"`
	Gas     uint64        `json:"gas,omitempty"`
	Caller  *thor.Address `json:"caller,omitempty"`
}

// CallResult is the outcome of one inspected clause.
type CallResult struct {
	Data     string `json:"data"`
	GasUsed  uint64 `json:"gasUsed"`
	Reverted bool   `json:"reverted"`
	VMError  string `json:"vmError"`
}
