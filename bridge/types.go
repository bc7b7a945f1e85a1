// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bridge

import (
	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient/common"
)

// Request asks the connected wallet to sign and send messages.
type Request struct {
	ID         string          `json:"id"`
	ValidUntil int64           `json:"validUntil"` // unix seconds
	Network    string          `json:"network"`
	ChainTag   byte            `json:"chainTag"`
	From       thor.Address    `json:"from"`
	Messages   []common.Clause `json:"messages"`
}

// Receipt is returned once the wallet accepted a request.
type Receipt struct {
	ID   string       `json:"id"`
	TxID thor.Bytes32 `json:"txid"`
}

// Status is one connection status event. Address is nil once disconnected.
type Status struct {
	Address      *thor.Address `json:"address,omitempty"`
	ChainTag     byte          `json:"chainTag,omitempty"`
	Disconnected bool          `json:"disconnected,omitempty"`
}

// EventWrapper is used to return errors from the websocket alongside the data
type EventWrapper[T any] struct {
	Data  T
	Error error
}

type errorResponse struct {
	Error string `json:"error"`
}

type connectResponse struct {
	Link string `json:"link"`
}
