// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient"
	tccommon "github.com/vechain/stakesync/thorclient/common"
	"github.com/vechain/stakesync/thorclient/bind"
)

// Parent routes an owner address to its wallet contract.
type Parent struct {
	caller   *bind.Caller
	revision string
}

func NewParent(client *thorclient.Client, address thor.Address) *Parent {
	return &Parent{
		caller:   bind.NewCallerWithABI(client, ParentABI, address),
		revision: tccommon.BestRevision,
	}
}

func (p *Parent) Revision(rev string) *Parent {
	return &Parent{
		caller:   p.caller,
		revision: rev,
	}
}

// WalletAddress returns the wallet contract address of owner. The address is
// deterministic, the wallet itself may not be deployed yet.
func (p *Parent) WalletAddress(ctx context.Context, owner thor.Address) (thor.Address, error) {
	out, err := p.caller.Revision(p.revision).Call(ctx, "getWalletAddress", owner.Common())
	if err != nil {
		return thor.Address{}, err
	}
	if len(out) != 1 {
		return thor.Address{}, fmt.Errorf("unexpected wallet address output: %d", len(out))
	}
	addr := thor.Address(out[0].(common.Address))
	if addr.IsZero() {
		return thor.Address{}, ErrNotDeployed
	}
	return addr, nil
}

type Wallet struct {
	caller   *bind.Caller
	revision string
}

func NewWallet(client *thorclient.Client, address thor.Address) *Wallet {
	return &Wallet{
		caller:   bind.NewCallerWithABI(client, WalletABI, address),
		revision: tccommon.BestRevision,
	}
}

func (w *Wallet) Revision(rev string) *Wallet {
	return &Wallet{
		caller:   w.caller,
		revision: rev,
	}
}

func (w *Wallet) Address() thor.Address {
	return w.caller.Address()
}

// State reads the wallet state, ErrNotDeployed when the wallet has no code yet.
func (w *Wallet) State(ctx context.Context) (*WalletState, error) {
	acc, err := w.caller.Client().Account(ctx, w.Address(), thorclient.Revision(w.revision))
	if err != nil {
		return nil, err
	}
	if !acc.HasCode {
		return nil, ErrNotDeployed
	}

	out, err := w.caller.Revision(w.revision).Call(ctx, "getWalletState")
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected wallet output: %d", len(out))
	}

	rounds := out[2].([]uint32)
	amounts := out[3].([]*big.Int)
	if len(rounds) != len(amounts) {
		return nil, fmt.Errorf("staking arrays differ in length: %d, %d", len(rounds), len(amounts))
	}
	state := &WalletState{
		Tokens:    out[0].(*big.Int),
		Unstaking: out[1].(*big.Int),
		Staking:   make(map[uint32]*big.Int, len(rounds)),
	}
	for i, round := range rounds {
		state.Staking[round] = amounts[i]
	}
	return state, nil
}

// UnstakeMessage builds the clause burning amount tokens held by wallet.
func UnstakeMessage(wallet thor.Address, amount *big.Int) (*tccommon.Clause, error) {
	return bind.NewCallerWithABI(nil, WalletABI, wallet).Clause("unstake", amount)
}
