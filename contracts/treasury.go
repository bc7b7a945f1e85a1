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

type Treasury struct {
	caller   *bind.Caller
	revision string
}

func NewTreasury(client *thorclient.Client, address thor.Address) *Treasury {
	return &Treasury{
		caller:   bind.NewCallerWithABI(client, TreasuryABI, address),
		revision: tccommon.BestRevision,
	}
}

// Revision creates a new Treasury instance reading at the specified revision.
func (t *Treasury) Revision(rev string) *Treasury {
	return &Treasury{
		caller:   t.caller,
		revision: rev,
	}
}

func (t *Treasury) Address() thor.Address {
	return t.caller.Address()
}

// State reads the aggregate state and the participations in one inspection.
func (t *Treasury) State(ctx context.Context) (*TreasuryState, error) {
	out, err := t.caller.Revision(t.revision).Batch(ctx,
		bind.Call{Method: "getTreasuryState"},
		bind.Call{Method: "getParticipations"},
	)
	if err != nil {
		return nil, err
	}

	st, parts := out[0], out[1]
	if len(st) != 7 || len(parts) != 3 {
		return nil, fmt.Errorf("unexpected treasury output: %d, %d", len(st), len(parts))
	}

	state := &TreasuryState{
		TotalCoins:     st[0].(*big.Int),
		TotalTokens:    st[1].(*big.Int),
		TotalStaking:   st[2].(*big.Int),
		TotalUnstaking: st[3].(*big.Int),
		Parent:         thor.Address(st[4].(common.Address)),
		LastStaked:     st[5].(*big.Int),
		LastRecovered:  st[6].(*big.Int),
	}

	rounds := parts[0].([]uint32)
	states := parts[1].([]uint8)
	until := parts[2].([]uint32)
	if len(states) != len(rounds) || len(until) != len(rounds) {
		return nil, fmt.Errorf("participation arrays differ in length: %d, %d, %d", len(rounds), len(states), len(until))
	}
	state.Participations = make([]Participation, 0, len(rounds))
	for i, round := range rounds {
		state.Participations = append(state.Participations, Participation{
			Round:          round,
			State:          ParticipationState(states[i]),
			StakeHeldUntil: until[i],
		})
	}
	return state, nil
}

func (t *Treasury) Times(ctx context.Context) (*Times, error) {
	out, err := t.caller.Revision(t.revision).Call(ctx, "getTimes")
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("unexpected times output: %d", len(out))
	}
	return &Times{
		CurrentRoundSince: out[0].(uint32),
		NextRoundSince:    out[1].(uint32),
		ParticipateSince:  out[2].(uint32),
		ParticipateUntil:  out[3].(uint32),
		StakeHeldFor:      out[4].(uint32),
	}, nil
}

// DepositMessage builds the clause staking amount into treasury. A nil
// referrer deposits without one.
func DepositMessage(treasury thor.Address, amount *big.Int, referrer *thor.Address) (*tccommon.Clause, error) {
	var ref common.Address
	if referrer != nil {
		ref = referrer.Common()
	}
	return bind.NewCallerWithABI(nil, TreasuryABI, treasury).ClauseWithValue(amount, "deposit", ref)
}
