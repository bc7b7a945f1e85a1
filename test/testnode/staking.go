// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testnode

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/thor"
)

// Staking fakes the treasury, parent and wallet contracts on a Node.
type Staking struct {
	node     *Node
	Treasury thor.Address

	mu       sync.Mutex
	state    contracts.TreasuryState
	times    contracts.Times
	wallets  map[thor.Address]thor.Address
	states   map[thor.Address]*contracts.WalletState
	timesErr error
}

// DeployStaking installs a treasury at addr with an empty state and no parent.
func (n *Node) DeployStaking(addr thor.Address) *Staking {
	s := &Staking{
		node:     n,
		Treasury: addr,
		state: contracts.TreasuryState{
			TotalCoins:     new(big.Int),
			TotalTokens:    new(big.Int),
			TotalStaking:   new(big.Int),
			TotalUnstaking: new(big.Int),
			LastStaked:     new(big.Int),
			LastRecovered:  new(big.Int),
		},
		wallets: make(map[thor.Address]thor.Address),
		states:  make(map[thor.Address]*contracts.WalletState),
	}
	n.Deploy(addr, contracts.TreasuryABI, map[string]Method{
		"getTreasuryState":  s.getTreasuryState,
		"getParticipations": s.getParticipations,
		"getTimes":          s.getTimes,
	})
	return s
}

// SetTreasury replaces the treasury state. Nil amounts read as zero.
func (s *Staking) SetTreasury(st contracts.TreasuryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range []**big.Int{&st.TotalCoins, &st.TotalTokens, &st.TotalStaking, &st.TotalUnstaking, &st.LastStaked, &st.LastRecovered} {
		if *v == nil {
			*v = new(big.Int)
		}
	}
	s.state = st
}

// SetParent deploys the routing contract at addr and reports it from the treasury.
func (s *Staking) SetParent(addr thor.Address) {
	s.mu.Lock()
	s.state.Parent = addr
	s.mu.Unlock()

	s.node.Deploy(addr, contracts.ParentABI, map[string]Method{
		"getWalletAddress": s.getWalletAddress,
	})
}

// SetWallet routes owner to wallet. A nil state leaves the wallet undeployed.
func (s *Staking) SetWallet(owner, wallet thor.Address, state *contracts.WalletState) {
	s.mu.Lock()
	s.wallets[owner] = wallet
	s.states[wallet] = state
	s.mu.Unlock()

	if state != nil {
		s.node.Deploy(wallet, contracts.WalletABI, map[string]Method{
			"getWalletState": func(string, []any) ([]any, error) { return s.getWalletState(wallet) },
		})
	}
}

func (s *Staking) SetTimes(t contracts.Times) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = t
}

// FailTimes makes getTimes revert until cleared with nil.
func (s *Staking) FailTimes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timesErr = err
}

func (s *Staking) getTreasuryState(string, []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	return []any{st.TotalCoins, st.TotalTokens, st.TotalStaking, st.TotalUnstaking, st.Parent.Common(), st.LastStaked, st.LastRecovered}, nil
}

func (s *Staking) getParticipations(string, []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds := make([]uint32, 0, len(s.state.Participations))
	states := make([]uint8, 0, len(s.state.Participations))
	until := make([]uint32, 0, len(s.state.Participations))
	for _, p := range s.state.Participations {
		rounds = append(rounds, p.Round)
		states = append(states, uint8(p.State))
		until = append(until, p.StakeHeldUntil)
	}
	return []any{rounds, states, until}, nil
}

func (s *Staking) getTimes(string, []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timesErr != nil {
		return nil, s.timesErr
	}
	t := s.times
	return []any{t.CurrentRoundSince, t.NextRoundSince, t.ParticipateSince, t.ParticipateUntil, t.StakeHeldFor}, nil
}

func (s *Staking) getWalletAddress(_ string, args []any) ([]any, error) {
	if len(args) != 1 {
		return nil, errors.New("bad arguments")
	}
	owner := thor.Address(args[0].(common.Address))

	s.mu.Lock()
	defer s.mu.Unlock()
	return []any{s.wallets[owner].Common()}, nil
}

func (s *Staking) getWalletState(wallet thor.Address) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[wallet]
	if st == nil {
		return nil, errors.New("no wallet")
	}
	rounds := make([]uint32, 0, len(st.Staking))
	for round := range st.Staking {
		rounds = append(rounds, round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })
	amounts := make([]*big.Int, 0, len(rounds))
	for _, round := range rounds {
		amounts = append(amounts, st.Staking[round])
	}
	return []any{nilToZero(st.Tokens), nilToZero(st.Unstaking), rounds, amounts}, nil
}

func nilToZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
