// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package contracts binds the liquid staking contracts: the treasury, the
// parent contract that routes owners to their wallets, and the per-owner wallet.
package contracts

import (
	_ "embed"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient/bind"
)

var (
	//go:embed abi/Treasury.abi
	treasuryABIData []byte
	//go:embed abi/Parent.abi
	parentABIData []byte
	//go:embed abi/Wallet.abi
	walletABIData []byte

	TreasuryABI = mustParseABI(treasuryABIData)
	ParentABI   = mustParseABI(parentABIData)
	WalletABI   = mustParseABI(walletABIData)
)

// ErrNotDeployed is returned when a contract has no code at the requested revision.
var ErrNotDeployed = errors.New("contract not deployed")

func mustParseABI(data []byte) *abi.ABI {
	parsed, err := bind.ParseABI(data)
	if err != nil {
		panic(err)
	}
	return parsed
}

type ParticipationState uint8

const (
	Open ParticipationState = iota
	Distributing
	Staked
	Validating
	Held
	Recovering
	Burning
)

func (s ParticipationState) String() string {
	switch s {
	case Open:
		return "open"
	case Distributing:
		return "distributing"
	case Staked:
		return "staked"
	case Validating:
		return "validating"
	case Held:
		return "held"
	case Recovering:
		return "recovering"
	case Burning:
		return "burning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s ParticipationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Participation is one staking round, keyed by its round timestamp.
type Participation struct {
	Round          uint32             `json:"round"`
	State          ParticipationState `json:"state"`
	StakeHeldUntil uint32             `json:"stakeHeldUntil"`
}

// TreasuryState is the aggregate protocol state read from the treasury.
type TreasuryState struct {
	TotalCoins     *big.Int        `json:"totalCoins"`
	TotalTokens    *big.Int        `json:"totalTokens"`
	TotalStaking   *big.Int        `json:"totalStaking"`
	TotalUnstaking *big.Int        `json:"totalUnstaking"`
	LastStaked     *big.Int        `json:"lastStaked"`
	LastRecovered  *big.Int        `json:"lastRecovered"`
	Parent         thor.Address    `json:"parent"`
	Participations []Participation `json:"participations"`
}

// RoutingContract returns the parent contract address, false when none is set.
func (t *TreasuryState) RoutingContract() (thor.Address, bool) {
	if t == nil || t.Parent.IsZero() {
		return thor.Address{}, false
	}
	return t.Parent, true
}

// Participation looks up the participation of the given round.
func (t *TreasuryState) Participation(round uint32) (Participation, bool) {
	for _, p := range t.Participations {
		if p.Round == round {
			return p, true
		}
	}
	return Participation{}, false
}

// WalletState is the per-owner state held by a wallet contract.
type WalletState struct {
	Tokens    *big.Int            `json:"tokens"`
	Unstaking *big.Int            `json:"unstaking"`
	Staking   map[uint32]*big.Int `json:"staking"`
}

// Times are the round timing parameters, unix seconds.
type Times struct {
	CurrentRoundSince uint32 `json:"currentRoundSince"`
	NextRoundSince    uint32 `json:"nextRoundSince"`
	ParticipateSince  uint32 `json:"participateSince"`
	ParticipateUntil  uint32 `json:"participateUntil"`
	StakeHeldFor      uint32 `json:"stakeHeldFor"`
}
