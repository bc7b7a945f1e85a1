// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package model

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vechain/stakesync/amount"
	"github.com/vechain/stakesync/contracts"
)

const (
	CoinSymbol  = "VET"
	TokenSymbol = "hVET"

	// completion estimates trail the round hold time by this margin
	estimateMargin = 5 * time.Minute
	year           = 365 * 24 * time.Hour
)

// StakeReserve is kept out of the stakeable balance.
var StakeReserve = amount.Coins(1)

func (s *State) Connected() bool {
	return s.Address.Present()
}

// MaxAmount is the largest amount the active action accepts.
func (s *State) MaxAmount() *big.Int {
	if s.Action == Unstake {
		if w, ok := s.Wallet.Get(); ok && w.Tokens != nil {
			return new(big.Int).Set(w.Tokens)
		}
		return new(big.Int)
	}
	balance := s.Balance.OrElse(new(big.Int))
	limit := new(big.Int).Sub(balance, StakeReserve)
	if limit.Sign() < 0 {
		return new(big.Int)
	}
	return limit
}

// Amount parses the amount input.
func (s *State) Amount() (*big.Int, bool) {
	v, err := amount.Parse(s.AmountInput)
	if err != nil {
		return nil, false
	}
	return v, true
}

// AmountValid reports whether the input parses, is not negative and, once the
// balance is known, does not exceed MaxAmount.
func (s *State) AmountValid() bool {
	v, ok := s.Amount()
	if !ok || v.Sign() < 0 {
		return false
	}
	return !s.Balance.Present() || v.Cmp(s.MaxAmount()) <= 0
}

func (s *State) AmountPositive() bool {
	v, ok := s.Amount()
	return ok && v.Sign() > 0
}

// ButtonEnabled is always true without a wallet, the button then connects one.
func (s *State) ButtonEnabled() bool {
	if !s.Connected() {
		return true
	}
	haveBalance := s.Balance.Present()
	if s.Action == Unstake {
		w, ok := s.Wallet.Get()
		haveBalance = ok && w.Tokens != nil
	}
	return s.AmountValid() && s.AmountPositive() && haveBalance
}

func (s *State) ButtonLabel() string {
	switch {
	case !s.Connected():
		return "Connect Wallet"
	case s.Action == Unstake:
		return "Unstake"
	default:
		return "Stake"
	}
}

// ExchangeRate converts the input amount into the output of the active
// action: tokens per coin when staking, coins per token when unstaking.
func (s *State) ExchangeRate() (float64, bool) {
	t, ok := s.Treasury.Get()
	if !ok {
		return 0, false
	}
	if s.Action == Unstake {
		return ratio(t.TotalCoins, t.TotalTokens), true
	}
	return ratio(t.TotalTokens, t.TotalCoins), true
}

// ExchangeRateText renders the price of one token in coins.
func (s *State) ExchangeRateText() string {
	t, ok := s.Treasury.Get()
	if !ok {
		return ""
	}
	rate := ratio(t.TotalCoins, t.TotalTokens)
	return "1 " + TokenSymbol + " = ~ " + formatFloat(rate, 4) + " " + CoinSymbol
}

// APY compounds the yield of the last recovered round over a year.
func (s *State) APY() (float64, bool) {
	times, ok := s.Times.Get()
	if !ok {
		return 0, false
	}
	t, ok := s.Treasury.Get()
	if !ok || t.LastStaked == nil || t.LastRecovered == nil {
		return 0, false
	}
	duration := 2 * (int64(times.NextRoundSince) - int64(times.CurrentRoundSince))
	if duration <= 0 {
		return 0, false
	}
	frequency := year.Seconds() / float64(duration)
	return math.Pow(ratio(t.LastRecovered, t.LastStaked), frequency) - 1, true
}

// YouWillReceive estimates the output of the input amount, the bare unit when
// the input is not usable.
func (s *State) YouWillReceive() string {
	rate, ok := s.ExchangeRate()
	if !ok {
		return ""
	}
	unit := TokenSymbol
	if s.Action == Unstake {
		unit = CoinSymbol
	}
	v, ok := s.Amount()
	if !ok || !s.AmountValid() || !s.AmountPositive() {
		return unit
	}
	return "~ " + formatFloat(amount.Float(v)*rate, 2) + " " + unit
}

// InProgress is an amount still moving through a round.
type InProgress struct {
	Round     uint32     `json:"round,omitempty"`
	Amount    string     `json:"amount"`
	Estimated *time.Time `json:"estimated,omitempty"`
}

// StakingInProgress lists the per-round deposits not yet staked, oldest first.
func (s *State) StakingInProgress() []InProgress {
	w, ok := s.Wallet.Get()
	if !ok {
		return nil
	}
	rounds := make([]uint32, 0, len(w.Staking))
	for round := range w.Staking {
		rounds = append(rounds, round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })

	t, _ := s.Treasury.Get()
	out := make([]InProgress, 0, len(rounds))
	for _, round := range rounds {
		item := InProgress{Round: round, Amount: formatCoins(w.Staking[round], CoinSymbol)}
		if t != nil {
			if p, ok := t.Participation(round); ok && p.StakeHeldUntil != 0 {
				item.Estimated = estimate(p.StakeHeldUntil)
			}
		}
		out = append(out, item)
	}
	return out
}

// StakingTotal sums the deposits of StakingInProgress.
func (s *State) StakingTotal() *big.Int {
	total := new(big.Int)
	if w, ok := s.Wallet.Get(); ok {
		for _, v := range w.Staking {
			total.Add(total, v)
		}
	}
	return total
}

// UnstakingInProgress reports the pending unstake. It completes with the
// oldest participation once that one is staked.
func (s *State) UnstakingInProgress() (InProgress, bool) {
	w, ok := s.Wallet.Get()
	if !ok || w.Unstaking == nil || w.Unstaking.Sign() == 0 {
		return InProgress{}, false
	}
	t, ok := s.Treasury.Get()
	if !ok {
		return InProgress{}, false
	}
	item := InProgress{Amount: formatCoins(w.Unstaking, TokenSymbol)}
	if first, ok := oldestParticipation(t.Participations); ok && first.State >= contracts.Staked {
		item.Estimated = estimate(first.StakeHeldUntil)
	}
	return item, true
}

// oldestParticipation returns the participation of the lowest round.
func oldestParticipation(parts []contracts.Participation) (contracts.Participation, bool) {
	if len(parts) == 0 {
		return contracts.Participation{}, false
	}
	oldest := parts[0]
	for _, p := range parts[1:] {
		if p.Round < oldest.Round {
			oldest = p
		}
	}
	return oldest, true
}

func estimate(heldUntil uint32) *time.Time {
	at := time.Unix(int64(heldUntil), 0).Add(estimateMargin).UTC()
	return &at
}

// ratio divides a by b, 1 when the result is not a finite positive number.
func ratio(a, b *big.Int) float64 {
	fa, fb := amount.Float(a), amount.Float(b)
	r := fa / fb
	if math.IsNaN(r) || math.IsInf(r, 0) || r == 0 {
		return 1
	}
	return r
}

func formatFloat(f float64, digits int) string {
	s := strconv.FormatFloat(f, 'f', digits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func formatCoins(v *big.Int, symbol string) string {
	if v == nil {
		v = new(big.Int)
	}
	return amount.Format(v, 2) + " " + symbol
}

// View is the state plus every derived field the presentation layer shows.
type View struct {
	State

	Connected         bool         `json:"connected"`
	BalanceText       string       `json:"balanceFormatted,omitempty"`
	TokenBalanceText  string       `json:"tokenBalanceFormatted,omitempty"`
	MaxAmount         string       `json:"maxAmount"`
	AmountValid       bool         `json:"amountValid"`
	AmountPositive    bool         `json:"amountPositive"`
	ButtonEnabled     bool         `json:"buttonEnabled"`
	ButtonLabel       string       `json:"buttonLabel"`
	ExchangeRate      *float64     `json:"exchangeRate,omitempty"`
	ExchangeRateText  string       `json:"exchangeRateText,omitempty"`
	APY               *float64     `json:"apy,omitempty"`
	APYText           string       `json:"apyText,omitempty"`
	CurrentlyStaked   string       `json:"currentlyStaked,omitempty"`
	YouWillReceive    string       `json:"youWillReceive,omitempty"`
	StakingTotal      string       `json:"stakingTotal"`
	StakingInProgress []InProgress `json:"stakingInProgress"`
	Unstaking         *InProgress  `json:"unstakingInProgress,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	Requests          int64        `json:"requests"`
}

// NewView derives every display field from st.
func NewView(st State) *View {
	v := &View{
		State:             st,
		Connected:         st.Connected(),
		MaxAmount:         amount.FormatExact(st.MaxAmount()),
		AmountValid:       st.AmountValid(),
		AmountPositive:    st.AmountPositive(),
		ButtonEnabled:     st.ButtonEnabled(),
		ButtonLabel:       st.ButtonLabel(),
		ExchangeRateText:  st.ExchangeRateText(),
		YouWillReceive:    st.YouWillReceive(),
		StakingTotal:      formatCoins(st.StakingTotal(), CoinSymbol),
		StakingInProgress: st.StakingInProgress(),
	}
	if balance, ok := st.Balance.Get(); ok {
		v.BalanceText = formatCoins(balance, CoinSymbol)
		tokens := new(big.Int)
		if w, ok := st.Wallet.Get(); ok && w.Tokens != nil {
			tokens = w.Tokens
		}
		v.TokenBalanceText = formatCoins(tokens, TokenSymbol)
	}
	if rate, ok := st.ExchangeRate(); ok {
		v.ExchangeRate = &rate
	}
	if apy, ok := st.APY(); ok {
		v.APY = &apy
		v.APYText = formatFloat(apy*100, 2) + "%"
	}
	if t, ok := st.Treasury.Get(); ok && t.TotalCoins != nil {
		v.CurrentlyStaked = amount.Format(t.TotalCoins, 0) + " " + CoinSymbol
	}
	if u, ok := st.UnstakingInProgress(); ok {
		v.Unstaking = &u
	}
	return v
}
