// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package model owns the shared state of the staking client. All writes go
// through Model under one lock and every change is broadcast to observers.
package model

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/vechain/stakesync/amount"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/thor"
)

var (
	// ErrStaleCommit is returned when a snapshot is older than the committed one.
	ErrStaleCommit = errors.New("snapshot older than committed block")
	// ErrAddressChanged is returned when the tracked address changed while the snapshot was fetched.
	ErrAddressChanged = errors.New("tracked address changed")
)

type Action string

const (
	Stake   Action = "stake"
	Unstake Action = "unstake"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case Stake, Unstake:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// WaitState tracks a submitted transaction until the user acknowledges it.
type WaitState int

const (
	Idle WaitState = iota
	AwaitingConfirmation
	TimedOut
	Confirmed
)

func (w WaitState) String() string {
	switch w {
	case Idle:
		return "idle"
	case AwaitingConfirmation:
		return "awaiting"
	case TimedOut:
		return "timeout"
	case Confirmed:
		return "confirmed"
	}
	return "unknown"
}

func (w WaitState) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// Snapshot is the account and contract state read at one block.
type Snapshot struct {
	Block         uint32                          `json:"block"`
	Balance       Maybe[*big.Int]                 `json:"balance"`
	Treasury      Maybe[*contracts.TreasuryState] `json:"treasury"`
	WalletAddress Maybe[thor.Address]             `json:"walletAddress"`
	Wallet        Maybe[*contracts.WalletState]   `json:"wallet"`
}

// State is a copy of everything the model holds. Pointed-to values are never
// mutated after being stored, so copies are safe to share.
type State struct {
	Snapshot

	Network     *thor.Network           `json:"network"`
	Address     Maybe[thor.Address]     `json:"address"`
	Times       Maybe[*contracts.Times] `json:"times"`
	Action      Action                  `json:"action"`
	AmountInput string                  `json:"amount"`
	Wait        WaitState               `json:"wait"`
	CommittedAt time.Time               `json:"committedAt,omitzero"`
}

type Model struct {
	mu      sync.Mutex
	st      State
	addrGen uint64

	changed     co.Signal
	addrChanged co.Signal
}

func New(network *thor.Network) *Model {
	return &Model{
		st: State{
			Network: network,
			Action:  Stake,
		},
	}
}

// State returns a copy of the current state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Changes notifies after any change.
func (m *Model) Changes() co.Waiter {
	return m.changed.NewWaiter()
}

// AddressChanges notifies after the tracked address changed.
func (m *Model) AddressChanges() co.Waiter {
	return m.addrChanged.NewWaiter()
}

// Tracked returns the tracked address and its generation. The generation
// must be passed to Commit.
func (m *Model) Tracked() (Maybe[thor.Address], uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Address, m.addrGen
}

// Read returns the state together with the address generation.
func (m *Model) Read() (State, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, m.addrGen
}

// SetAddress changes the tracked address and drops the account data of the
// previous one. The block cursor is kept.
func (m *Model) SetAddress(addr Maybe[thor.Address]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr == m.st.Address {
		return
	}
	m.addrGen++
	m.st.Address = addr
	m.st.Balance = None[*big.Int]()
	m.st.WalletAddress = None[thor.Address]()
	m.st.Wallet = None[*contracts.WalletState]()

	m.addrChanged.Broadcast()
	m.changed.Broadcast()
}

// Commit stores snap if it is not older than the committed snapshot and the
// tracked address did not change since gen was read.
func (m *Model) Commit(gen uint64, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.addrGen {
		return ErrAddressChanged
	}
	if snap.Block < m.st.Block {
		return ErrStaleCommit
	}
	m.st.Snapshot = snap
	m.st.CommittedAt = time.Now()
	m.changed.Broadcast()
	return nil
}

// Disconnect drops the account and contract fields, the cursor is kept.
func (m *Model) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.st.Snapshot
	if !s.Balance.Present() && !s.Treasury.Present() && !s.WalletAddress.Present() && !s.Wallet.Present() {
		return
	}
	m.st.Snapshot = Snapshot{Block: s.Block}
	m.changed.Broadcast()
}

func (m *Model) SetTimes(times Maybe[*contracts.Times]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.Times = times
	m.changed.Broadcast()
}

// SetAction switches the active action. The amount is cleared only when the
// action actually changes.
func (m *Model) SetAction(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st.Action == a {
		return
	}
	m.st.Action = a
	m.st.AmountInput = ""
	m.changed.Broadcast()
}

func (m *Model) SetAmountInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.AmountInput = text
	m.changed.Broadcast()
}

// SetAmountToMax fills the amount with the maximum of the active action.
func (m *Model) SetAmountToMax() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.AmountInput = amount.FormatExact(m.st.MaxAmount())
	m.changed.Broadcast()
}

func (m *Model) ClearAmount() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.AmountInput = ""
	m.changed.Broadcast()
}

// CompareAndSetWait moves the wait state from one value to another.
func (m *Model) CompareAndSetWait(from, to WaitState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st.Wait != from {
		return false
	}
	m.st.Wait = to
	m.changed.Broadcast()
	return true
}
