// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package thor

import "fmt"

// Network identifies one of the public networks the staking client can follow.
// It is selected once at startup and never changes afterwards.
type Network struct {
	Name        string // main|test
	ChainTag    byte   // last byte of the genesis block id
	DisplayName string
}

var (
	MainNet = &Network{Name: "main", ChainTag: 0x4a, DisplayName: "MainNet"}
	TestNet = &Network{Name: "test", ChainTag: 0x27, DisplayName: "TestNet"}
)

// ParseNetwork returns the network registered under name.
func ParseNetwork(name string) (*Network, error) {
	switch name {
	case MainNet.Name, "mainnet":
		return MainNet, nil
	case TestNet.Name, "testnet":
		return TestNet, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", name)
	}
}

// NetworkByChainTag returns the network with the given chain tag, or nil.
func NetworkByChainTag(tag byte) *Network {
	switch tag {
	case MainNet.ChainTag:
		return MainNet
	case TestNet.ChainTag:
		return TestNet
	}
	return nil
}

func (n *Network) String() string {
	return n.Name
}
