// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"math/big"
	mathrand "math/rand"

	fuzz "github.com/google/gofuzz"
)

func RandIntN(n int) int {
	return mathrand.Intn(n) //#nosec G404
}

// RandAmount returns a random amount below max.
func RandAmount(max *big.Int) *big.Int {
	if max.Sign() <= 0 {
		return new(big.Int)
	}
	v := new(big.Int).SetUint64(mathrand.Uint64()) //#nosec G404
	return v.Mod(v, max)
}

// RandBlockSequence returns n block numbers drifting around start, going
// backwards now and then the way a lagging node would answer.
func RandBlockSequence(start uint32, n int) []uint32 {
	f := fuzz.New().NilChance(0)
	seq := make([]uint32, n)
	cur := start
	for i := range seq {
		var step int8
		f.Fuzz(&step)
		next := int64(cur) + int64(step%4)
		if next < 0 {
			next = 0
		}
		cur = uint32(next)
		seq[i] = cur
	}
	return seq
}
