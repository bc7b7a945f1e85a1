// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package amount converts between user typed decimal text and 18-decimal
// base unit integers.
package amount

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Decimals is the number of fraction digits of VET and of the staking token.
const Decimals = 18

// ErrInvalid is returned for text that is not a decimal amount.
var ErrInvalid = errors.New("invalid amount")

// Unit is 10^Decimals, the number of base units in one coin.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Parse converts decimal text such as "10", "-1.5", "0.25", ".5" or "3." into
// base units. Surrounding spaces are ignored. Values must fit in 256 bits.
func Parse(text string) (*big.Int, error) {
	s := strings.TrimSpace(text)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, errors.Wrapf(ErrInvalid, "%q", text)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, errors.Wrapf(ErrInvalid, "%q", text)
	}
	if len(frac) > Decimals {
		return nil, errors.Wrapf(ErrInvalid, "%q has more than %d decimals", text, Decimals)
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", Decimals-len(frac)), "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%q: %v", text, err)
	}

	out := v.ToBig()
	if neg {
		out.Neg(out)
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Format renders v in coins with at most fractionDigits digits after the
// point. Extra digits are truncated and trailing zeros dropped.
func Format(v *big.Int, fractionDigits int) string {
	if v == nil {
		return ""
	}
	fractionDigits = min(max(fractionDigits, 0), Decimals)

	abs := new(big.Int).Abs(v)
	whole, frac := new(big.Int).QuoRem(abs, Unit, new(big.Int))

	fracText := frac.String()
	fracText = strings.Repeat("0", Decimals-len(fracText)) + fracText
	fracText = strings.TrimRight(fracText[:fractionDigits], "0")

	var b strings.Builder
	if v.Sign() < 0 && (whole.Sign() != 0 || fracText != "") {
		b.WriteByte('-')
	}
	b.WriteString(whole.String())
	if fracText != "" {
		b.WriteByte('.')
		b.WriteString(fracText)
	}
	return b.String()
}

// FormatExact renders v in coins without losing precision, the inverse of Parse.
func FormatExact(v *big.Int) string {
	return Format(v, Decimals)
}

// Coins returns n whole coins in base units.
func Coins(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Unit)
}

// Float returns v in coins as a float, for ratios only.
func Float(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v, Unit).Float64()
	return f
}
