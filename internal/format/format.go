package format

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var weiPerEther = big.NewInt(1_000_000_000_000_000_000)

// Ether renders wei as a decimal ETH string with trailing zeros trimmed ("1.5", "0").
func Ether(v *big.Int) string {
	if v == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(v, weiPerEther).FloatString(18)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return "0"
	}
	return s
}

// EtherFixed renders wei with exactly n fraction digits (rounded).
func EtherFixed(v *big.Int, n int) string {
	if v == nil {
		v = new(big.Int)
	}
	return new(big.Rat).SetFrac(v, weiPerEther).FloatString(n)
}

// ParseEther converts a decimal ETH amount ("0.05", "1", ".5") into wei.
// Digits past the 18th fraction place are dropped.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return nil, errors.New("bad amount")
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return nil, errors.New("bad amount")
	}
	if len(fracPart) > 18 {
		fracPart = fracPart[:18]
	}
	fracPart += strings.Repeat("0", 18-len(fracPart))
	clean := strings.TrimLeft(intPart+fracPart, "0")
	if clean == "" {
		return new(big.Int), nil
	}
	wei, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, errors.New("bad amount")
	}
	if neg {
		wei.Neg(wei)
	}
	return wei, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TruncateTo4Decimals cuts (never rounds) a numeric string to 4 fraction digits.
// Like a lenient float parse it reads the longest numeric prefix ("1.5abc" is 1.5).
// No numeric prefix, or a non-finite value, renders as "0.0000".
func TruncateTo4Decimals(value string) string {
	num, err := strconv.ParseFloat(numericPrefix(value), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return "0.0000"
	}
	truncated := math.Floor(num*10000) / 10000
	if math.IsInf(truncated, 0) {
		truncated = num
	}
	return strconv.FormatFloat(truncated, 'f', 4, 64)
}

// numericPrefix returns the leading [sign]digits[.digits][e[sign]digits] part of s.
func numericPrefix(s string) string {
	s = strings.TrimLeft(s, " \t\n\r")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			digits++
		}
		if digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	return s[:i]
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// PercentOf returns pct percent of a wei balance, computed in 256-bit integer math.
// Negative or overflowing input yields zero.
func PercentOf(balance *big.Int, pct uint64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || pct == 0 {
		return new(big.Int)
	}
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		return new(big.Int)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(bal, uint256.NewInt(pct), uint256.NewInt(100))
	if overflow {
		return new(big.Int)
	}
	return out.ToBig()
}

// Diff returns a-b treating nil as zero.
func Diff(a, b *big.Int) *big.Int {
	x, y := new(big.Int), new(big.Int)
	if a != nil {
		x.Set(a)
	}
	if b != nil {
		y.Set(b)
	}
	return x.Sub(x, y)
}
