package accrual

import (
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a human-entered amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// DefaultDecimals is assumed when a mint's decimals could not be fetched.
const DefaultDecimals = 6

func pow10(decimals int) *big.Int {
	if decimals < 0 {
		decimals = 0
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// displayDecimal returns base / 10^decimals without rounding.
func displayDecimal(base *big.Int, decimals int) decimal.Decimal {
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromBigInt(orZero(base), -int32(decimals))
}

// ToDisplay converts base units to display units (base / 10^decimals).
func ToDisplay(base *big.Int, decimals int) float64 {
	return displayDecimal(base, decimals).InexactFloat64()
}

// ToBaseUnits converts a human amount such as "12.5" to base units. Fraction
// digits beyond the mint's precision are truncated.
func ToBaseUnits(human string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(human)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Join(ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if decimals < 0 {
		decimals = 0
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FormatToken renders base units for display: "0.000000" for zero,
// exponent notation below one micro-unit, otherwise a thousands-grouped
// number with between minFrac and maxFrac fraction digits.
func FormatToken(base *big.Int, decimals, minFrac, maxFrac int) string {
	ui := displayDecimal(base, decimals)
	if ui.IsZero() {
		return "0.000000"
	}
	if ui.Abs().LessThan(decimal.New(1, -6)) {
		return strconv.FormatFloat(ui.InexactFloat64(), 'e', 6, 64)
	}

	if maxFrac < minFrac {
		maxFrac = minFrac
	}
	s := ui.Round(int32(maxFrac)).StringFixed(int32(maxFrac))

	intPart, frac, _ := strings.Cut(s, ".")
	for len(frac) > minFrac && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	out := groupThousands(intPart)
	if frac != "" {
		out += "." + frac
	}
	return out
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
