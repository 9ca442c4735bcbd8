package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (paise for INR). Arithmetic stays
// integral so the gateway amount is always exactly the base amount times 100.
type Money int64

const minorPerMajor = 100

// MaxAmount is the largest price or total accepted anywhere in checkout
const MaxAmount Money = 100_000_000_000

var ErrAmountOutOfRange = errors.New("amount out of range")

// FromMajor converts a base-currency decimal, rounding to the nearest minor unit
func FromMajor(v float64) Money {
	return Money(math.Round(v * minorPerMajor))
}

// ParseMoney parses a base-currency decimal string such as "499.50" or "1,350"
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return fromMajorChecked(v)
}

func fromMajorChecked(v float64) (Money, error) {
	if math.Abs(v) > MaxAmount.Major() {
		return 0, fmt.Errorf("%w: %v", ErrAmountOutOfRange, v)
	}
	return FromMajor(v), nil
}

// Minor returns the integer amount in minor units, as handed to the payment gateway
func (m Money) Minor() int64 {
	return int64(m)
}

// Major returns the base-currency decimal value sent to internal endpoints
func (m Money) Major() float64 {
	return float64(m) / minorPerMajor
}

// Mul multiplies by a quantity. Callers pricing untrusted input use MulChecked.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// MulChecked multiplies by a non-negative quantity and fails instead of
// passing MaxAmount.
func (m Money) MulChecked(qty int) (Money, error) {
	if m < 0 || m > MaxAmount || qty < 0 {
		return 0, fmt.Errorf("%w: %d x %d", ErrAmountOutOfRange, m, qty)
	}
	if qty > 0 && m > MaxAmount/Money(qty) {
		return 0, fmt.Errorf("%w: %d x %d", ErrAmountOutOfRange, m, qty)
	}
	return m * Money(qty), nil
}

// AddChecked adds two non-negative amounts and fails instead of passing MaxAmount
func (m Money) AddChecked(n Money) (Money, error) {
	if m < 0 || n < 0 || m > MaxAmount || n > MaxAmount-m {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOutOfRange, m, n)
	}
	return m + n, nil
}

// Percent returns pct percent of m, rounded to the nearest minor unit
func (m Money) Percent(pct float64) Money {
	return Money(math.Round(float64(m) * pct / 100))
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Major(), 'f', 2, 64)
}

// MarshalJSON writes the base-currency decimal
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Major(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in base currency
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*m = 0
			return nil
		}
		v, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	v, err := fromMajorChecked(f)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
