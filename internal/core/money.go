// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Decimal strings are parsed with
// shopspring/decimal so repeated summation never drifts.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Cents builds a Money from an integer amount of cents.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseAmount converts user input to Money.
//
// It accepts dot (12.34) and comma (12,34) decimal separators as well as
// Brazilian grouping (1.234,56) and an optional "R$" prefix. The third
// decimal place is rounded half away from zero. Zero, negative and
// signed values are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")    -> 1234 cents
//	ParseAmount("1.234,56") -> 123456 cents
//	ParseAmount("1.005")    -> 101 cents
func ParseAmount(s string) (Money, error) {
	norm, ok := normalizeAmount(s)
	if !ok || strings.ContainsAny(norm, "+-eE") {
		return Money{}, ErrInvalidAmount
	}
	cents, err := parseCents(norm)
	if err != nil {
		return Money{}, err
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

func parseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	c := d.Shift(2).Round(0)
	if c.Abs().GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return c.IntPart(), nil
}

// normalizeAmount strips the currency prefix and rewrites the input so the
// only separator left is a decimal dot.
func normalizeAmount(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return "", false
	}

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		// whichever separator comes last is the decimal one
		sep, group := comma, "."
		if dot > comma {
			sep, group = dot, ","
		}
		intPart, frac := s[:sep], s[sep+1:]
		if strings.ContainsAny(frac, ".,") || !validGrouping(intPart, group) {
			return "", false
		}
		return strings.ReplaceAll(intPart, group, "") + "." + frac, true
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		return strings.Replace(s, ",", ".", 1), true
	case strings.Count(s, ".") > 1:
		return "", false
	}
	return s, true
}

func validGrouping(intPart, group string) bool {
	parts := strings.Split(intPart, group)
	if len(parts) == 1 {
		return parts[0] != ""
	}
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 is for statistics and charts only; sums stay in cents.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// Plain renders the amount with a dot and two decimals ("1234.50"), the
// form used in exports.
func (m Money) Plain() string {
	return m.Decimal().StringFixed(2)
}

// String renders Brazilian currency, e.g. "R$ 1.234,56".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	digits := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, b.String(), cents%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Plain()), nil
}

// UnmarshalJSON accepts numbers and numeric strings, so values written by
// older versions that stored amounts as text still load.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		norm, ok := normalizeAmount(unq)
		if !ok {
			return fmt.Errorf("amount %q: %w", unq, ErrInvalidAmount)
		}
		s = norm
	}
	cents, err := parseCents(s)
	if err != nil {
		return fmt.Errorf("amount %s: %w", s, err)
	}
	m.Cents = cents
	return nil
}
