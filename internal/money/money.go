package money

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned when constructing money from a negative amount.
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrCurrencyMismatch is returned when arithmetic mixes two currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrNegativeResult is returned by operations that would produce a negative amount.
	ErrNegativeResult = errors.New("operation would produce a negative amount")
)

// Rounding selects how fractional cents are resolved when applying a rate.
type Rounding int

const (
	// RoundNearest rounds half a cent and above up, the rest down.
	RoundNearest Rounding = iota
	// RoundUp always rounds fractional cents up.
	RoundUp
)

// Money is an immutable monetary amount in minor units (cents) tagged with a
// currency code. All operations return a new value; the amount is never
// negative.
type Money struct {
	amount   int64
	currency string
}

// New constructs a Money value. Negative amounts are rejected.
func New(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustNew constructs a Money value and panics on invalid input. For tests and
// static tables.
func MustNew(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{currency: currency}
}

// Amount returns the amount in minor units.
func (m Money) Amount() int64 { return m.amount }

// Currency returns the currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount == 0 }

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Sub returns m - other and fails with ErrNegativeResult when the difference
// would go below zero. Call sites that want flooring must use SubClamped
// explicitly.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.amount > m.amount {
		return Money{}, fmt.Errorf("%w: %d - %d", ErrNegativeResult, m.amount, other.amount)
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// SubClamped returns m - other floored at zero.
func (m Money) SubClamped(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	amount := m.amount - other.amount
	if amount < 0 {
		amount = 0
	}
	return Money{amount: amount, currency: m.currency}, nil
}

// MulInt returns m multiplied by a non-negative integer factor. The multiply
// is exact; no rounding is involved.
func (m Money) MulInt(factor int64) (Money, error) {
	if factor < 0 {
		return Money{}, fmt.Errorf("%w: factor %d", ErrNegativeResult, factor)
	}
	return Money{amount: m.amount * factor, currency: m.currency}, nil
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.amount < m.amount {
		return other, nil
	}
	return m, nil
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// ApplyPercent returns amount * rate with the requested rounding. This is the
// single rate-multiply used for both discounts (RoundNearest) and added tax
// (RoundUp).
func (m Money) ApplyPercent(p Percent, r Rounding) Money {
	raw := m.amount * p.bps
	var amount int64
	switch r {
	case RoundUp:
		amount = (raw + bpsScale - 1) / bpsScale
	default:
		amount = (raw + bpsScale/2) / bpsScale
	}
	return Money{amount: amount, currency: m.currency}
}

// ExtractRate splits a rate-inclusive amount into the exclusive part and the
// rate part. The exclusive part is floor(amount / (1 + rate)) computed in
// integer arithmetic; the rate part is the exact remainder, so
// excl + part == m always holds.
func (m Money) ExtractRate(p Percent) (excl Money, part Money) {
	exclAmount := m.amount * bpsScale / (bpsScale + p.bps)
	excl = Money{amount: exclAmount, currency: m.currency}
	part = Money{amount: m.amount - exclAmount, currency: m.currency}
	return excl, part
}

// String renders the amount for logs, e.g. "1099 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}
