package money

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPercent is returned when a rate falls outside [0%, 100%].
var ErrInvalidPercent = errors.New("percent out of range")

// bpsScale is the number of basis points in 100%.
const bpsScale = 10_000

// Percent is a rate between 0% and 100% held in basis points so fractional
// rates (19.5%) stay exact in integer arithmetic.
type Percent struct {
	bps int64
}

// FromBasisPoints constructs a Percent from basis points (100 bps == 1%).
func FromBasisPoints(bps int64) (Percent, error) {
	if bps < 0 || bps > bpsScale {
		return Percent{}, fmt.Errorf("%w: %d bps", ErrInvalidPercent, bps)
	}
	return Percent{bps: bps}, nil
}

// MustFromBasisPoints constructs a Percent and panics on out-of-range input.
// For static tables and tests.
func MustFromBasisPoints(bps int64) Percent {
	p, err := FromBasisPoints(bps)
	if err != nil {
		panic(err)
	}
	return p
}

// BasisPoints returns the rate in basis points.
func (p Percent) BasisPoints() int64 { return p.bps }

// IsZero reports whether the rate is 0%.
func (p Percent) IsZero() bool { return p.bps == 0 }

// Of applies the rate to an amount with the given rounding.
func (p Percent) Of(m Money, r Rounding) Money {
	return m.ApplyPercent(p, r)
}

// String renders the rate in decimal form, e.g. "20%" or "19.5%".
func (p Percent) String() string {
	whole := p.bps / 100
	frac := p.bps % 100
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	s := fmt.Sprintf("%d.%02d", whole, frac)
	s = strings.TrimRight(s, "0")
	return s + "%"
}
