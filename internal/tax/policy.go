package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meridian-shop/backend-pricing/internal/money"
)

// ErrUnsupportedCountry is returned when no VAT/GST rate exists for a country.
var ErrUnsupportedCountry = errors.New("unsupported country")

// Policy resolves the VAT/GST rate for a country code. Implementations must
// be safe for concurrent use.
type Policy interface {
	RateFor(ctx context.Context, countryCode string) (money.Percent, error)
}

// Table is an in-memory rate table keyed by ISO country code. It is immutable
// after construction and therefore safe to share across requests.
type Table struct {
	rates map[string]money.Percent
}

// NewTable builds a rate table from country code to basis points.
func NewTable(ratesBps map[string]int64) (Table, error) {
	rates := make(map[string]money.Percent, len(ratesBps))
	for code, bps := range ratesBps {
		p, err := money.FromBasisPoints(bps)
		if err != nil {
			return Table{}, fmt.Errorf("rate for %s: %w", code, err)
		}
		rates[normalize(code)] = p
	}
	return Table{rates: rates}, nil
}

// Builtin returns the default rate table shipped with the service.
func Builtin() Table {
	t, err := NewTable(map[string]int64{
		"FR": 2000,
		"DE": 1900,
		"US": 0,
		"CA": 500,
	})
	if err != nil {
		panic(err)
	}
	return t
}

// RateFor implements Policy.
func (t Table) RateFor(_ context.Context, countryCode string) (money.Percent, error) {
	rate, ok := t.rates[normalize(countryCode)]
	if !ok {
		return money.Percent{}, fmt.Errorf("%w: %q", ErrUnsupportedCountry, countryCode)
	}
	return rate, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
