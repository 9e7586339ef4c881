package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-shop/backend-pricing/internal/cart"
	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/tax"
)

func newCalculator() *cart.Calculator {
	return &cart.Calculator{
		Taxes:     tax.Builtin(),
		Discounts: discount.Builtin("EUR"),
		Currency:  "EUR",
	}
}

func item(t *testing.T, sku string, qty int, unitPriceCents int64) cart.Item {
	t.Helper()
	it, err := cart.NewItem(sku, sku, qty, unitPriceCents, "EUR")
	require.NoError(t, err)
	return it
}

func strptr(s string) *string { return &s }

func TestIncludedTaxNoDiscount(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items: []cart.Item{
			item(t, "tee", 2, 2999),
			item(t, "hoodie", 1, 4999),
		},
		CountryCode:   "FR",
		TaxesIncluded: true,
	})
	require.NoError(t, err)

	require.Equal(t, int64(10_997), res.Subtotal.Amount())
	require.Nil(t, res.Discount)
	require.Equal(t, int64(10_997), res.SubtotalAfterDiscount.Amount())
	require.Equal(t, int64(1833), res.Tax.Amount.Amount())
	require.True(t, res.Tax.Included)
	require.Equal(t, int64(10_997), res.Total.Amount())
	require.Equal(t, "EUR", res.Currency)

	require.Len(t, res.Items, 2)
	require.Equal(t, int64(5998), res.Items[0].LineTotal.Amount())
	require.Equal(t, int64(4999), res.Items[1].LineTotal.Amount())
}

func TestIncludedTaxWithPercentDiscount(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:         []cart.Item{item(t, "jacket", 1, 10_000)},
		DiscountCode:  strptr("SAVE10"),
		CountryCode:   "FR",
		TaxesIncluded: true,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Discount)
	require.Equal(t, "SAVE10", res.Discount.Code)
	require.Equal(t, discount.KindPercent, res.Discount.Kind)
	require.Equal(t, "10%", res.Discount.Value)
	require.Equal(t, int64(1000), res.Discount.Amount.Amount())
	require.Equal(t, int64(9000), res.Total.Amount())
	require.Equal(t, int64(1500), res.Tax.Amount.Amount())
}

func TestIncludedTaxWithFixedDiscount(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:         []cart.Item{item(t, "jacket", 1, 10_000)},
		DiscountCode:  strptr("FLAT500"),
		CountryCode:   "FR",
		TaxesIncluded: true,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Discount)
	require.Equal(t, int64(500), res.Discount.Amount.Amount())
	require.Equal(t, int64(9500), res.Total.Amount())
}

func TestPercentDiscountCap(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:         []cart.Item{item(t, "sofa", 1, 100_000)},
		DiscountCode:  strptr("WELCOME20"),
		CountryCode:   "FR",
		TaxesIncluded: true,
	})
	require.NoError(t, err)

	// 20% of 100000 would be 20000; the cap holds it at 1000.
	require.NotNil(t, res.Discount)
	require.Equal(t, int64(1000), res.Discount.Amount.Amount())
	require.Equal(t, int64(99_000), res.SubtotalAfterDiscount.Amount())
}

func TestAddedTax(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:         []cart.Item{item(t, "desk", 1, 10_000)},
		CountryCode:   "DE",
		TaxesIncluded: false,
	})
	require.NoError(t, err)

	require.Equal(t, int64(1900), res.Tax.Amount.Amount())
	require.False(t, res.Tax.Included)
	require.Equal(t, int64(11_900), res.Total.Amount())
}

func TestAddedTaxRoundsUp(t *testing.T) {
	t.Parallel()

	// 19% of 10001 is 1900.19; added tax always rounds up.
	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:       []cart.Item{item(t, "desk", 1, 10_001)},
		CountryCode: "DE",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1901), res.Tax.Amount.Amount())
	require.Equal(t, int64(11_902), res.Total.Amount())
}

func TestInvalidDiscountCode(t *testing.T) {
	t.Parallel()

	_, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:        []cart.Item{item(t, "tee", 1, 1000)},
		DiscountCode: strptr("INVALID123"),
		CountryCode:  "FR",
	})
	require.ErrorIs(t, err, discount.ErrInvalidCode)
}

func TestEmptyCart(t *testing.T) {
	t.Parallel()

	_, err := newCalculator().Calculate(context.Background(), cart.Request{CountryCode: "FR"})
	require.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestInvalidQuantity(t *testing.T) {
	t.Parallel()

	for _, qty := range []int{0, -1} {
		req := cart.Request{
			Items:       []cart.Item{{SKU: "tee", Qty: qty, UnitPrice: money.MustNew(1000, "EUR")}},
			CountryCode: "FR",
		}
		_, err := newCalculator().Calculate(context.Background(), req)
		require.ErrorIs(t, err, cart.ErrInvalidQuantity, "qty=%d", qty)
	}
}

func TestInvalidUnitPrice(t *testing.T) {
	t.Parallel()

	_, err := cart.NewItem("tee", "tee", 1, -1, "EUR")
	require.ErrorIs(t, err, cart.ErrInvalidUnitPrice)
}

func TestUnsupportedCountry(t *testing.T) {
	t.Parallel()

	_, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:       []cart.Item{item(t, "tee", 1, 1000)},
		CountryCode: "BR",
	})
	require.ErrorIs(t, err, tax.ErrUnsupportedCountry)
}

func TestFixedDiscountClampsAtSubtotal(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items:         []cart.Item{item(t, "sticker", 1, 300)},
		DiscountCode:  strptr("FLAT500"),
		CountryCode:   "US",
		TaxesIncluded: false,
	})
	require.NoError(t, err)

	require.Equal(t, int64(300), res.Discount.Amount.Amount())
	require.True(t, res.SubtotalAfterDiscount.IsZero())
	require.True(t, res.Total.IsZero())
}

func TestIncludedModeIdentityHoldsAcrossInputs(t *testing.T) {
	t.Parallel()

	calc := newCalculator()
	for _, country := range []string{"FR", "DE", "CA", "US"} {
		for _, cents := range []int64{1, 99, 2999, 10_997, 999_999} {
			res, err := calc.Calculate(context.Background(), cart.Request{
				Items:         []cart.Item{item(t, "x", 1, cents)},
				CountryCode:   country,
				TaxesIncluded: true,
			})
			require.NoError(t, err)

			excl, err := res.Total.Sub(res.Tax.Amount)
			require.NoError(t, err)
			sum, err := excl.Add(res.Tax.Amount)
			require.NoError(t, err)
			require.Equal(t, res.SubtotalAfterDiscount.Amount(), sum.Amount(),
				"country=%s cents=%d", country, cents)
			require.Equal(t, res.SubtotalAfterDiscount.Amount(), res.Total.Amount())
		}
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	t.Parallel()

	req := cart.Request{
		Items: []cart.Item{
			item(t, "tee", 2, 2999),
			item(t, "hoodie", 1, 4999),
		},
		DiscountCode:  strptr("SAVE10"),
		CountryCode:   "FR",
		TaxesIncluded: true,
	}

	calc := newCalculator()
	first, err := calc.Calculate(context.Background(), req)
	require.NoError(t, err)
	second, err := calc.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSubtotalIsExactSum(t *testing.T) {
	t.Parallel()

	res, err := newCalculator().Calculate(context.Background(), cart.Request{
		Items: []cart.Item{
			item(t, "a", 3, 333),
			item(t, "b", 7, 101),
			item(t, "c", 1, 1),
		},
		CountryCode: "US",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3*333+7*101+1), res.Subtotal.Amount())
	require.LessOrEqual(t, res.SubtotalAfterDiscount.Amount(), res.Subtotal.Amount())
}
