package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/tax"
)

var (
	// ErrEmptyCart is returned when a request carries no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned when an item quantity is below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidUnitPrice is returned when an item unit price is negative.
	ErrInvalidUnitPrice = errors.New("unit price must not be negative")
)

// Item is a validated input line.
type Item struct {
	SKU       string
	Name      string
	Qty       int
	UnitPrice money.Money
}

// Request is the typed calculation input. The HTTP layer is responsible for
// deserialization; the calculator never sees raw payloads.
type Request struct {
	Items         []Item
	DiscountCode  *string
	CountryCode   string
	TaxesIncluded bool
}

// Line is an input item carrying its computed line total.
type Line struct {
	SKU       string
	Name      string
	Qty       int
	UnitPrice money.Money
	LineTotal money.Money
}

// AppliedDiscount describes the discount block of a result. It is present
// only when a code was supplied; a nil block and a zero amount are distinct
// outcomes.
type AppliedDiscount struct {
	Code   string
	Kind   discount.Kind
	Value  string
	Amount money.Money
}

// TaxLine is the tax block of a result.
type TaxLine struct {
	Rate     money.Percent
	Amount   money.Money
	Included bool
}

// Result is the full priced state of a cart. It is assembled once per call
// and never mutated.
type Result struct {
	Items                 []Line
	Subtotal              money.Money
	Discount              *AppliedDiscount
	SubtotalAfterDiscount money.Money
	Tax                   TaxLine
	Total                 money.Money
	Currency              string
}

// Calculator orchestrates the money arithmetic with the tax and discount
// policies. It holds no per-request state and is safe for concurrent use.
type Calculator struct {
	Taxes     tax.Policy
	Discounts discount.Policy
	Currency  string
}

// Calculate runs the pricing pipeline in fixed order: validate, line totals,
// subtotal, discount, tax, assemble. It either fully succeeds or fails with
// one of the sentinel errors; no partial result is returned.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	if len(req.Items) == 0 {
		return Result{}, ErrEmptyCart
	}

	lines := make([]Line, 0, len(req.Items))
	subtotal := money.Zero(c.Currency)
	for i, it := range req.Items {
		if it.Qty < 1 {
			return Result{}, fmt.Errorf("item %d (%s): %w: %d", i, it.SKU, ErrInvalidQuantity, it.Qty)
		}
		lineTotal, err := it.UnitPrice.MulInt(int64(it.Qty))
		if err != nil {
			return Result{}, fmt.Errorf("item %d (%s): %w", i, it.SKU, err)
		}
		subtotal, err = subtotal.Add(lineTotal)
		if err != nil {
			return Result{}, fmt.Errorf("item %d (%s): %w", i, it.SKU, err)
		}
		lines = append(lines, Line{
			SKU:       it.SKU,
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			LineTotal: lineTotal,
		})
	}

	afterDiscount := subtotal
	var applied *AppliedDiscount
	if req.DiscountCode != nil {
		rule, err := c.Discounts.Resolve(ctx, *req.DiscountCode)
		if err != nil {
			return Result{}, err
		}
		amount, err := discount.Apply(rule, subtotal)
		if err != nil {
			return Result{}, err
		}
		// The discount can never push the cart below zero.
		afterDiscount, err = subtotal.SubClamped(amount)
		if err != nil {
			return Result{}, err
		}
		applied = &AppliedDiscount{
			Code:   rule.Code,
			Kind:   rule.Kind,
			Value:  rule.Value(),
			Amount: amount,
		}
	}

	rate, err := c.Taxes.RateFor(ctx, req.CountryCode)
	if err != nil {
		return Result{}, err
	}

	var (
		taxAmount money.Money
		total     money.Money
	)
	if req.TaxesIncluded {
		// The post-discount amount already contains the tax. Split it with
		// the exact remainder so excl + tax == total with zero leakage.
		_, taxAmount = afterDiscount.ExtractRate(rate)
		total = afterDiscount
	} else {
		taxAmount = afterDiscount.ApplyPercent(rate, money.RoundUp)
		total, err = afterDiscount.Add(taxAmount)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{
		Items:                 lines,
		Subtotal:              subtotal,
		Discount:              applied,
		SubtotalAfterDiscount: afterDiscount,
		Tax:                   TaxLine{Rate: rate, Amount: taxAmount, Included: req.TaxesIncluded},
		Total:                 total,
		Currency:              c.Currency,
	}, nil
}

// NewItem validates raw line fields into an Item. Unit prices are given in
// minor units; negative prices map to ErrInvalidUnitPrice.
func NewItem(sku, name string, qty int, unitPriceCents int64, currency string) (Item, error) {
	if qty < 1 {
		return Item{}, fmt.Errorf("%s: %w: %d", sku, ErrInvalidQuantity, qty)
	}
	price, err := money.New(unitPriceCents, currency)
	if err != nil {
		return Item{}, fmt.Errorf("%s: %w: %d", sku, ErrInvalidUnitPrice, unitPriceCents)
	}
	return Item{SKU: sku, Name: name, Qty: qty, UnitPrice: price}, nil
}
