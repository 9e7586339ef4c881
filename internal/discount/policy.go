package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meridian-shop/backend-pricing/internal/money"
)

// ErrInvalidCode is returned when a discount code is empty or unknown.
var ErrInvalidCode = errors.New("invalid discount code")

// Kind discriminates the two rule variants.
type Kind string

const (
	// KindPercent discounts a percentage of the subtotal, optionally capped.
	KindPercent Kind = "percent"
	// KindFixed discounts a fixed amount, never more than the subtotal.
	KindFixed Kind = "fixed"
)

// Rule is an immutable discount rule resolved by code.
type Rule struct {
	Code    string
	Kind    Kind
	Percent money.Percent // KindPercent only
	Cap     *money.Money  // optional absolute ceiling for KindPercent
	Amount  money.Money   // KindFixed only
}

// Value renders the rule's magnitude for result payloads: the rate for
// percent rules, the amount in cents for fixed rules.
func (r Rule) Value() string {
	if r.Kind == KindPercent {
		return r.Percent.String()
	}
	return fmt.Sprintf("%d", r.Amount.Amount())
}

// Policy resolves discount codes into rules. Implementations must be safe for
// concurrent use.
type Policy interface {
	Resolve(ctx context.Context, code string) (Rule, error)
}

// Table is an in-memory code table, immutable after construction.
type Table struct {
	rules map[string]Rule
}

// NewTable builds a table from the provided rules, keyed by upper-cased code.
func NewTable(rules []Rule) Table {
	idx := make(map[string]Rule, len(rules))
	for _, r := range rules {
		idx[normalize(r.Code)] = r
	}
	return Table{rules: idx}
}

// Builtin returns the default discount table for the given currency.
func Builtin(currency string) Table {
	welcomeCap := money.MustNew(1000, currency)
	return NewTable([]Rule{
		{Code: "SAVE10", Kind: KindPercent, Percent: money.MustFromBasisPoints(1000)},
		{Code: "FLAT500", Kind: KindFixed, Amount: money.MustNew(500, currency)},
		{Code: "WELCOME20", Kind: KindPercent, Percent: money.MustFromBasisPoints(2000), Cap: &welcomeCap},
	})
}

// Resolve implements Policy.
func (t Table) Resolve(_ context.Context, code string) (Rule, error) {
	key := normalize(code)
	if key == "" {
		return Rule{}, fmt.Errorf("%w: empty code", ErrInvalidCode)
	}
	rule, ok := t.rules[key]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return rule, nil
}

// Apply computes the discount amount for a subtotal. The amount is not yet
// subtracted; callers clamp the subtraction themselves.
//
// Percent rules round half-up and are then limited by the cap when present.
// Fixed rules never exceed the subtotal.
func Apply(rule Rule, subtotal money.Money) (money.Money, error) {
	switch rule.Kind {
	case KindPercent:
		amount := subtotal.ApplyPercent(rule.Percent, money.RoundNearest)
		if rule.Cap != nil {
			capped, err := amount.Min(*rule.Cap)
			if err != nil {
				return money.Money{}, fmt.Errorf("apply cap for %s: %w", rule.Code, err)
			}
			amount = capped
		}
		return amount, nil
	case KindFixed:
		amount, err := rule.Amount.Min(subtotal)
		if err != nil {
			return money.Money{}, fmt.Errorf("apply fixed discount %s: %w", rule.Code, err)
		}
		return amount, nil
	default:
		return money.Money{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCode, rule.Kind)
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
