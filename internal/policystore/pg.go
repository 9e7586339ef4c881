package policystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/tax"
	"github.com/meridian-shop/backend-pricing/internal/tenant"
)

// PG serves tenant-specific tax and discount rules from Postgres. Rows are
// keyed by the tenant id carried in the request context; when no tenant row
// exists the lookup falls through to the configured fallback policies, so
// tenants only override what they need to.
type PG struct {
	Pool             *pgxpool.Pool
	TaxFallback      tax.Policy
	DiscountFallback discount.Policy
	Currency         string
}

// RateFor implements tax.Policy.
func (s *PG) RateFor(ctx context.Context, countryCode string) (money.Percent, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok || s.Pool == nil {
		return s.fallbackRate(ctx, countryCode)
	}

	var bps int64
	err := s.Pool.QueryRow(ctx,
		`SELECT rate_bps FROM tax_rules WHERE tenant_id = $1 AND country_code = $2`,
		tenantID, strings.ToUpper(strings.TrimSpace(countryCode)),
	).Scan(&bps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.fallbackRate(ctx, countryCode)
		}
		return money.Percent{}, fmt.Errorf("query tax rule: %w", err)
	}
	return money.FromBasisPoints(bps)
}

// Resolve implements discount.Policy.
func (s *PG) Resolve(ctx context.Context, code string) (discount.Rule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok || s.Pool == nil {
		return s.fallbackRule(ctx, code)
	}

	var (
		kind        string
		percentBps  *int64
		amountCents *int64
		capCents    *int64
	)
	normalized := strings.ToUpper(strings.TrimSpace(code))
	err := s.Pool.QueryRow(ctx,
		`SELECT kind, percent_bps, amount_cents, cap_cents FROM discount_rules WHERE tenant_id = $1 AND code = $2`,
		tenantID, normalized,
	).Scan(&kind, &percentBps, &amountCents, &capCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.fallbackRule(ctx, code)
		}
		return discount.Rule{}, fmt.Errorf("query discount rule: %w", err)
	}
	return s.buildRule(normalized, kind, percentBps, amountCents, capCents)
}

func (s *PG) buildRule(code, kind string, percentBps, amountCents, capCents *int64) (discount.Rule, error) {
	switch discount.Kind(kind) {
	case discount.KindPercent:
		if percentBps == nil {
			return discount.Rule{}, fmt.Errorf("%w: %s has no rate", discount.ErrInvalidCode, code)
		}
		rate, err := money.FromBasisPoints(*percentBps)
		if err != nil {
			return discount.Rule{}, fmt.Errorf("rule %s: %w", code, err)
		}
		rule := discount.Rule{Code: code, Kind: discount.KindPercent, Percent: rate}
		if capCents != nil {
			capAmount, err := money.New(*capCents, s.Currency)
			if err != nil {
				return discount.Rule{}, fmt.Errorf("rule %s cap: %w", code, err)
			}
			rule.Cap = &capAmount
		}
		return rule, nil
	case discount.KindFixed:
		if amountCents == nil {
			return discount.Rule{}, fmt.Errorf("%w: %s has no amount", discount.ErrInvalidCode, code)
		}
		amount, err := money.New(*amountCents, s.Currency)
		if err != nil {
			return discount.Rule{}, fmt.Errorf("rule %s amount: %w", code, err)
		}
		return discount.Rule{Code: code, Kind: discount.KindFixed, Amount: amount}, nil
	default:
		return discount.Rule{}, fmt.Errorf("%w: %s has unknown kind %q", discount.ErrInvalidCode, code, kind)
	}
}

func (s *PG) fallbackRate(ctx context.Context, countryCode string) (money.Percent, error) {
	if s.TaxFallback == nil {
		return money.Percent{}, fmt.Errorf("%w: %q", tax.ErrUnsupportedCountry, countryCode)
	}
	return s.TaxFallback.RateFor(ctx, countryCode)
}

func (s *PG) fallbackRule(ctx context.Context, code string) (discount.Rule, error) {
	if s.DiscountFallback == nil {
		return discount.Rule{}, fmt.Errorf("%w: %q", discount.ErrInvalidCode, code)
	}
	return s.DiscountFallback.Resolve(ctx, code)
}
