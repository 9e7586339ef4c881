package policystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/tax"
	"github.com/meridian-shop/backend-pricing/internal/tenant"
)

// Cache wraps Redis helpers for JSON payloads. A nil client degrades to a
// pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the
// key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedTax is a read-through cache over a tax policy. Only successful
// lookups are cached; unsupported countries always hit the source so new
// rules show up without invalidation.
type CachedTax struct {
	Source tax.Policy
	Cache  *Cache
}

// RateFor implements tax.Policy.
func (c CachedTax) RateFor(ctx context.Context, countryCode string) (money.Percent, error) {
	key := cacheKey(ctx, "tax", strings.ToUpper(strings.TrimSpace(countryCode)))

	var bps int64
	if hit, err := c.Cache.GetJSON(ctx, key, &bps); err == nil && hit {
		return money.FromBasisPoints(bps)
	}

	rate, err := c.Source.RateFor(ctx, countryCode)
	if err != nil {
		return money.Percent{}, err
	}
	_ = c.Cache.SetJSON(ctx, key, rate.BasisPoints())
	return rate, nil
}

// ruleDoc is the serialised form of a discount rule.
type ruleDoc struct {
	Code        string `json:"code"`
	Kind        string `json:"kind"`
	PercentBps  int64  `json:"percentBps,omitempty"`
	AmountCents int64  `json:"amountCents,omitempty"`
	CapCents    *int64 `json:"capCents,omitempty"`
	Currency    string `json:"currency"`
}

// CachedDiscounts is a read-through cache over a discount policy.
type CachedDiscounts struct {
	Source discount.Policy
	Cache  *Cache
}

// Resolve implements discount.Policy.
func (c CachedDiscounts) Resolve(ctx context.Context, code string) (discount.Rule, error) {
	key := cacheKey(ctx, "discount", strings.ToUpper(strings.TrimSpace(code)))

	var doc ruleDoc
	if hit, err := c.Cache.GetJSON(ctx, key, &doc); err == nil && hit {
		return docToRule(doc)
	}

	rule, err := c.Source.Resolve(ctx, code)
	if err != nil {
		return discount.Rule{}, err
	}
	_ = c.Cache.SetJSON(ctx, key, ruleToDoc(rule))
	return rule, nil
}

func cacheKey(ctx context.Context, kind, suffix string) string {
	tenantID, _ := tenant.FromContext(ctx)
	if tenantID == "" {
		tenantID = "default"
	}
	return fmt.Sprintf("policy:%s:%s:%s", kind, tenantID, suffix)
}

func ruleToDoc(rule discount.Rule) ruleDoc {
	doc := ruleDoc{
		Code: rule.Code,
		Kind: string(rule.Kind),
	}
	switch rule.Kind {
	case discount.KindPercent:
		doc.PercentBps = rule.Percent.BasisPoints()
		if rule.Cap != nil {
			capCents := rule.Cap.Amount()
			doc.CapCents = &capCents
			doc.Currency = rule.Cap.Currency()
		}
	case discount.KindFixed:
		doc.AmountCents = rule.Amount.Amount()
		doc.Currency = rule.Amount.Currency()
	}
	return doc
}

func docToRule(doc ruleDoc) (discount.Rule, error) {
	switch discount.Kind(doc.Kind) {
	case discount.KindPercent:
		rate, err := money.FromBasisPoints(doc.PercentBps)
		if err != nil {
			return discount.Rule{}, err
		}
		rule := discount.Rule{Code: doc.Code, Kind: discount.KindPercent, Percent: rate}
		if doc.CapCents != nil {
			capAmount, err := money.New(*doc.CapCents, doc.Currency)
			if err != nil {
				return discount.Rule{}, err
			}
			rule.Cap = &capAmount
		}
		return rule, nil
	case discount.KindFixed:
		amount, err := money.New(doc.AmountCents, doc.Currency)
		if err != nil {
			return discount.Rule{}, err
		}
		return discount.Rule{Code: doc.Code, Kind: discount.KindFixed, Amount: amount}, nil
	default:
		return discount.Rule{}, fmt.Errorf("%w: cached rule %s has unknown kind %q", discount.ErrInvalidCode, doc.Code, doc.Kind)
	}
}
