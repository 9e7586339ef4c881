package policystore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/tax"
	"github.com/meridian-shop/backend-pricing/internal/tenant"
)

type countingTax struct {
	inner tax.Policy
	calls int
}

func (c *countingTax) RateFor(ctx context.Context, countryCode string) (money.Percent, error) {
	c.calls++
	return c.inner.RateFor(ctx, countryCode)
}

type countingDiscounts struct {
	inner discount.Policy
	calls int
}

func (c *countingDiscounts) Resolve(ctx context.Context, code string) (discount.Rule, error) {
	c.calls++
	return c.inner.Resolve(ctx, code)
}

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client
}

func TestCachedTaxReadThrough(t *testing.T) {
	cache, _ := newTestCache(t)
	source := &countingTax{inner: tax.Builtin()}
	cached := CachedTax{Source: source, Cache: cache}

	ctx := tenant.WithTenant(context.Background(), "acme")

	rate, err := cached.RateFor(ctx, "FR")
	require.NoError(t, err)
	require.Equal(t, int64(2000), rate.BasisPoints())
	require.Equal(t, 1, source.calls)

	rate, err = cached.RateFor(ctx, "fr")
	require.NoError(t, err)
	require.Equal(t, int64(2000), rate.BasisPoints())
	require.Equal(t, 1, source.calls, "second lookup should be served from cache")
}

func TestCachedTaxDoesNotCacheErrors(t *testing.T) {
	cache, _ := newTestCache(t)
	source := &countingTax{inner: tax.Builtin()}
	cached := CachedTax{Source: source, Cache: cache}

	ctx := tenant.WithTenant(context.Background(), "acme")

	_, err := cached.RateFor(ctx, "BR")
	require.ErrorIs(t, err, tax.ErrUnsupportedCountry)

	_, err = cached.RateFor(ctx, "BR")
	require.ErrorIs(t, err, tax.ErrUnsupportedCountry)
	require.Equal(t, 2, source.calls, "failed lookups always hit the source")
}

func TestCachedTaxKeysAreTenantScoped(t *testing.T) {
	cache, client := newTestCache(t)
	source := &countingTax{inner: tax.Builtin()}
	cached := CachedTax{Source: source, Cache: cache}

	_, err := cached.RateFor(tenant.WithTenant(context.Background(), "acme"), "FR")
	require.NoError(t, err)
	_, err = cached.RateFor(tenant.WithTenant(context.Background(), "globex"), "FR")
	require.NoError(t, err)
	require.Equal(t, 2, source.calls, "each tenant has its own cache entry")

	require.NoError(t, client.Get(context.Background(), "policy:tax:acme:FR").Err())
	require.NoError(t, client.Get(context.Background(), "policy:tax:globex:FR").Err())
}

func TestCachedDiscountsReadThrough(t *testing.T) {
	cache, _ := newTestCache(t)
	source := &countingDiscounts{inner: discount.Builtin("EUR")}
	cached := CachedDiscounts{Source: source, Cache: cache}

	ctx := tenant.WithTenant(context.Background(), "acme")

	rule, err := cached.Resolve(ctx, "WELCOME20")
	require.NoError(t, err)
	require.Equal(t, discount.KindPercent, rule.Kind)
	require.NotNil(t, rule.Cap)
	require.Equal(t, int64(1000), rule.Cap.Amount())
	require.Equal(t, 1, source.calls)

	rule, err = cached.Resolve(ctx, "welcome20")
	require.NoError(t, err)
	require.Equal(t, discount.KindPercent, rule.Kind)
	require.NotNil(t, rule.Cap)
	require.Equal(t, int64(1000), rule.Cap.Amount())
	require.Equal(t, int64(2000), rule.Percent.BasisPoints())
	require.Equal(t, 1, source.calls, "second lookup should be served from cache")
}

func TestCachedDiscountsRoundTripsFixedRules(t *testing.T) {
	cache, _ := newTestCache(t)
	source := &countingDiscounts{inner: discount.Builtin("EUR")}
	cached := CachedDiscounts{Source: source, Cache: cache}

	ctx := tenant.WithTenant(context.Background(), "acme")

	_, err := cached.Resolve(ctx, "FLAT500")
	require.NoError(t, err)

	rule, err := cached.Resolve(ctx, "FLAT500")
	require.NoError(t, err)
	require.Equal(t, discount.KindFixed, rule.Kind)
	require.Equal(t, int64(500), rule.Amount.Amount())
	require.Equal(t, "EUR", rule.Amount.Currency())
	require.Equal(t, 1, source.calls)
}

func TestCacheNilClientIsPassThrough(t *testing.T) {
	t.Parallel()

	source := &countingTax{inner: tax.Builtin()}
	cached := CachedTax{Source: source, Cache: NewCache(nil, time.Minute)}

	ctx := tenant.WithTenant(context.Background(), "acme")
	for i := 0; i < 3; i++ {
		_, err := cached.RateFor(ctx, "DE")
		require.NoError(t, err)
	}
	require.Equal(t, 3, source.calls)
}
