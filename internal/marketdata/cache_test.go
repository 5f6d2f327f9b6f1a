package marketdata_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/marketdata"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	stored  map[string]domain.PriceSeries
	saves   int
	loadErr error
}

func newMockCache() *mockCache {
	return &mockCache{stored: make(map[string]domain.PriceSeries)}
}

func (m *mockCache) key(symbol string, start, end domain.Date) string {
	return symbol + "|" + start.String() + "|" + end.String()
}

func (m *mockCache) LoadPrices(_ context.Context, symbol string, start, end domain.Date) (domain.PriceSeries, bool, error) {
	if m.loadErr != nil {
		return domain.PriceSeries{}, false, m.loadErr
	}
	s, ok := m.stored[m.key(symbol, start, end)]
	return s, ok, nil
}

func (m *mockCache) SavePrices(_ context.Context, s domain.PriceSeries, start, end domain.Date) error {
	m.saves++
	m.stored[m.key(s.Symbol, start, end)] = s
	return nil
}

func (m *mockCache) Close() error { return nil }

func TestCachedProvider_MissThenHit(t *testing.T) {
	calls := 0
	next := providerFunc(func(_ context.Context, symbol string, start, _ domain.Date) (domain.PriceSeries, error) {
		calls++
		return dailySeries(symbol, start, 10, 20), nil
	})
	cache := newMockCache()
	metrics := observability.NewMetrics("test")
	p := marketdata.NewCachedProvider(next, cache, metrics)

	start, end := day("2020-01-02"), day("2020-01-03")
	first, err := p.FetchDailyCloses(context.Background(), "IBM", start, end)
	require.NoError(t, err)
	second, err := p.FetchDailyCloses(context.Background(), "IBM", start, end)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "el segundo fetch sale de la caché")
	assert.Equal(t, 1, cache.saves)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	next := providerFunc(func(context.Context, string, domain.Date, domain.Date) (domain.PriceSeries, error) {
		return domain.PriceSeries{}, domain.ErrNotFound
	})
	cache := newMockCache()
	p := marketdata.NewCachedProvider(next, cache, nil)

	_, err := p.FetchDailyCloses(context.Background(), "ZZZ", day("2020-01-02"), day("2020-01-03"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, cache.saves)
}

func TestCachedProvider_LoadErrorFallsBackToProvider(t *testing.T) {
	calls := 0
	next := providerFunc(func(_ context.Context, symbol string, start, _ domain.Date) (domain.PriceSeries, error) {
		calls++
		return dailySeries(symbol, start, 1), nil
	})
	cache := newMockCache()
	cache.loadErr = errors.New("disk on fire")
	p := marketdata.NewCachedProvider(next, cache, nil)

	series, err := p.FetchDailyCloses(context.Background(), "IBM", day("2020-01-02"), day("2020-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
	assert.Equal(t, 1, calls)
}
