package marketdata

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/alejandrodnm/coeus/internal/ports"
)

// CachedProvider pone una ports.PriceCache delante de otro provider.
// Solo se guardan ventanas cerradas (end anterior a hoy): una ventana que
// incluye hoy todavía puede recibir el cierre del día.
type CachedProvider struct {
	next    ports.MarketDataProvider
	cache   ports.PriceCache
	metrics *observability.Metrics
	now     func() time.Time
}

// NewCachedProvider envuelve next con la caché dada. metrics puede ser nil.
func NewCachedProvider(next ports.MarketDataProvider, cache ports.PriceCache, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, metrics: metrics, now: time.Now}
}

// FetchDailyCloses implementa ports.MarketDataProvider.
func (p *CachedProvider) FetchDailyCloses(ctx context.Context, symbol string, start, end domain.Date) (domain.PriceSeries, error) {
	series, ok, err := p.cache.LoadPrices(ctx, symbol, start, end)
	if err != nil {
		slog.Warn("price cache lookup failed", "symbol", symbol, "err", err)
	}
	p.metrics.ObserveCache(ok && err == nil)
	if ok && err == nil {
		slog.Debug("price cache hit", "symbol", symbol, "start", start, "end", end)
		return series, nil
	}

	series, err = p.next.FetchDailyCloses(ctx, symbol, start, end)
	if err != nil {
		return domain.PriceSeries{}, err
	}

	if end.Before(domain.DateOf(p.now())) {
		// La caché indexa por el símbolo pedido, no por el que devuelva el provider.
		keyed := series
		keyed.Symbol = symbol
		if err := p.cache.SavePrices(ctx, keyed, start, end); err != nil {
			slog.Warn("price cache save failed", "symbol", symbol, "err", err)
		}
	}
	return series, nil
}
