package ports

import (
	"context"

	"github.com/alejandrodnm/coeus/internal/domain"
)

// MarketDataProvider obtiene cierres diarios históricos de un símbolo.
type MarketDataProvider interface {
	// FetchDailyCloses devuelve la serie de cierres en [start, end], ambos
	// inclusive, ordenada por fecha. Los errores envuelven domain.ErrNotFound,
	// domain.ErrNoDataInRange o domain.ErrProviderError (transitorio).
	FetchDailyCloses(ctx context.Context, symbol string, start, end domain.Date) (domain.PriceSeries, error)
}
