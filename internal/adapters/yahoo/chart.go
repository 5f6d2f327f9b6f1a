// Package yahoo implementa ports.MarketDataProvider sobre la API de chart
// de Yahoo Finance (v8).
package yahoo

import (
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
)

// chartResponse es la respuesta de GET /v8/finance/chart/{symbol}.
// Los cierres pueden venir a null en días sin negociación.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		Adjclose []struct {
			Adjclose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// closes prefiere los cierres ajustados por splits y dividendos. Si Yahoo no
// los envía, o no cuadran con los timestamps, usa el cierre sin ajustar.
func (r chartResult) closes() []*float64 {
	if adj := r.Indicators.Adjclose; len(adj) > 0 && len(adj[0].Adjclose) == len(r.Timestamp) {
		return adj[0].Adjclose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *chartError) classify() error {
	switch strings.ToLower(e.Code) {
	case "not found":
		return fmt.Errorf("%w: %s", domain.ErrNotFound, e.Description)
	case "bad request":
		return fmt.Errorf("%w: %s", domain.ErrNoDataInRange, e.Description)
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrProviderError, e.Code, e.Description)
}

// series convierte la respuesta en una PriceSeries. Las fechas se toman en la
// zona del exchange (gmtoffset) para que una sesión asiática no caiga en el
// día anterior. Los cierres null se omiten.
func (r chartResponse) series(symbol string) (domain.PriceSeries, error) {
	if len(r.Chart.Result) == 0 {
		return domain.PriceSeries{}, domain.ErrNoDataInRange
	}
	res := r.Chart.Result[0]
	closes := res.closes()
	if len(res.Timestamp) == 0 || len(closes) == 0 {
		return domain.PriceSeries{}, domain.ErrNoDataInRange
	}

	out := domain.PriceSeries{Symbol: symbol, Points: make([]domain.PricePoint, 0, len(res.Timestamp))}
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		d := domain.DateOf(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		out.Points = append(out.Points, domain.PricePoint{Date: d, Close: *closes[i]})
	}
	if out.Len() == 0 {
		return domain.PriceSeries{}, domain.ErrNoDataInRange
	}
	return out, nil
}
