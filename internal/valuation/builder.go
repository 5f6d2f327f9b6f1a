package valuation

// builder.go: construye la valoración diaria del portfolio.
//
// Reglas de agregación:
//   - Unión de fechas de todas las posiciones; en cada fecha se suma lo que
//     haya. Una posición sin dato ese día aporta 0, no anula la fila.
//   - Se recorre el calendario [min compra, max venta] y los días que no
//     están en la unión se descartan (nunca se rellenan con 0).

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/marketdata"
)

// SeriesFetcher es el subconjunto de marketdata.Fetcher que usa el Builder.
type SeriesFetcher interface {
	FetchAll(ctx context.Context, reqs []marketdata.Request) []marketdata.Result
}

// Builder convierte trades en PositionValueSeries y las agrega.
type Builder struct {
	fetcher SeriesFetcher
}

// NewBuilder crea un Builder que descarga precios con el fetcher dado.
func NewBuilder(fetcher SeriesFetcher) *Builder {
	return &Builder{fetcher: fetcher}
}

// Build descarga los precios de cada trade en paralelo, calcula el valor de
// cada posición y agrega. Los trades sin datos generan un Warning y quedan
// fuera de la suma. Solo devuelve error si el contexto se cancela.
func (b *Builder) Build(ctx context.Context, trades []domain.TradeRecord) (domain.PortfolioValuation, []domain.Warning, error) {
	positions, warnings, err := b.Positions(ctx, trades)
	if err != nil {
		return domain.PortfolioValuation{}, nil, err
	}

	start, end, ok := domain.Span(trades)
	if !ok {
		return domain.PortfolioValuation{}, warnings, nil
	}
	return Aggregate(positions, start, end), warnings, nil
}

// Positions descarga y calcula la serie de valor de cada trade. Las series
// vuelven en el orden de los trades; los excluidos no aparecen.
func (b *Builder) Positions(ctx context.Context, trades []domain.TradeRecord) ([]domain.PositionValueSeries, []domain.Warning, error) {
	reqs := make([]marketdata.Request, len(trades))
	for i, t := range trades {
		reqs[i] = marketdata.Request{Symbol: t.Symbol, Start: t.BuyDate, End: t.SellDate}
	}

	// Barrera: FetchAll vuelve cuando todas las descargas terminaron.
	results := b.fetcher.FetchAll(ctx, reqs)
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("valuation.Build: %w", err)
	}

	var (
		positions []domain.PositionValueSeries
		warnings  []domain.Warning
	)
	for i, res := range results {
		if res.Err != nil {
			slog.Debug("position excluded",
				"trade", i,
				"row", trades[i].Row,
				"symbol", trades[i].Symbol,
				"err", res.Err,
			)
			warnings = append(warnings, domain.Warning{
				TradeIndex: i,
				Row:        trades[i].Row,
				Symbol:     trades[i].Symbol,
				Err:        res.Err,
			})
			continue
		}
		positions = append(positions, PositionValues(i, trades[i], res.Series))
	}
	return positions, warnings, nil
}

// PositionValues devuelve close × quantity para las fechas de la serie dentro
// de [buyDate, sellDate].
func PositionValues(index int, trade domain.TradeRecord, series domain.PriceSeries) domain.PositionValueSeries {
	qty := float64(trade.Quantity)
	window := series.Between(trade.BuyDate, trade.SellDate)

	pos := domain.PositionValueSeries{
		TradeIndex: index,
		Symbol:     trade.Symbol,
		Points:     make([]domain.ValuePoint, 0, window.Len()),
	}
	for _, p := range window.Points {
		pos.Points = append(pos.Points, domain.ValuePoint{Date: p.Date, Value: p.Close * qty})
	}
	return pos
}

// Aggregate suma las posiciones sobre la unión de sus fechas y reindexa
// sobre el calendario [start, end], descartando los días sin ningún dato.
// Las posiciones se suman en el orden recibido, así el resultado es
// determinista.
func Aggregate(positions []domain.PositionValueSeries, start, end domain.Date) domain.PortfolioValuation {
	union := make(map[domain.Date]float64)
	for _, pos := range positions {
		for _, p := range pos.Points {
			union[p.Date] += p.Value
		}
	}

	out := domain.PortfolioValuation{Start: start, End: end}
	if len(union) == 0 || end.Before(start) {
		return out
	}
	out.Points = make([]domain.ValuePoint, 0, len(union))
	for d := start; !d.After(end); d = d.AddDays(1) {
		if v, ok := union[d]; ok {
			out.Points = append(out.Points, domain.ValuePoint{Date: d, Value: v})
		}
	}
	return out
}
