// Package benchmark compara un instrumento con una serie de referencia.
//
// Cada serie se rebasa a su PROPIA primera observación:
//
//	normalized(t) = (close(t) - close(t0)) / close(t0) × 100
//
// así normalized(t0) == 0 por construcción y el retorno acumulado es el
// último valor normalizado.
package benchmark

import (
	"errors"
	"fmt"
	"math"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultSymbol es el S&P 500 en Yahoo.
const DefaultSymbol = "^GSPC"

// Rebase expresa la serie como % de cambio respecto a su primer cierre.
// Devuelve ErrNoDataInRange si la serie está vacía y ErrUndefinedMetric si
// el primer cierre es 0 o algún cambio no es finito.
func Rebase(s domain.PriceSeries) ([]domain.ChangePoint, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", s.Symbol, domain.ErrNoDataInRange)
	}
	base := s.Points[0].Close
	if base == 0 {
		return nil, fmt.Errorf("%s: base close is zero: %w", s.Symbol, domain.ErrUndefinedMetric)
	}
	if !finite(base) {
		return nil, fmt.Errorf("%s: base close is not finite: %w", s.Symbol, domain.ErrUndefinedMetric)
	}

	out := make([]domain.ChangePoint, len(s.Points))
	for i, p := range s.Points {
		pct := (p.Close - base) / base * 100
		// Un cierre NaN o una base subnormal desbordan el cociente.
		if !finite(pct) {
			return nil, fmt.Errorf("%s: change on %s is not finite: %w", s.Symbol, p.Date, domain.ErrUndefinedMetric)
		}
		out[i] = domain.ChangePoint{Date: p.Date, ChangePct: pct}
	}
	// Exacto, sin ruido de coma flotante.
	out[0].ChangePct = 0
	return out, nil
}

// Side construye un lado de la comparación. fetchErr es el error de descarga
// del lado (nil si se obtuvo la serie); cualquier fallo deja el lado como
// DataUnavailable sin afectar al otro.
func Side(symbol string, s domain.PriceSeries, fetchErr error) domain.ComparisonSide {
	side := domain.ComparisonSide{Symbol: symbol, CumulativeReturn: domain.UndefinedRatio()}
	if fetchErr != nil {
		side.Err = asUnavailable(symbol, fetchErr)
		return side
	}

	points, err := Rebase(s)
	if err != nil {
		side.Err = asUnavailable(symbol, err)
		return side
	}
	side.Points = points
	side.CumulativeReturn = domain.DefinedRatio(decimal.NewFromFloat(points[len(points)-1].ChangePct))
	return side
}

// Compare rebasa ambas series de forma independiente. Start y End cubren las
// fechas observadas en cualquiera de los dos lados.
func Compare(instrument, benchmark domain.PriceSeries) domain.BenchmarkComparison {
	c := domain.BenchmarkComparison{
		Instrument: Side(instrument.Symbol, instrument, nil),
		Benchmark:  Side(benchmark.Symbol, benchmark, nil),
	}
	for _, s := range []domain.PriceSeries{instrument, benchmark} {
		if s.Len() == 0 {
			continue
		}
		first, last := s.Points[0].Date, s.Points[s.Len()-1].Date
		if c.Start.IsZero() || first.Before(c.Start) {
			c.Start = first
		}
		if c.End.IsZero() || last.After(c.End) {
			c.End = last
		}
	}
	return c
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func asUnavailable(symbol string, err error) error {
	var unavailable *domain.DataUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	return &domain.DataUnavailableError{Symbol: symbol, Cause: err}
}
