// Package risk contiene post-procesadores opcionales que consumen la
// valoración del portfolio y una serie benchmark. No forman parte del
// cálculo de la valoración: se ejecutan después, sobre su resultado.
//
// Todas las métricas son fracciones (0.25 = 25%) calculadas sobre
// retornos diarios y anualizadas con 252 sesiones.
package risk

import (
	"math"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// TradingDays es el número de sesiones por año usado para anualizar.
const TradingDays = 252

// Nombres estables de las métricas.
const (
	NameVolatility  = "volatility"
	NameBeta        = "beta"
	NameSharpe      = "sharpe"
	NameTreynor     = "treynor"
	NameMaxDrawdown = "max_drawdown"
)

// Input es lo que recibe cada post-procesador.
type Input struct {
	Valuation    domain.PortfolioValuation
	Benchmark    domain.PriceSeries // puede estar vacía
	RiskFreeRate float64            // anual, como fracción (0.02 = 2%)
}

// PostProcessor calcula una métrica de riesgo. Si no hay datos suficientes o
// un denominador es cero devuelve la métrica con Value indefinido.
type PostProcessor interface {
	Name() string
	Compute(in Input) domain.RiskMetric
}

// Defaults devuelve los post-procesadores estándar en orden de presentación.
func Defaults() []PostProcessor {
	return []PostProcessor{Volatility{}, MaxDrawdown{}, Sharpe{}, Beta{}, Treynor{}}
}

// Run ejecuta los post-procesadores en orden.
func Run(in Input, procs []PostProcessor) []domain.RiskMetric {
	out := make([]domain.RiskMetric, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Compute(in))
	}
	return out
}

// Volatility es la desviación estándar de los retornos diarios × √252.
type Volatility struct{}

func (Volatility) Name() string { return NameVolatility }

func (v Volatility) Compute(in Input) domain.RiskMetric {
	returns := Returns(in.Valuation.Values())
	if len(returns) < 2 {
		return undefined(v.Name())
	}
	return metric(v.Name(), stat.StdDev(returns, nil)*math.Sqrt(TradingDays))
}

// Sharpe = (media diaria - rf diario) / desviación diaria × √252.
type Sharpe struct{}

func (Sharpe) Name() string { return NameSharpe }

func (s Sharpe) Compute(in Input) domain.RiskMetric {
	returns := Returns(in.Valuation.Values())
	if len(returns) < 2 {
		return undefined(s.Name())
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return undefined(s.Name())
	}
	daily := (mean - in.RiskFreeRate/TradingDays) / std
	return metric(s.Name(), daily*math.Sqrt(TradingDays))
}

// Beta = cov(portfolio, benchmark) / var(benchmark) sobre las fechas que
// ambas series tienen en común.
type Beta struct{}

func (Beta) Name() string { return NameBeta }

func (b Beta) Compute(in Input) domain.RiskMetric {
	beta, ok := beta(in)
	if !ok {
		return undefined(b.Name())
	}
	return metric(b.Name(), beta)
}

// Treynor = (retorno total del periodo - rf) / beta.
type Treynor struct{}

func (Treynor) Name() string { return NameTreynor }

func (t Treynor) Compute(in Input) domain.RiskMetric {
	values := in.Valuation.Values()
	if len(values) < 2 || values[0] == 0 {
		return undefined(t.Name())
	}
	beta, ok := beta(in)
	if !ok || beta == 0 {
		return undefined(t.Name())
	}
	total := values[len(values)-1]/values[0] - 1
	return metric(t.Name(), (total-in.RiskFreeRate)/beta)
}

// MaxDrawdown es la mayor caída desde un máximo previo, en positivo.
type MaxDrawdown struct{}

func (MaxDrawdown) Name() string { return NameMaxDrawdown }

func (m MaxDrawdown) Compute(in Input) domain.RiskMetric {
	values := in.Valuation.Values()
	if len(values) < 2 {
		return undefined(m.Name())
	}
	var peak, maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			maxDD = max(maxDD, (peak-v)/peak)
		}
	}
	return metric(m.Name(), maxDD)
}

// Returns convierte valores en retornos simples. Los pasos con base 0 se
// omiten (no hay retorno definido).
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// Align devuelve los valores del portfolio y los cierres del benchmark en
// las fechas que ambos comparten, en orden.
func Align(v domain.PortfolioValuation, bench domain.PriceSeries) (portfolio, benchmark []float64) {
	closes := make(map[domain.Date]float64, bench.Len())
	for _, p := range bench.Points {
		closes[p.Date] = p.Close
	}
	for _, p := range v.Points {
		if c, ok := closes[p.Date]; ok {
			portfolio = append(portfolio, p.Value)
			benchmark = append(benchmark, c)
		}
	}
	return portfolio, benchmark
}

func beta(in Input) (float64, bool) {
	pv, bv := Align(in.Valuation, in.Benchmark)
	if len(pv) < 3 {
		return 0, false
	}
	// Retornos por pares para que ambas series sigan alineadas.
	var pr, br []float64
	for i := 1; i < len(pv); i++ {
		if pv[i-1] == 0 || bv[i-1] == 0 {
			continue
		}
		pr = append(pr, (pv[i]-pv[i-1])/pv[i-1])
		br = append(br, (bv[i]-bv[i-1])/bv[i-1])
	}
	if len(pr) < 2 {
		return 0, false
	}
	variance := stat.Variance(br, nil)
	if variance == 0 {
		return 0, false
	}
	return stat.Covariance(pr, br, nil) / variance, true
}

func metric(name string, v float64) domain.RiskMetric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return undefined(name)
	}
	return domain.RiskMetric{Name: name, Value: domain.DefinedRatio(decimal.NewFromFloat(v))}
}

func undefined(name string) domain.RiskMetric {
	return domain.RiskMetric{Name: name, Value: domain.UndefinedRatio()}
}
