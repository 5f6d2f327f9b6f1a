// Package analysis orquesta un run completo: validar → valorar → métricas →
// benchmark/riesgo → reporter.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/coeus/internal/benchmark"
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/marketdata"
	"github.com/alejandrodnm/coeus/internal/metrics"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/alejandrodnm/coeus/internal/ports"
	"github.com/alejandrodnm/coeus/internal/risk"
	"github.com/alejandrodnm/coeus/internal/trades"
	"github.com/alejandrodnm/coeus/internal/valuation"
	"github.com/google/uuid"
)

// BenchmarkTradeIndex marca en Report.Warnings el aviso del benchmark del run,
// que no pertenece a ningún trade.
const BenchmarkTradeIndex = -1

// Config contiene la configuración del analizador.
type Config struct {
	Benchmark    string  // símbolo de referencia ("" desactiva benchmark y beta)
	Compare      bool    // comparar cada trade contra el benchmark
	Risk         bool    // ejecutar los post-procesadores de riesgo
	RiskFreeRate float64 // anual, como fracción
}

// Analyzer ejecuta runs de análisis. No guarda estado entre runs: cada Run
// es dueño de sus trades, series y resultados.
type Analyzer struct {
	cfg       Config
	fetcher   valuation.SeriesFetcher
	validator *trades.Validator
	builder   *valuation.Builder
	reporter  ports.Reporter
	metrics   *observability.Metrics
	risk      []risk.PostProcessor
	now       func() time.Time
}

// New crea un Analyzer. reporter y m pueden ser nil.
func New(cfg Config, fetcher valuation.SeriesFetcher, reporter ports.Reporter, m *observability.Metrics) *Analyzer {
	cfg.Benchmark = normalizeSymbol(cfg.Benchmark)
	return &Analyzer{
		cfg:       cfg,
		fetcher:   fetcher,
		validator: trades.NewValidator(),
		builder:   valuation.NewBuilder(fetcher),
		reporter:  reporter,
		metrics:   m,
		risk:      risk.Defaults(),
		now:       time.Now,
	}
}

// SetPostProcessors reemplaza los post-procesadores de riesgo.
func (a *Analyzer) SetPostProcessors(procs []risk.PostProcessor) {
	a.risk = procs
}

// Run analiza las filas de entrada. Solo una entrada vacía o la cancelación
// del contexto hacen fallar el run; los errores por fila o por trade viajan
// en el Report.
func (a *Analyzer) Run(ctx context.Context, rows []domain.RawTrade) (domain.Report, error) {
	start := a.now()
	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	if len(rows) == 0 {
		a.metrics.ObserveRun(observability.RunFailed, time.Since(start), 0, 0)
		return domain.Report{}, fmt.Errorf("analysis.Run: %w", domain.ErrNoTrades)
	}

	accepted, rejected := a.validator.Validate(rows)
	for _, r := range rejected {
		log.Debug("row rejected", "row", r.Row, "err", r)
	}

	report := domain.Report{
		RunID:       runID,
		GeneratedAt: start.UTC(),
		Trades:      accepted,
		Rejected:    rejected,
		TradeTable:  metrics.Table(accepted),
		Aggregate:   metrics.Aggregate(accepted),
		Benchmark:   a.cfg.Benchmark,
	}

	val, warnings, err := a.builder.Build(ctx, accepted)
	if err != nil {
		a.metrics.ObserveRun(observability.RunFailed, time.Since(start), len(rejected), 0)
		return domain.Report{}, fmt.Errorf("analysis.Run: %w", err)
	}
	report.Valuation = val
	report.Warnings = warnings
	excluded := len(warnings)

	if err := a.runBenchmark(ctx, &report); err != nil {
		a.metrics.ObserveRun(observability.RunFailed, time.Since(start), len(rejected), excluded)
		return domain.Report{}, fmt.Errorf("analysis.Run: %w", err)
	}

	if a.cfg.Compare && a.cfg.Benchmark != "" && len(accepted) > 0 {
		comparisons, err := a.compareAll(ctx, accepted, a.cfg.Benchmark)
		if err != nil {
			a.metrics.ObserveRun(observability.RunFailed, time.Since(start), len(rejected), excluded)
			return domain.Report{}, fmt.Errorf("analysis.Run: compare: %w", err)
		}
		report.Comparisons = comparisons
	}

	if a.reporter != nil {
		if err := a.reporter.Report(ctx, report); err != nil {
			log.Warn("reporter error", "err", err)
		}
	}

	status := observability.RunOK
	if report.HasIssues() {
		status = observability.RunPartial
	}
	a.metrics.ObserveRun(status, time.Since(start), len(rejected), excluded)

	log.Info("analysis run complete",
		"rows", len(rows),
		"accepted", len(accepted),
		"rejected", len(rejected),
		"excluded", excluded,
		"points", len(report.Valuation.Points),
		"profit_loss", report.Aggregate.ProfitLoss.StringFixed(2),
		"total_return_pct", report.Aggregate.TotalReturnPct.StringFixed(2),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

// runBenchmark descarga el benchmark sobre el rango del portfolio y ejecuta
// los post-procesadores de riesgo. Si el benchmark no está disponible se
// añade un warning y las métricas que lo necesitan quedan indefinidas.
func (a *Analyzer) runBenchmark(ctx context.Context, report *domain.Report) error {
	if !a.cfg.Risk || len(a.risk) == 0 || len(report.Valuation.Points) == 0 {
		return nil
	}

	var bench domain.PriceSeries
	if a.cfg.Benchmark != "" {
		res := a.fetcher.FetchAll(ctx, []marketdata.Request{{
			Symbol: a.cfg.Benchmark,
			Start:  report.Valuation.Start,
			End:    report.Valuation.End,
		}})
		if err := ctx.Err(); err != nil {
			return err
		}
		if res[0].Err != nil {
			report.Warnings = append(report.Warnings, domain.Warning{
				TradeIndex: BenchmarkTradeIndex,
				Symbol:     a.cfg.Benchmark,
				Err:        res[0].Err,
			})
		} else {
			bench = res[0].Series
		}
	}

	report.Risk = risk.Run(risk.Input{
		Valuation:    report.Valuation,
		Benchmark:    bench,
		RiskFreeRate: a.cfg.RiskFreeRate,
	}, a.risk)
	return nil
}

// CompareTrade compara un trade validado contra benchmarkSymbol (o el
// benchmark configurado, o ^GSPC) sobre [buyDate, sellDate]. Un lado sin
// datos no es error: queda marcado en la comparación.
func (a *Analyzer) CompareTrade(ctx context.Context, trade domain.TradeRecord, benchmarkSymbol string) (domain.BenchmarkComparison, error) {
	out, err := a.compareAll(ctx, []domain.TradeRecord{trade}, a.benchmarkOr(benchmarkSymbol))
	if err != nil {
		return domain.BenchmarkComparison{}, fmt.Errorf("analysis.CompareTrade: %w", err)
	}
	return out[0], nil
}

// CompareRaw valida la fila y la compara. Si la fila es inválida devuelve
// *domain.InvalidTradeRecordError.
func (a *Analyzer) CompareRaw(ctx context.Context, raw domain.RawTrade, benchmarkSymbol string) (domain.BenchmarkComparison, error) {
	if raw.Row == 0 {
		raw.Row = 1
	}
	trade, err := a.validator.ValidateOne(raw)
	if err != nil {
		return domain.BenchmarkComparison{}, err
	}
	return a.CompareTrade(ctx, trade, benchmarkSymbol)
}

// compareAll lanza instrumento y benchmark de todos los trades en un solo
// pool: 2 requests por trade, resultados en orden.
func (a *Analyzer) compareAll(ctx context.Context, list []domain.TradeRecord, bench string) ([]domain.BenchmarkComparison, error) {
	reqs := make([]marketdata.Request, 0, len(list)*2)
	for _, t := range list {
		reqs = append(reqs,
			marketdata.Request{Symbol: t.Symbol, Start: t.BuyDate, End: t.SellDate},
			marketdata.Request{Symbol: bench, Start: t.BuyDate, End: t.SellDate},
		)
	}

	results := a.fetcher.FetchAll(ctx, reqs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.BenchmarkComparison, len(list))
	for i, t := range list {
		inst, ref := results[2*i], results[2*i+1]
		out[i] = domain.BenchmarkComparison{
			TradeIndex: i,
			Start:      t.BuyDate,
			End:        t.SellDate,
			Instrument: benchmark.Side(t.Symbol, inst.Series, inst.Err),
			Benchmark:  benchmark.Side(bench, ref.Series, ref.Err),
		}
	}
	return out, nil
}

func (a *Analyzer) benchmarkOr(symbol string) string {
	symbol = normalizeSymbol(symbol)
	switch {
	case symbol != "":
		return symbol
	case a.cfg.Benchmark != "":
		return a.cfg.Benchmark
	}
	return benchmark.DefaultSymbol
}

func normalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// IsClientError indica si err se debe a la entrada y no al sistema.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrNoTrades) || errors.Is(err, domain.ErrInvalidTradeRecord)
}
