package domain

import "time"

// Report es el resultado completo de un run de análisis.
type Report struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Trades      []TradeRecord              `json:"trades"`
	Rejected    []*InvalidTradeRecordError `json:"rejected"`
	Valuation   PortfolioValuation         `json:"valuation"`
	TradeTable  []TradeMetrics             `json:"trade_metrics"`
	Aggregate   AggregateMetrics           `json:"aggregate"`
	Warnings    []Warning                  `json:"warnings"`
	Benchmark   string                     `json:"benchmark,omitempty"`
	Risk        []RiskMetric               `json:"risk,omitempty"`
	Comparisons []BenchmarkComparison      `json:"comparisons,omitempty"`
}

// HasIssues indica si hubo filas rechazadas o trades excluidos.
func (r Report) HasIssues() bool {
	return len(r.Rejected) > 0 || len(r.Warnings) > 0
}
