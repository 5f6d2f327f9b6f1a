package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Formatos de salida soportados.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Console implementa ports.Reporter.
type Console struct {
	out     io.Writer
	output  string
	verbose bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(output string, verbose bool) *Console {
	return NewConsoleWriter(os.Stdout, output, verbose)
}

// NewConsoleWriter crea un reporter sobre w (tests, ficheros).
// Un output desconocido cae a tabla.
func NewConsoleWriter(w io.Writer, output string, verbose bool) *Console {
	if output != OutputJSON {
		output = OutputTable
	}
	return &Console{out: w, output: output, verbose: verbose}
}

// Report imprime el informe en el modo configurado.
func (c *Console) Report(_ context.Context, r domain.Report) error {
	if c.output == OutputJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("notify.Report: encode: %w", err)
		}
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %s  %d trades  %d rejected  %d warnings\n",
		r.GeneratedAt.Format("2006-01-02 15:04:05"), shortID(r.RunID),
		len(r.Trades), len(r.Rejected), len(r.Warnings))

	if len(r.Trades) == 0 {
		fmt.Fprintln(c.out, "  no valid trades")
	} else {
		c.printTrades(r.TradeTable)
		c.printAggregate(r.Aggregate)
		c.printValuation(r.Valuation)
	}
	c.printRisk(r.Benchmark, r.Risk)
	c.printComparisons(r.Trades, r.Comparisons)
	c.printIssues(r)
	return nil
}

// printTrades imprime la tabla por trade.
func (c *Console) printTrades(rows []domain.TradeMetrics) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Instrument", "Symbol", "Buy", "Buy date", "Sell", "Sell date", "Qty", "Return %", "Days", "%/day", "Net G/L")

	for i, m := range rows {
		t := m.Trade
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(t.InstrumentName, 24),
			t.Symbol,
			t.BuyPrice.StringFixed(2),
			t.BuyDate.String(),
			t.SellPrice.StringFixed(2),
			t.SellDate.String(),
			fmt.Sprintf("%d", t.Quantity),
			m.ReturnPct.StringFixed(2),
			fmt.Sprintf("%d", m.DaysHeld),
			m.Efficiency.StringFixed(2),
			m.NetGainLoss.StringFixed(2),
		)
	}
	table.Render()
	fmt.Fprintln(c.out, "  %/day = return % / days held (undefined for same-day trades)")
}

func (c *Console) printAggregate(a domain.AggregateMetrics) {
	fmt.Fprintf(c.out, "\n=== PORTFOLIO (%d trades) ===\n", a.TradeCount)
	fmt.Fprintf(c.out, "  Total buy:    %s\n", a.TotalBuy.StringFixed(2))
	fmt.Fprintf(c.out, "  Total sell:   %s\n", a.TotalSell.StringFixed(2))
	fmt.Fprintf(c.out, "  Profit/loss:  %s\n", a.ProfitLoss.StringFixed(2))
	fmt.Fprintf(c.out, "  Return:       %s%%\n", a.TotalReturnPct.StringFixed(2))
}

// printValuation imprime un resumen; con verbose, la serie completa.
func (c *Console) printValuation(v domain.PortfolioValuation) {
	if len(v.Points) == 0 {
		fmt.Fprintf(c.out, "\n  Valuation: no market data in [%s, %s]\n", v.Start, v.End)
		return
	}
	first, last := v.Points[0], v.Points[len(v.Points)-1]
	lo, hi := first, first
	for _, p := range v.Points {
		if p.Value < lo.Value {
			lo = p
		}
		if p.Value > hi.Value {
			hi = p
		}
	}
	fmt.Fprintf(c.out, "\n=== VALUATION [%s, %s] %d days with data ===\n", v.Start, v.End, len(v.Points))
	fmt.Fprintf(c.out, "  First: %s  %.2f\n", first.Date, first.Value)
	fmt.Fprintf(c.out, "  Last:  %s  %.2f\n", last.Date, last.Value)
	fmt.Fprintf(c.out, "  Low:   %s  %.2f\n", lo.Date, lo.Value)
	fmt.Fprintf(c.out, "  High:  %s  %.2f\n", hi.Date, hi.Value)

	if !c.verbose {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Value")
	for _, p := range v.Points {
		table.Append(p.Date.String(), fmt.Sprintf("%.2f", p.Value))
	}
	table.Render()
}

func (c *Console) printRisk(benchmark string, metrics []domain.RiskMetric) {
	if len(metrics) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== RISK (benchmark %s) ===\n", benchmark)
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	for _, m := range metrics {
		table.Append(m.Name, m.Value.StringFixed(4))
	}
	table.Render()
}

func (c *Console) printComparisons(trades []domain.TradeRecord, cmps []domain.BenchmarkComparison) {
	if len(cmps) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== BENCHMARK COMPARISON ===\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Instrument", "Window", "Instrument %", "Benchmark", "Benchmark %")
	for _, cmp := range cmps {
		name := cmp.Instrument.Symbol
		if cmp.TradeIndex >= 0 && cmp.TradeIndex < len(trades) {
			name = truncate(trades[cmp.TradeIndex].InstrumentName, 24)
		}
		table.Append(
			fmt.Sprintf("%d", cmp.TradeIndex+1),
			name,
			fmt.Sprintf("%s → %s", cmp.Start, cmp.End),
			sideLabel(cmp.Instrument),
			cmp.Benchmark.Symbol,
			sideLabel(cmp.Benchmark),
		)
	}
	table.Render()
}

// printIssues lista filas rechazadas y trades excluidos.
func (c *Console) printIssues(r domain.Report) {
	if !r.HasIssues() {
		return
	}
	fmt.Fprintln(c.out)
	for _, rej := range r.Rejected {
		fmt.Fprintf(c.out, "  ✗ %s\n", rej.Error())
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(c.out, "  ⚠ [%s] %s\n", domain.ErrorCode(w.Err), w.Error())
	}
}

// --- helpers ---

func sideLabel(s domain.ComparisonSide) string {
	if !s.Available() {
		return "n/a (" + domain.ErrorCode(s.Err) + ")"
	}
	return s.CumulativeReturn.StringFixed(2)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
