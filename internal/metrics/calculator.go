// Package metrics calcula las métricas de rendimiento por trade y agregadas.
// Todo es puro y en aritmética decimal: mismo input, mismo output.
package metrics

import (
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PerTrade calcula las métricas de un trade.
//
// Fórmulas:
//
//	returnPct   = (sell - buy) / buy × 100
//	daysHeld    = sellDate - buyDate (días enteros, 0 si es intradía)
//	efficiency  = returnPct / daysHeld   (indefinida si daysHeld == 0)
//	netGainLoss = (sell - buy) × quantity
func PerTrade(t domain.TradeRecord) domain.TradeMetrics {
	diff := t.SellPrice.Sub(t.BuyPrice)
	days := t.DaysHeld()

	m := domain.TradeMetrics{
		Trade:       t,
		DaysHeld:    days,
		NetGainLoss: diff.Mul(decimal.NewFromInt(t.Quantity)),
		Efficiency:  domain.UndefinedRatio(),
	}
	// BuyPrice > 0 lo garantiza el validador; aun así no dividimos por cero.
	if !t.BuyPrice.IsZero() {
		m.ReturnPct = diff.Div(t.BuyPrice).Mul(hundred)
	}
	if days > 0 {
		m.Efficiency = domain.DefinedRatio(m.ReturnPct.Div(decimal.NewFromInt(int64(days))))
	}
	return m
}

// Table devuelve las métricas de cada trade en el mismo orden.
func Table(trades []domain.TradeRecord) []domain.TradeMetrics {
	out := make([]domain.TradeMetrics, len(trades))
	for i, t := range trades {
		out[i] = PerTrade(t)
	}
	return out
}

// Aggregate calcula los totales del conjunto de trades.
//
//	totalBuy       = Σ buy × quantity
//	totalSell      = Σ sell × quantity
//	profitLoss     = totalSell - totalBuy
//	totalReturnPct = profitLoss / totalBuy × 100   (indefinida si totalBuy == 0)
func Aggregate(trades []domain.TradeRecord) domain.AggregateMetrics {
	agg := domain.AggregateMetrics{
		TradeCount:     len(trades),
		TotalBuy:       decimal.Zero,
		TotalSell:      decimal.Zero,
		TotalReturnPct: domain.UndefinedRatio(),
	}
	for _, t := range trades {
		agg.TotalBuy = agg.TotalBuy.Add(t.CostBasis())
		agg.TotalSell = agg.TotalSell.Add(t.Proceeds())
	}
	agg.ProfitLoss = agg.TotalSell.Sub(agg.TotalBuy)
	if !agg.TotalBuy.IsZero() {
		agg.TotalReturnPct = domain.DefinedRatio(agg.ProfitLoss.Div(agg.TotalBuy).Mul(hundred))
	}
	return agg
}

// NetReturnPct deriva el retorno total desde la tabla por trade:
// Σ netGainLoss / totalBuy × 100. Debe coincidir con Aggregate.
func NetReturnPct(table []domain.TradeMetrics) domain.Ratio {
	net, buy := decimal.Zero, decimal.Zero
	for _, m := range table {
		net = net.Add(m.NetGainLoss)
		buy = buy.Add(m.Trade.CostBasis())
	}
	if buy.IsZero() {
		return domain.UndefinedRatio()
	}
	return domain.DefinedRatio(net.Div(buy).Mul(hundred))
}
