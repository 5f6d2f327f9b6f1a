package domain_test

import (
	"testing"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceSeries_Between(t *testing.T) {
	s := domain.PriceSeries{Symbol: "TSLA", Points: []domain.PricePoint{
		{Date: domain.MustParseDate("2020-01-02"), Close: 1},
		{Date: domain.MustParseDate("2020-01-03"), Close: 2},
		{Date: domain.MustParseDate("2020-01-06"), Close: 3},
	}}

	got := s.Between(domain.MustParseDate("2020-01-03"), domain.MustParseDate("2020-01-06"))
	assert.Equal(t, "TSLA", got.Symbol)
	assert.Equal(t, 2, got.Len())
	assert.True(t, got.IsOrdered())

	assert.Zero(t, s.Between(domain.MustParseDate("2021-01-01"), domain.MustParseDate("2021-12-31")).Len())
}

func TestPriceSeries_IsOrdered(t *testing.T) {
	dup := domain.PriceSeries{Points: []domain.PricePoint{
		{Date: domain.MustParseDate("2020-01-02")},
		{Date: domain.MustParseDate("2020-01-02")},
	}}
	assert.False(t, dup.IsOrdered())
}

func TestPortfolioValuation_ValueAt(t *testing.T) {
	v := domain.PortfolioValuation{Points: []domain.ValuePoint{
		{Date: domain.MustParseDate("2020-01-02"), Value: 1000},
		{Date: domain.MustParseDate("2020-01-03"), Value: 1100},
	}}
	got, ok := v.ValueAt(domain.MustParseDate("2020-01-03"))
	assert.True(t, ok)
	assert.InDelta(t, 1100, got, 1e-9)

	_, ok = v.ValueAt(domain.MustParseDate("2020-01-04"))
	assert.False(t, ok)
	assert.Equal(t, []float64{1000, 1100}, v.Values())
}

func TestTradeRecord_Derived(t *testing.T) {
	tr := domain.TradeRecord{
		BuyPrice: decimal.RequireFromString("75.09"), BuyDate: domain.MustParseDate("2020-01-02"),
		SellPrice: decimal.RequireFromString("79.24"), SellDate: domain.MustParseDate("2020-01-10"),
		Quantity: 20,
	}
	assert.Equal(t, 8, tr.DaysHeld())
	assert.Equal(t, "1501.8", tr.CostBasis().String())
	assert.Equal(t, "1584.8", tr.Proceeds().String())
}

func TestSpan(t *testing.T) {
	_, _, ok := domain.Span(nil)
	assert.False(t, ok)

	start, end, ok := domain.Span([]domain.TradeRecord{
		{BuyDate: domain.MustParseDate("2020-03-01"), SellDate: domain.MustParseDate("2020-03-05")},
		{BuyDate: domain.MustParseDate("2020-01-02"), SellDate: domain.MustParseDate("2020-01-10")},
	})
	assert.True(t, ok)
	assert.Equal(t, domain.MustParseDate("2020-01-02"), start)
	assert.Equal(t, domain.MustParseDate("2020-03-05"), end)
}
