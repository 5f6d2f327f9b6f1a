package domain

import "github.com/shopspring/decimal"

// RawTrade es una fila de entrada tal cual llega (CSV, JSON). Sin validar.
type RawTrade struct {
	Row            int    `json:"row,omitempty"`
	InstrumentName string `json:"instrument_name"`
	Symbol         string `json:"symbol"`
	BuyPrice       string `json:"buy_price"`
	BuyDate        string `json:"buy_date"`
	SellPrice      string `json:"sell_price"`
	SellDate       string `json:"sell_date"`
	Quantity       string `json:"quantity"`
}

// TradeRecord es un trade cerrado ya validado. Solo lo construye el
// validador; el resto del motor lo trata como inmutable.
type TradeRecord struct {
	Row            int             `json:"row"`
	InstrumentName string          `json:"instrument_name"`
	Symbol         string          `json:"symbol"`
	BuyPrice       decimal.Decimal `json:"buy_price"`
	BuyDate        Date            `json:"buy_date"`
	SellPrice      decimal.Decimal `json:"sell_price"`
	SellDate       Date            `json:"sell_date"`
	Quantity       int64           `json:"quantity"`
}

// DaysHeld devuelve los días enteros entre compra y venta (0 para intradía).
func (t TradeRecord) DaysHeld() int {
	return t.BuyDate.DaysUntil(t.SellDate)
}

// CostBasis devuelve buyPrice × quantity.
func (t TradeRecord) CostBasis() decimal.Decimal {
	return t.BuyPrice.Mul(decimal.NewFromInt(t.Quantity))
}

// Proceeds devuelve sellPrice × quantity.
func (t TradeRecord) Proceeds() decimal.Decimal {
	return t.SellPrice.Mul(decimal.NewFromInt(t.Quantity))
}

// Span devuelve el rango de calendario [min buyDate, max sellDate] de los trades.
// ok es false si no hay trades.
func Span(trades []TradeRecord) (start, end Date, ok bool) {
	for i, t := range trades {
		if i == 0 || t.BuyDate.Before(start) {
			start = t.BuyDate
		}
		if i == 0 || t.SellDate.After(end) {
			end = t.SellDate
		}
	}
	return start, end, len(trades) > 0
}
