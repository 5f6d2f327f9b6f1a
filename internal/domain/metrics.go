package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Ratio es una métrica que puede no estar definida (denominador cero).
// Nunca se convierte en 0 ni en infinito: el consumidor debe mirar Defined.
type Ratio struct {
	value   decimal.Decimal
	defined bool
}

// DefinedRatio construye una métrica con valor.
func DefinedRatio(v decimal.Decimal) Ratio {
	return Ratio{value: v, defined: true}
}

// UndefinedRatio construye una métrica sin valor.
func UndefinedRatio() Ratio { return Ratio{} }

// IsDefined indica si la métrica tiene valor.
func (r Ratio) IsDefined() bool { return r.defined }

// Value devuelve el valor o ErrUndefinedMetric.
func (r Ratio) Value() (decimal.Decimal, error) {
	if !r.defined {
		return decimal.Zero, ErrUndefinedMetric
	}
	return r.value, nil
}

// Float64 devuelve el valor como float64 y si está definido.
func (r Ratio) Float64() (float64, bool) {
	if !r.defined {
		return 0, false
	}
	return r.value.InexactFloat64(), true
}

// StringFixed formatea con places decimales, o "undefined".
func (r Ratio) StringFixed(places int32) string {
	if !r.defined {
		return "undefined"
	}
	return r.value.StringFixed(places)
}

func (r Ratio) String() string { return r.StringFixed(2) }

// MarshalJSON serializa una métrica indefinida como null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return r.value.MarshalJSON()
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}

// TradeMetrics son las métricas de un trade.
type TradeMetrics struct {
	Trade       TradeRecord     `json:"trade"`
	ReturnPct   decimal.Decimal `json:"return_pct"`
	DaysHeld    int             `json:"days_held"`
	Efficiency  Ratio           `json:"efficiency"` // % por día; indefinida si DaysHeld == 0
	NetGainLoss decimal.Decimal `json:"net_gain_loss"`
}

// AggregateMetrics son los totales sobre todo el conjunto de trades.
type AggregateMetrics struct {
	TradeCount     int             `json:"trade_count"`
	TotalBuy       decimal.Decimal `json:"total_buy"`
	TotalSell      decimal.Decimal `json:"total_sell"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	TotalReturnPct Ratio           `json:"total_return_pct"` // indefinida si TotalBuy == 0
}

// RiskMetric es la salida de un post-procesador de riesgo.
type RiskMetric struct {
	Name  string `json:"name"`
	Value Ratio  `json:"value"`
}

func marshalJSON(v any) ([]byte, error) { return json.Marshal(v) }
