package domain

// PricePoint es el cierre diario de un símbolo.
type PricePoint struct {
	Date  Date    `json:"date"`
	Close float64 `json:"close"`
}

// PriceSeries es la serie de cierres que devuelve el provider.
// Fechas estrictamente crecientes, sin duplicados.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len devuelve el número de observaciones.
func (s PriceSeries) Len() int { return len(s.Points) }

// Between devuelve la sub-serie con fechas en [start, end], ambos inclusive.
func (s PriceSeries) Between(start, end Date) PriceSeries {
	out := PriceSeries{Symbol: s.Symbol}
	for _, p := range s.Points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// IsOrdered indica si las fechas son estrictamente crecientes.
func (s PriceSeries) IsOrdered() bool {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i-1].Date.Before(s.Points[i].Date) {
			return false
		}
	}
	return true
}

// ValuePoint es el valor monetario de una posición o del portfolio en un día.
type ValuePoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// PositionValueSeries es close × quantity para un trade, solo en días con datos.
type PositionValueSeries struct {
	TradeIndex int          `json:"trade_index"`
	Symbol     string       `json:"symbol"`
	Points     []ValuePoint `json:"points"`
}

// PortfolioValuation es la serie agregada sobre [Start, End]. Solo contiene
// días donde al menos una posición tiene datos.
type PortfolioValuation struct {
	Start  Date         `json:"start"`
	End    Date         `json:"end"`
	Points []ValuePoint `json:"points"`
}

// ValueAt devuelve el valor en la fecha dada, si existe.
func (v PortfolioValuation) ValueAt(d Date) (float64, bool) {
	for _, p := range v.Points {
		if p.Date == d {
			return p.Value, true
		}
	}
	return 0, false
}

// Values devuelve solo los valores, en orden.
func (v PortfolioValuation) Values() []float64 {
	out := make([]float64, len(v.Points))
	for i, p := range v.Points {
		out[i] = p.Value
	}
	return out
}
