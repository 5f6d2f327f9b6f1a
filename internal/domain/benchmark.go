package domain

// ChangePoint es el cambio porcentual acumulado respecto a la primera observación.
type ChangePoint struct {
	Date      Date    `json:"date"`
	ChangePct float64 `json:"change_pct"`
}

// ComparisonSide es un lado (instrumento o benchmark) de la comparación.
// Si Err != nil (DataUnavailable) Points está vacío y CumulativeReturn indefinido.
type ComparisonSide struct {
	Symbol           string        `json:"symbol"`
	Points           []ChangePoint `json:"points"`
	CumulativeReturn Ratio         `json:"cumulative_return"`
	Err              error         `json:"-"`
}

// Available indica si este lado tiene datos.
func (s ComparisonSide) Available() bool { return s.Err == nil }

// MarshalJSON añade el código de error del lado, si lo hay.
func (s ComparisonSide) MarshalJSON() ([]byte, error) {
	type alias ComparisonSide
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(s)}
	if s.Err != nil {
		out.Error = ErrorCode(s.Err)
	}
	return marshalJSON(out)
}

// BenchmarkComparison son dos series rebasadas a 0% en su primera observación.
type BenchmarkComparison struct {
	TradeIndex int            `json:"trade_index"`
	Start      Date           `json:"start"`
	End        Date           `json:"end"`
	Instrument ComparisonSide `json:"instrument"`
	Benchmark  ComparisonSide `json:"benchmark"`
}
