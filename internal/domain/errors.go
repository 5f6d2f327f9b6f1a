package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomía de errores del motor. Todos se comparan con errors.Is.
var (
	// ErrInvalidTradeRecord: una fila de entrada no pasó la validación.
	ErrInvalidTradeRecord = errors.New("invalid trade record")
	// ErrDataUnavailable: el provider no tiene datos para el símbolo/rango.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrUndefinedMetric: métrica con denominador cero.
	ErrUndefinedMetric = errors.New("undefined metric")
	// ErrProviderError: fallo transitorio de la fuente de datos (se reintenta).
	ErrProviderError = errors.New("provider error")

	// Resultados del provider que no se reintentan.
	ErrNotFound      = errors.New("symbol not found")
	ErrNoDataInRange = errors.New("no data in range")

	// ErrNoTrades es el único fallo de run completo: entrada vacía.
	ErrNoTrades = errors.New("no trades in input")
)

// FieldIssue describe por qué un campo concreto de la fila es inválido.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InvalidTradeRecordError agrupa los problemas de una fila rechazada.
type InvalidTradeRecordError struct {
	Row    int          `json:"row"`
	Symbol string       `json:"symbol,omitempty"`
	Issues []FieldIssue `json:"issues"`
}

func (e *InvalidTradeRecordError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+" "+is.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, ErrInvalidTradeRecord, strings.Join(parts, "; "))
}

func (e *InvalidTradeRecordError) Unwrap() error { return ErrInvalidTradeRecord }

// DataUnavailableError indica que un símbolo quedó excluido por falta de datos.
// Cause conserva el error original del provider (NotFound, NoDataInRange o
// ProviderError tras agotar reintentos).
type DataUnavailableError struct {
	Symbol string
	Start  Date
	End    Date
	Cause  error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s [%s, %s]", ErrDataUnavailable, e.Symbol, e.Start, e.End)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

func (e *DataUnavailableError) Unwrap() error { return e.Cause }

// Warning es un problema no fatal de un trade concreto, reportado junto a
// los resultados. TradeIndex indexa Report.Trades (solo trades aceptados);
// Row es la fila de entrada de ese trade, 0 si el aviso no viene de una fila.
type Warning struct {
	TradeIndex int
	Row        int
	Symbol     string
	Err        error
}

func (w Warning) Error() string {
	if w.Row > 0 {
		return fmt.Sprintf("trade %d (%s, row %d): %v", w.TradeIndex, w.Symbol, w.Row, w.Err)
	}
	return fmt.Sprintf("trade %d (%s): %v", w.TradeIndex, w.Symbol, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// MarshalJSON expone el warning con un código estable para consumidores externos.
func (w Warning) MarshalJSON() ([]byte, error) {
	msg := ""
	if w.Err != nil {
		msg = w.Err.Error()
	}
	return marshalJSON(struct {
		TradeIndex int    `json:"trade_index"`
		Row        int    `json:"row"`
		Symbol     string `json:"symbol"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	}{w.TradeIndex, w.Row, w.Symbol, ErrorCode(w.Err), msg})
}

// ErrorCode mapea un error a su código de la taxonomía.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTradeRecord):
		return "invalid_trade_record"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrUndefinedMetric):
		return "undefined_metric"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoDataInRange):
		return "no_data_in_range"
	case errors.Is(err, ErrNoTrades):
		return "no_trades"
	}
	return "internal"
}
