package trades

// validator.go: normaliza y valida filas crudas en TradeRecords tipados.
//
// Se valida una sola vez en la frontera: el resto del motor confía en que
// un domain.TradeRecord cumple precio > 0, cantidad > 0, venta >= compra y
// símbolo no vacío.

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// dateLayouts son los formatos aceptados, en orden. El formato UK (dd/mm/yyyy)
// es el que documentaba la plantilla de CSV original.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02/01/2006",
	"2/1/2006",
}

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

// candidate es la fila ya parseada sobre la que corren las reglas del validator.
type candidate struct {
	Symbol    string    `field:"symbol" validate:"required"`
	BuyPrice  float64   `field:"buy_price" validate:"gt=0"`
	BuyDate   time.Time `field:"buy_date" validate:"required"`
	SellPrice float64   `field:"sell_price" validate:"gt=0"`
	SellDate  time.Time `field:"sell_date" validate:"required,gtefield=BuyDate"`
	Quantity  int64     `field:"quantity" validate:"gt=0"`
}

// Validator convierte domain.RawTrade en domain.TradeRecord. Es seguro para
// uso concurrente.
type Validator struct {
	validate *validator.Validate
}

// NewValidator crea un Validator con los nombres de campo de la entrada.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	return &Validator{validate: v}
}

// Validate valida todas las filas. Las filas inválidas se devuelven aparte
// con el motivo por campo; las válidas siguen en el orden original.
func (v *Validator) Validate(rows []domain.RawTrade) ([]domain.TradeRecord, []*domain.InvalidTradeRecordError) {
	valid := make([]domain.TradeRecord, 0, len(rows))
	var rejected []*domain.InvalidTradeRecordError

	for i, raw := range rows {
		if raw.Row == 0 {
			raw.Row = i + 1
		}
		rec, err := v.ValidateOne(raw)
		if err != nil {
			var invalid *domain.InvalidTradeRecordError
			if errors.As(err, &invalid) {
				rejected = append(rejected, invalid)
			}
			continue
		}
		valid = append(valid, rec)
	}
	return valid, rejected
}

// ValidateOne valida una fila. El error, si lo hay, es *domain.InvalidTradeRecordError.
func (v *Validator) ValidateOne(raw domain.RawTrade) (domain.TradeRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	invalid := &domain.InvalidTradeRecordError{Row: raw.Row, Symbol: symbol}

	buyPrice, err := parsePrice(raw.BuyPrice)
	if err != nil {
		invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: "buy_price", Reason: err.Error()})
	}
	sellPrice, err := parsePrice(raw.SellPrice)
	if err != nil {
		invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: "sell_price", Reason: err.Error()})
	}
	buyDate, err := parseDate(raw.BuyDate)
	if err != nil {
		invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: "buy_date", Reason: err.Error()})
	}
	sellDate, err := parseDate(raw.SellDate)
	if err != nil {
		invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: "sell_date", Reason: err.Error()})
	}
	quantity, err := parseQuantity(raw.Quantity)
	if err != nil {
		invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: "quantity", Reason: err.Error()})
	}

	c := candidate{
		Symbol:    symbol,
		BuyPrice:  buyPrice.InexactFloat64(),
		BuyDate:   buyDate.Time(),
		SellPrice: sellPrice.InexactFloat64(),
		SellDate:  sellDate.Time(),
		Quantity:  quantity,
	}
	if err := v.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.TradeRecord{}, fmt.Errorf("trades.ValidateOne: %w", err)
		}
		for _, fe := range verrs {
			// Un campo que no se pudo parsear ya tiene su motivo.
			if hasIssue(invalid.Issues, fe.Field()) {
				continue
			}
			invalid.Issues = append(invalid.Issues, domain.FieldIssue{Field: fe.Field(), Reason: reason(fe)})
		}
	}

	if len(invalid.Issues) > 0 {
		return domain.TradeRecord{}, invalid
	}

	name := strings.TrimSpace(raw.InstrumentName)
	if name == "" {
		name = symbol
	}
	return domain.TradeRecord{
		Row:            raw.Row,
		InstrumentName: name,
		Symbol:         symbol,
		BuyPrice:       buyPrice,
		BuyDate:        buyDate,
		SellPrice:      sellPrice,
		SellDate:       sellDate,
		Quantity:       quantity,
	}, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("is not a number: %q", s)
	}
	return d, nil
}

func parseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("is not a number: %q", s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("must be a whole number: %q", s)
	}
	// IntPart desborda en silencio fuera de int64.
	if d.GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("is too large: %q", s)
	}
	if d.LessThan(minQuantity) {
		return 0, nil // lo rechaza la regla gt=0
	}
	return d.IntPart(), nil
}

func parseDate(s string) (domain.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Date{}, errors.New("is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t), nil
		}
	}
	return domain.Date{}, fmt.Errorf("is not a date (want yyyy-mm-dd or dd/mm/yyyy): %q", s)
}

func hasIssue(issues []domain.FieldIssue, field string) bool {
	for _, is := range issues {
		if is.Field == field {
			return true
		}
	}
	return false
}

// reason traduce el tag que falló a un motivo legible.
func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtefield":
		return "must not be before buy_date"
	}
	return "failed " + fe.Tag()
}
