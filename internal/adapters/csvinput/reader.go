// Package csvinput lee trades desde CSV con la cabecera de la plantilla:
//
//	Instrument name, Instrument symbol, Buy price, Buy date, Sell price, Sell date, Quantity
//
// La cabecera no distingue mayúsculas y acepta también los nombres snake_case
// de la API (instrument_name, symbol, buy_price...). El orden de columnas es
// libre. No valida valores: eso lo hace trades.Validator.
package csvinput

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/coeus/internal/domain"
)

// ErrMissingColumn indica una cabecera sin alguna columna obligatoria.
var ErrMissingColumn = errors.New("missing column")

type column int

const (
	colName column = iota
	colSymbol
	colBuyPrice
	colBuyDate
	colSellPrice
	colSellDate
	colQuantity
	numColumns
)

var columnNames = [numColumns]string{
	"instrument name", "instrument symbol", "buy price", "buy date", "sell price", "sell date", "quantity",
}

// aliases: clave normalizada (minúsculas, _ → espacio) → columna.
var aliases = map[string]column{
	"instrument name":   colName,
	"name":              colName,
	"instrument symbol": colSymbol,
	"symbol":            colSymbol,
	"ticker":            colSymbol,
	"buy price":         colBuyPrice,
	"buy date":          colBuyDate,
	"sell price":        colSellPrice,
	"sell date":         colSellDate,
	"quantity":          colQuantity,
	"qty":               colQuantity,
}

// Read lee todas las filas. Row es el número de fila de datos (la primera
// tras la cabecera es 1). Las líneas vacías se ignoran. El nombre del
// instrumento es opcional; el resto de columnas son obligatorias.
func Read(r io.Reader) ([]domain.RawTrade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvinput.Read: header: %w", err)
	}

	idx, err := mapHeader(header)
	if err != nil {
		return nil, fmt.Errorf("csvinput.Read: %w", err)
	}

	var rows []domain.RawTrade
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvinput.Read: row %d: %w", n, err)
		}
		if blank(rec) {
			continue
		}
		rows = append(rows, domain.RawTrade{
			Row:            n,
			InstrumentName: field(rec, idx[colName]),
			Symbol:         field(rec, idx[colSymbol]),
			BuyPrice:       field(rec, idx[colBuyPrice]),
			BuyDate:        field(rec, idx[colBuyDate]),
			SellPrice:      field(rec, idx[colSellPrice]),
			SellDate:       field(rec, idx[colSellDate]),
			Quantity:       field(rec, idx[colQuantity]),
		})
	}
	return rows, nil
}

// ReadFile abre path y llama a Read.
func ReadFile(path string) ([]domain.RawTrade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvinput.ReadFile: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// mapHeader devuelve el índice de cada columna (-1 si es opcional y falta).
func mapHeader(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, "_", " ")
		if c, ok := aliases[key]; ok && idx[c] < 0 {
			idx[c] = i
		}
	}

	var missing []string
	for c := colSymbol; c < numColumns; c++ {
		if idx[c] < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
