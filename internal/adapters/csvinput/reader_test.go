package csvinput_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alejandrodnm/coeus/internal/adapters/csvinput"
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_TemplateHeader(t *testing.T) {
	in := "Instrument name,Instrument symbol,Buy price,Buy date,Sell price,Sell date,Quantity\n" +
		"Tesla,TSLA,100,02/01/2020,150,10/01/2020,10\n"

	rows, err := csvinput.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RawTrade{
		Row:            1,
		InstrumentName: "Tesla",
		Symbol:         "TSLA",
		BuyPrice:       "100",
		BuyDate:        "02/01/2020",
		SellPrice:      "150",
		SellDate:       "10/01/2020",
		Quantity:       "10",
	}, rows[0])
}

func TestRead_HeaderIsCaseInsensitiveAndOrderFree(t *testing.T) {
	in := "QUANTITY, SELL DATE, SELL PRICE, BUY DATE, BUY PRICE, INSTRUMENT SYMBOL, INSTRUMENT NAME\n" +
		"10, 2020-01-10, 150, 2020-01-02, 100, tsla, Tesla\n"

	rows, err := csvinput.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tsla", rows[0].Symbol)
	assert.Equal(t, "10", rows[0].Quantity)
	assert.Equal(t, "2020-01-02", rows[0].BuyDate)
}

func TestRead_SnakeCaseAndOptionalName(t *testing.T) {
	in := "\ufeffsymbol,buy_price,buy_date,sell_price,sell_date,quantity\n" +
		"AAPL,75.09,2020-01-02,79.24,2020-01-10,20\n"

	rows, err := csvinput.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Empty(t, rows[0].InstrumentName)
}

func TestRead_MissingColumn(t *testing.T) {
	in := "Instrument symbol,Buy price,Buy date,Sell price\nTSLA,100,2020-01-02,150\n"

	_, err := csvinput.Read(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, csvinput.ErrMissingColumn))
	assert.Contains(t, err.Error(), "sell date")
	assert.Contains(t, err.Error(), "quantity")
}

func TestRead_SkipsBlankRowsButKeepsNumbering(t *testing.T) {
	in := "symbol,buy price,buy date,sell price,sell date,quantity\n" +
		"AAA,1,2020-01-02,2,2020-01-03,1\n" +
		",,,,,\n" +
		"BBB,1,2020-01-02,2,2020-01-03,1\n"

	rows, err := csvinput.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Row)
	assert.Equal(t, 3, rows[1].Row)
}

func TestRead_ShortRowLeavesFieldsEmpty(t *testing.T) {
	in := "symbol,buy price,buy date,sell price,sell date,quantity\nAAA,1,2020-01-02\n"

	rows, err := csvinput.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].SellPrice)
	assert.Empty(t, rows[0].Quantity)
}

func TestRead_Empty(t *testing.T) {
	rows, err := csvinput.Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadFile_Template(t *testing.T) {
	rows, err := csvinput.ReadFile("../../../testdata/trades.csv")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "MSFT", rows[2].Symbol)
	assert.Equal(t, "06/01/2020", rows[2].SellDate)
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := csvinput.ReadFile("does-not-exist.csv")
	assert.Error(t, err)
}
