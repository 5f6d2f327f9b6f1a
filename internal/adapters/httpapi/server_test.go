package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/coeus/internal/adapters/httpapi"
	"github.com/alejandrodnm/coeus/internal/application/analysis"
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/marketdata"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAnalyzer struct {
	rows      []domain.RawTrade
	raw       domain.RawTrade
	benchmark string
	runErr    error
	cmpErr    error
}

func (m *mockAnalyzer) Run(_ context.Context, rows []domain.RawTrade) (domain.Report, error) {
	m.rows = rows
	if m.runErr != nil {
		return domain.Report{}, m.runErr
	}
	return domain.Report{RunID: "run-1", Benchmark: "^GSPC"}, nil
}

func (m *mockAnalyzer) CompareRaw(_ context.Context, raw domain.RawTrade, benchmark string) (domain.BenchmarkComparison, error) {
	m.raw = raw
	m.benchmark = benchmark
	if m.cmpErr != nil {
		return domain.BenchmarkComparison{}, m.cmpErr
	}
	return domain.BenchmarkComparison{
		Instrument: domain.ComparisonSide{Symbol: "TSLA"},
		Benchmark:  domain.ComparisonSide{Symbol: benchmark},
	}, nil
}

type mapProvider map[string][]domain.PricePoint

func (m mapProvider) FetchDailyCloses(_ context.Context, symbol string, _, _ domain.Date) (domain.PriceSeries, error) {
	pts, ok := m[symbol]
	if !ok {
		return domain.PriceSeries{}, domain.ErrNotFound
	}
	return domain.PriceSeries{Symbol: symbol, Points: pts}, nil
}

// --- helpers ---

func newServer(a httpapi.Analyzer, m *observability.Metrics) *httptest.Server {
	srv := httpapi.New(httpapi.Config{}, a, m)
	return httptest.NewServer(srv.Handler())
}

func post(t *testing.T, url, contentType, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const tslaJSON = `{"instrument_name":"Tesla","symbol":"TSLA","buy_price":"100","buy_date":"2020-01-02","sell_price":"150","sell_date":"2020-01-10","quantity":"10"}`

// --- tests ---

func TestHealth(t *testing.T) {
	ts := newServer(&mockAnalyzer{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestAnalyze_JSONNumbersRows(t *testing.T) {
	a := &mockAnalyzer{}
	ts := newServer(a, nil)
	defer ts.Close()

	resp, out := post(t, ts.URL+"/api/analyze", "application/json", `{"trades":[`+tslaJSON+`,`+tslaJSON+`]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "run-1", out["run_id"])

	require.Len(t, a.rows, 2)
	assert.Equal(t, 1, a.rows[0].Row)
	assert.Equal(t, 2, a.rows[1].Row)
	assert.Equal(t, "TSLA", a.rows[0].Symbol)
}

func TestAnalyze_CSVBody(t *testing.T) {
	a := &mockAnalyzer{}
	ts := newServer(a, nil)
	defer ts.Close()

	csv := "Instrument name,Instrument symbol,Buy price,Buy date,Sell price,Sell date,Quantity\n" +
		"Tesla,TSLA,100,02/01/2020,150,10/01/2020,10\n"
	resp, _ := post(t, ts.URL+"/api/analyze", "text/csv; charset=utf-8", csv)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, a.rows, 1)
	assert.Equal(t, "02/01/2020", a.rows[0].BuyDate)
}

func TestAnalyze_BadInput(t *testing.T) {
	tests := []struct {
		name, contentType, body string
	}{
		{"malformed json", "application/json", `{"trades":[`},
		{"unknown field", "application/json", `{"rows":[]}`},
		{"csv missing column", "text/csv", "symbol,buy price\nTSLA,100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAnalyzer{}
			ts := newServer(a, nil)
			defer ts.Close()

			resp, out := post(t, ts.URL+"/api/analyze", tt.contentType, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_input", out["code"])
			assert.Nil(t, a.rows, "no debe llegar al analizador")
		})
	}
}

func TestAnalyze_NoTradesIsBadRequest(t *testing.T) {
	a := &mockAnalyzer{runErr: domain.ErrNoTrades}
	ts := newServer(a, nil)
	defer ts.Close()

	resp, out := post(t, ts.URL+"/api/analyze", "application/json", `{"trades":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no_trades", out["code"])
}

func TestAnalyze_InternalError(t *testing.T) {
	a := &mockAnalyzer{runErr: assert.AnError}
	ts := newServer(a, nil)
	defer ts.Close()

	resp, _ := post(t, ts.URL+"/api/analyze", "application/json", `{"trades":[`+tslaJSON+`]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCompare_OK(t *testing.T) {
	a := &mockAnalyzer{}
	ts := newServer(a, nil)
	defer ts.Close()

	resp, out := post(t, ts.URL+"/api/compare", "application/json", `{"trade":`+tslaJSON+`,"benchmark":"^IXIC"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "^IXIC", a.benchmark)
	assert.Equal(t, "TSLA", a.raw.Symbol)
	assert.Equal(t, "^IXIC", out["benchmark"].(map[string]any)["symbol"])
}

func TestCompare_InvalidTradeIs422(t *testing.T) {
	a := &mockAnalyzer{cmpErr: &domain.InvalidTradeRecordError{
		Row:    1,
		Issues: []domain.FieldIssue{{Field: "sell_date", Reason: "must not be before buy_date"}},
	}}
	ts := newServer(a, nil)
	defer ts.Close()

	resp, out := post(t, ts.URL+"/api/compare", "application/json", `{"trade":`+tslaJSON+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_trade_record", out["code"])

	issues := out["details"].(map[string]any)["issues"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "sell_date", issues[0].(map[string]any)["field"])
}

func TestCompare_MissingTrade(t *testing.T) {
	ts := newServer(&mockAnalyzer{}, nil)
	defer ts.Close()

	resp, _ := post(t, ts.URL+"/api/compare", "application/json", `{"benchmark":"^GSPC"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics("test")
	ts := newServer(&mockAnalyzer{}, m)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/health", "200")))
}

func TestMetricsEndpoint_DisabledWithoutMetrics(t *testing.T) {
	ts := newServer(&mockAnalyzer{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	p := mapProvider{"TSLA": {
		{Date: domain.MustParseDate("2020-01-02"), Close: 100},
		{Date: domain.MustParseDate("2020-01-10"), Close: 150},
	}}
	fetcher := marketdata.NewFetcher(marketdata.Config{Workers: 2, Attempts: 1, Timeout: time.Second}, p, nil)
	a := analysis.New(analysis.Config{}, fetcher, nil, nil)
	ts := newServer(a, nil)
	defer ts.Close()

	resp, out := post(t, ts.URL+"/api/analyze", "application/json", `{"trades":[`+tslaJSON+`]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	agg := out["aggregate"].(map[string]any)
	assert.Equal(t, "500", agg["profit_loss"])
	assert.Equal(t, "50", agg["total_return_pct"])

	points := out["valuation"].(map[string]any)["points"].([]any)
	assert.Len(t, points, 2)
}
