package yahoo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/coeus/internal/adapters/yahoo"
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *yahoo.Client {
	return yahoo.NewClient(yahoo.Config{
		BaseURL:    srv.URL,
		RatePerSec: 1000,
		Burst:      10,
		Timeout:    2 * time.Second,
		RetryWait:  time.Millisecond,
	})
}

func day(s string) domain.Date { return domain.MustParseDate(s) }

func fetch(c *yahoo.Client, symbol string) (domain.PriceSeries, error) {
	return c.FetchDailyCloses(context.Background(), symbol, day("2020-01-02"), day("2020-01-10"))
}

func TestFetchDailyCloses_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_tsla.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TSLA", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1d", q.Get("interval"))
		assert.Equal(t, "1577923200", q.Get("period1"), "2020-01-02 00:00 UTC")
		assert.Equal(t, "1578700800", q.Get("period2"), "día siguiente a end")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	series, err := fetch(newTestClient(srv), "TSLA")
	require.NoError(t, err)

	assert.Equal(t, "TSLA", series.Symbol)
	require.Equal(t, 6, series.Len(), "el cierre null del 07 se omite")
	assert.True(t, series.IsOrdered())
	assert.Equal(t, day("2020-01-02"), series.Points[0].Date)
	assert.InDelta(t, 100, series.Points[0].Close, 1e-9)
	assert.Equal(t, day("2020-01-08"), series.Points[3].Date)
	assert.Equal(t, day("2020-01-10"), series.Points[5].Date)
	assert.InDelta(t, 150, series.Points[5].Close, 1e-9)
}

func TestFetchDailyCloses_PrefersAdjustedCloses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []float64
	}{
		{
			"adjusted",
			`{"chart":{"result":[{"meta":{},"timestamp":[1577975400,1578061800],"indicators":{` +
				`"quote":[{"close":[100.0,110.0]}],"adjclose":[{"adjclose":[98.5,108.4]}]}}],"error":null}}`,
			[]float64{98.5, 108.4},
		},
		{
			"no adjclose",
			`{"chart":{"result":[{"meta":{},"timestamp":[1577975400,1578061800],"indicators":{` +
				`"quote":[{"close":[100.0,110.0]}]}}],"error":null}}`,
			[]float64{100, 110},
		},
		{
			"adjclose shorter than timestamps",
			`{"chart":{"result":[{"meta":{},"timestamp":[1577975400,1578061800],"indicators":{` +
				`"quote":[{"close":[100.0,110.0]}],"adjclose":[{"adjclose":[98.5]}]}}],"error":null}}`,
			[]float64{100, 110},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			series, err := fetch(newTestClient(srv), "TSLA")
			require.NoError(t, err)
			require.Equal(t, len(tt.want), series.Len())
			for i, want := range tt.want {
				assert.InDelta(t, want, series.Points[i].Close, 1e-9)
			}
		})
	}
}

func TestFetchDailyCloses_EscapesIndexSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		w.Write([]byte(`{"chart":{"result":[{"meta":{"gmtoffset":-18000},"timestamp":[1577975400],"indicators":{"quote":[{"close":[3257.85]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	series, err := fetch(newTestClient(srv), "^GSPC")
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
}

func TestFetchDailyCloses_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Data doesn't exist for startDate"}}}`, domain.ErrNoDataInRange},
		{"server error", http.StatusInternalServerError, `oops`, domain.ErrProviderError},
		{"bad gateway", http.StatusBadGateway, ``, domain.ErrProviderError},
		{"forbidden", http.StatusForbidden, `nope`, domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := fetch(newTestClient(srv), "XYZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, int32(1), calls.Load(), "el cliente no reintenta: eso lo hace el fetcher")
		})
	}
}

func TestFetchDailyCloses_ErrorInsideOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"delisted"}}}`))
	}))
	defer srv.Close()

	_, err := fetch(newTestClient(srv), "OLD")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFetchDailyCloses_EmptyResult(t *testing.T) {
	bodies := map[string]string{
		"no result":     `{"chart":{"result":[],"error":null}}`,
		"no timestamps": `{"chart":{"result":[{"meta":{},"indicators":{"quote":[{}]}}],"error":null}}`,
		"all null":      `{"chart":{"result":[{"meta":{},"timestamp":[1577975400],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := fetch(newTestClient(srv), "XYZ")
			assert.True(t, errors.Is(err, domain.ErrNoDataInRange), "got %v", err)
		})
	}
}

func TestFetchDailyCloses_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>captcha</html>`))
	}))
	defer srv.Close()

	_, err := fetch(newTestClient(srv), "XYZ")
	assert.True(t, errors.Is(err, domain.ErrProviderError))
}

func TestFetchDailyCloses_RateLimitedThenOK(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_tsla.json")
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	series, err := fetch(newTestClient(srv), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 6, series.Len())
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDailyCloses_RateLimitedForever(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := fetch(newTestClient(srv), "TSLA")
	assert.True(t, errors.Is(err, domain.ErrProviderError))
	assert.Equal(t, int32(4), calls.Load(), "1 intento + 3 reintentos")
}

func TestFetchDailyCloses_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no debería llegar ninguna petición")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).FetchDailyCloses(ctx, "TSLA", day("2020-01-02"), day("2020-01-10"))
	assert.ErrorIs(t, err, context.Canceled)
}
