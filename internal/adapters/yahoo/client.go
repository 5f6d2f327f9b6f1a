package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://query1.finance.yahoo.com"

	// La API de chart no documenta límites; ~2000 req/h por IP en la práctica.
	defaultRatePerSec = 4
	defaultBurst      = 4

	// Solo se reintenta el 429 aquí. El resto de reintentos los hace el
	// fetcher del motor, que conoce el presupuesto de cada trade.
	maxRateLimitRetries = 3
	baseRetryWait       = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Config del cliente. Los campos a cero usan los valores por defecto.
type Config struct {
	BaseURL    string
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	RetryWait  time.Duration // espera base tras un 429
}

// Client descarga cierres diarios de la API de chart de Yahoo Finance.
// Implementa ports.MarketDataProvider.
type Client struct {
	http      *http.Client
	base      string
	limiter   *rate.Limiter
	retryWait time.Duration
}

// NewClient crea un Client con rate limiting.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBase
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = baseRetryWait
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		base:      cfg.BaseURL,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		retryWait: cfg.RetryWait,
	}
}

// FetchDailyCloses implementa ports.MarketDataProvider. El rango es
// inclusivo: period2 apunta al día siguiente a end.
func (c *Client) FetchDailyCloses(ctx context.Context, symbol string, start, end domain.Date) (domain.PriceSeries, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(start.Time().Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.AddDays(1).Time().Unix(), 10))
	params.Set("events", "history")
	params.Set("includePrePost", "false")
	u := c.base + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	var resp chartResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyCloses %s: %w", symbol, err)
	}

	series, err := resp.series(symbol)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyCloses %s: %w", symbol, err)
	}
	slog.Debug("yahoo chart fetched",
		"symbol", symbol,
		"start", start,
		"end", end,
		"points", series.Len(),
	)
	return series, nil
}

// get hace un GET con rate limiting y espera ante 429. Los errores ya vienen
// clasificados con la taxonomía del dominio.
func (c *Client) get(ctx context.Context, u string, out *chartResponse) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", domain.ErrProviderError, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= maxRateLimitRetries {
				return fmt.Errorf("%w: rate limited after %d retries", domain.ErrProviderError, maxRateLimitRetries)
			}
			slog.Warn("rate limited by yahoo", "attempt", attempt+1)
			if !c.sleep(ctx, attempt, resp.Header.Get("Retry-After")) {
				return ctx.Err()
			}
			continue
		}

		defer resp.Body.Close()
		return decode(resp, out)
	}
}

// decode clasifica la respuesta:
//
//	404                  → ErrNotFound
//	400                  → ErrNoDataInRange (Yahoo lo usa para rangos sin datos)
//	5xx u otros 4xx      → ErrProviderError
//	JSON inválido        → ErrProviderError
//	chart.error en 200   → según su código
func decode(resp *http.Response, out *chartResponse) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrProviderError, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, describe(body))
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrNoDataInRange, describe(body))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: http %d: %s", domain.ErrProviderError, resp.StatusCode, describe(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrProviderError, err)
	}
	if e := out.Chart.Error; e != nil {
		return e.classify()
	}
	return nil
}

// describe extrae chart.error.description del body, o el body truncado.
func describe(body []byte) string {
	var r chartResponse
	if json.Unmarshal(body, &r) == nil && r.Chart.Error != nil {
		return r.Chart.Error.Description
	}
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}

// sleep espera con backoff exponencial o lo que pida Retry-After,
// respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int, retryAfter string) bool {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		wait = time.Duration(secs) * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
