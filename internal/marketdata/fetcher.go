package marketdata

// fetcher.go: worker pool para descargar series en paralelo.
//
// Cada fetch es independiente (símbolo + rango), así que se lanzan con
// paralelismo acotado. Los errores transitorios se reintentan con backoff
// exponencial; tras agotar intentos el trade queda como DataUnavailable y
// nunca bloquea al resto.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/alejandrodnm/coeus/internal/ports"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 15 * time.Second
)

// Config controla el pool de descargas.
type Config struct {
	Workers   int           // goroutines en paralelo (0 = NumCPU*2)
	Attempts  int           // intentos totales por fetch (0 = 3)
	Timeout   time.Duration // timeout por intento (0 = 15s)
	RetryWait time.Duration // espera base entre intentos, se duplica en cada uno
}

// Request identifica una descarga: símbolo y rango inclusive.
type Request struct {
	Symbol string
	Start  domain.Date
	End    domain.Date
}

// Result es el resultado de un Request. Err es *domain.DataUnavailableError
// o el error del contexto si se canceló el run.
type Result struct {
	Request Request
	Series  domain.PriceSeries
	Err     error
}

// Fetcher descarga series con timeout, reintentos y paralelismo acotado.
type Fetcher struct {
	cfg      Config
	provider ports.MarketDataProvider
	metrics  *observability.Metrics
}

// NewFetcher crea un Fetcher sobre el provider dado. metrics puede ser nil.
func NewFetcher(cfg Config, provider ports.MarketDataProvider, metrics *observability.Metrics) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() * 2
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 0
	}
	return &Fetcher{cfg: cfg, provider: provider, metrics: metrics}
}

// FetchAll descarga todos los requests y devuelve los resultados en el mismo
// orden. Vuelve cuando todos terminaron (con datos o con error).
func (f *Fetcher) FetchAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	workers := min(f.cfg.Workers, len(reqs))
	workCh := make(chan int, len(reqs))

	// Cada worker escribe solo en results[i] de su índice: no hace falta lock.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				series, err := f.Fetch(ctx, reqs[i])
				results[i] = Result{Request: reqs[i], Series: series, Err: err}
			}
		}()
	}

	for i := range reqs {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	slog.Debug("concurrent fetch complete",
		"requests", len(reqs),
		"workers", workers,
	)
	return results
}

// Fetch descarga una serie restringida a [Start, End]. Si no hay datos
// devuelve *domain.DataUnavailableError con la causa original.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (domain.PriceSeries, error) {
	for attempt := 1; ; attempt++ {
		series, err := f.fetchOnce(ctx, req)
		if err == nil {
			return series, nil
		}
		if ctx.Err() != nil {
			return domain.PriceSeries{}, ctx.Err()
		}
		if !retryable(err) || attempt >= f.cfg.Attempts {
			return domain.PriceSeries{}, &domain.DataUnavailableError{
				Symbol: req.Symbol,
				Start:  req.Start,
				End:    req.End,
				Cause:  err,
			}
		}

		f.metrics.ObserveRetry()
		slog.Debug("retrying fetch",
			"symbol", req.Symbol,
			"attempt", attempt,
			"err", err,
		)
		if !f.sleep(ctx, attempt) {
			return domain.PriceSeries{}, ctx.Err()
		}
	}
}

// fetchOnce hace un intento con su propio timeout y normaliza la serie.
func (f *Fetcher) fetchOnce(ctx context.Context, req Request) (domain.PriceSeries, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	series, err := f.provider.FetchDailyCloses(attemptCtx, req.Symbol, req.Start, req.End)
	if err == nil {
		series = normalize(series, req)
		if series.Len() == 0 {
			err = fmt.Errorf("%s: %w", req.Symbol, domain.ErrNoDataInRange)
		}
	} else if attemptCtx.Err() != nil && ctx.Err() == nil {
		// Timeout del intento: transitorio.
		err = fmt.Errorf("%w: %w", domain.ErrProviderError, err)
	}
	f.metrics.ObserveFetch(outcome(ctx, err), time.Since(start))
	return series, err
}

// sleep espera con backoff exponencial, respetando el contexto.
func (f *Fetcher) sleep(ctx context.Context, attempt int) bool {
	wait := f.cfg.RetryWait << (attempt - 1)
	if wait <= 0 {
		return ctx.Err() == nil
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

// retryable: NotFound y NoDataInRange son definitivos, el resto se reintenta.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrNoDataInRange)
}

func outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case ctx.Err() != nil:
		return observability.OutcomeCanceled
	case errors.Is(err, domain.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrNoDataInRange):
		return observability.OutcomeNoData
	}
	return observability.OutcomeProviderError
}

// normalize descarta cierres no finitos (un hueco es ausencia, no NaN),
// ordena por fecha, elimina duplicados (gana el último) y recorta al rango.
func normalize(s domain.PriceSeries, req Request) domain.PriceSeries {
	if s.Symbol == "" {
		s.Symbol = req.Symbol
	}
	finite := make([]domain.PricePoint, 0, len(s.Points))
	for _, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		finite = append(finite, p)
	}
	s.Points = finite
	if !s.IsOrdered() {
		pts := s.Points
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

		dedup := pts[:0]
		for _, p := range pts {
			if n := len(dedup); n > 0 && dedup[n-1].Date == p.Date {
				dedup[n-1] = p
				continue
			}
			dedup = append(dedup, p)
		}
		s.Points = dedup
	}
	return s.Between(req.Start, req.End)
}
