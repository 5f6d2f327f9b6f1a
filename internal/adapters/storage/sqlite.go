package storage

// sqlite.go: caché de cierres diarios delante del provider.
//
// Estrategia:
//   - `prices`: UNA fila por (símbolo, fecha). UPSERT: si Yahoo corrige un
//     cierre, gana el último.
//   - `price_ranges`: rangos [start, end] ya descargados por símbolo. Un
//     LoadPrices es hit solo si algún rango cubre el pedido entero; así un
//     hueco de la serie (fin de semana, festivo) no se confunde con un dato
//     que falta en caché.
//   - Los rangos se guardan también en memoria: un miss no toca el disco.
//   - Prune automático al arrancar: rangos con más de `retention` se borran
//     junto con los precios que ya no cubre ningún rango.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Cierres diarios, sin duplicados
CREATE TABLE IF NOT EXISTS prices (
    symbol TEXT NOT NULL,
    date   TEXT NOT NULL,
    close  REAL NOT NULL,
    PRIMARY KEY (symbol, date)
);

-- Rangos ya descargados
CREATE TABLE IF NOT EXISTS price_ranges (
    symbol     TEXT    NOT NULL,
    start_date TEXT    NOT NULL,
    end_date   TEXT    NOT NULL,
    points     INTEGER NOT NULL DEFAULT 0,
    fetched_at INTEGER NOT NULL,
    PRIMARY KEY (symbol, start_date, end_date)
);

CREATE INDEX IF NOT EXISTS idx_ranges_fetched ON price_ranges(fetched_at);
`

// DefaultRetention es lo que vive un rango en caché si no se configura otra cosa.
const DefaultRetention = 30 * 24 * time.Hour

type span struct {
	start, end domain.Date
}

func (s span) covers(start, end domain.Date) bool {
	return !s.start.After(start) && !s.end.Before(end)
}

// SQLiteCache implementa ports.PriceCache usando SQLite (pure Go, sin CGo).
type SQLiteCache struct {
	db        *sql.DB
	retention time.Duration
	ranges    map[string][]span // símbolo → rangos en disco
	mu        sync.Mutex
	now       func() time.Time
}

// NewSQLiteCache abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia rangos caducados y precarga los rangos en memoria.
// retention <= 0 usa DefaultRetention.
func NewSQLiteCache(path string, retention time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteCache: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteCache: apply schema: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}
	c := &SQLiteCache{
		db:        db,
		retention: retention,
		ranges:    make(map[string][]span),
		now:       time.Now,
	}
	c.pruneOld(context.Background())
	c.warmCache(context.Background())
	return c, nil
}

// LoadPrices devuelve la serie en [start, end] si un rango guardado la cubre.
// ok es false en un miss.
func (c *SQLiteCache) LoadPrices(ctx context.Context, symbol string, start, end domain.Date) (domain.PriceSeries, bool, error) {
	if !c.covered(symbol, start, end) {
		return domain.PriceSeries{}, false, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT date, close
		FROM prices
		WHERE symbol = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`, symbol, start.String(), end.String())
	if err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("storage.LoadPrices: query: %w", err)
	}
	defer rows.Close()

	series := domain.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var (
			dateStr    string
			closePrice float64
		)
		if err := rows.Scan(&dateStr, &closePrice); err != nil {
			return domain.PriceSeries{}, false, fmt.Errorf("storage.LoadPrices: scan row: %w", err)
		}
		d, err := domain.ParseDate(dateStr)
		if err != nil {
			return domain.PriceSeries{}, false, fmt.Errorf("storage.LoadPrices: bad date %q: %w", dateStr, err)
		}
		series.Points = append(series.Points, domain.PricePoint{Date: d, Close: closePrice})
	}
	if err := rows.Err(); err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("storage.LoadPrices: %w", err)
	}
	return series, true, nil
}

// SavePrices guarda la serie y marca [start, end] como descargado.
func (c *SQLiteCache) SavePrices(ctx context.Context, series domain.PriceSeries, start, end domain.Date) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SavePrices: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (symbol, date, close) VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("storage.SavePrices: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range series.Points {
		if _, err := stmt.ExecContext(ctx, series.Symbol, p.Date.String(), p.Close); err != nil {
			return fmt.Errorf("storage.SavePrices: upsert %s %s: %w", series.Symbol, p.Date, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO price_ranges (symbol, start_date, end_date, points, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, start_date, end_date) DO UPDATE SET
			points     = excluded.points,
			fetched_at = excluded.fetched_at
	`, series.Symbol, start.String(), end.String(), series.Len(), c.now().Unix()); err != nil {
		return fmt.Errorf("storage.SavePrices: insert range: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SavePrices: commit: %w", err)
	}

	c.mu.Lock()
	c.ranges[series.Symbol] = append(c.ranges[series.Symbol], span{start, end})
	c.mu.Unlock()
	return nil
}

// Close cierra la conexión a la base de datos.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// --- helpers internos ---

func (c *SQLiteCache) covered(symbol string, start, end domain.Date) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.ranges[symbol] {
		if s.covers(start, end) {
			return true
		}
	}
	return false
}

// pruneOld elimina rangos caducados y los precios que quedan huérfanos.
func (c *SQLiteCache) pruneOld(ctx context.Context) {
	cutoff := c.now().Add(-c.retention).Unix()
	c.db.ExecContext(ctx, `DELETE FROM price_ranges WHERE fetched_at < ?`, cutoff)
	c.db.ExecContext(ctx, `
		DELETE FROM prices
		WHERE NOT EXISTS (
			SELECT 1 FROM price_ranges r
			WHERE r.symbol = prices.symbol
			  AND prices.date BETWEEN r.start_date AND r.end_date
		)
	`)
}

// warmCache precarga los rangos desde la DB al arrancar.
func (c *SQLiteCache) warmCache(ctx context.Context) {
	rows, err := c.db.QueryContext(ctx, `SELECT symbol, start_date, end_date FROM price_ranges`)
	if err != nil {
		return
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for rows.Next() {
		var symbol, startStr, endStr string
		if rows.Scan(&symbol, &startStr, &endStr) != nil {
			continue
		}
		start, err1 := domain.ParseDate(startStr)
		end, err2 := domain.ParseDate(endStr)
		if err1 != nil || err2 != nil {
			continue
		}
		c.ranges[symbol] = append(c.ranges[symbol], span{start, end})
	}
}
