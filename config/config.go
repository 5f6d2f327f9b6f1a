package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de coeus.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// AnalysisConfig controla el motor de análisis y el pool de descargas.
type AnalysisConfig struct {
	Benchmark           string  `yaml:"benchmark"`      // "" desactiva riesgo y comparación
	Compare             bool    `yaml:"compare"`        // comparar cada trade contra el benchmark
	Risk                bool    `yaml:"risk"`           // volatilidad, beta, sharpe, treynor
	RiskFreeRate        float64 `yaml:"risk_free_rate"` // anual, fracción (0.02 = 2%)
	FetchWorkers        int     `yaml:"fetch_workers"`  // 0 = NumCPU*2
	FetchAttempts       int     `yaml:"fetch_attempts"`
	FetchTimeoutSeconds int     `yaml:"fetch_timeout_seconds"`
	RetryWaitMs         int     `yaml:"retry_wait_ms"`
}

// APIConfig contiene el endpoint de datos de mercado y sus límites.
type APIConfig struct {
	YahooBase      string  `yaml:"yahoo_base"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig controla la caché de precios.
type StorageConfig struct {
	DSN           string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"`
	Disabled      bool   `yaml:"disabled"` // sin caché: siempre al provider
}

// ServerConfig controla el API HTTP (modo -serve).
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	MaxBodyBytes        int64  `yaml:"max_body_bytes"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el .env si existe.
// Las variables de entorno sobreescriben el YAML. Con path vacío solo se
// aplican entorno y defaults.
func Load(path string) (*Config, error) {
	// .env es opcional
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// FetchTimeout es el timeout de cada intento de descarga.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Analysis.FetchTimeoutSeconds) * time.Second
}

// RetryWait es la espera base entre reintentos.
func (c *Config) RetryWait() time.Duration {
	return time.Duration(c.Analysis.RetryWaitMs) * time.Millisecond
}

// APITimeout es el timeout HTTP del cliente de Yahoo.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Retention es cuánto vive un rango en la caché.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("COEUS_DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("COEUS_YAHOO_BASE"); v != "" {
		cfg.API.YahooBase = v
	}
	if v := os.Getenv("COEUS_BENCHMARK"); v != "" {
		cfg.Analysis.Benchmark = v
	}
	if v := os.Getenv("COEUS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	cfg.Analysis.Benchmark = strings.ToUpper(strings.TrimSpace(cfg.Analysis.Benchmark))
	if cfg.Analysis.FetchAttempts <= 0 {
		cfg.Analysis.FetchAttempts = 3
	}
	if cfg.Analysis.FetchTimeoutSeconds <= 0 {
		cfg.Analysis.FetchTimeoutSeconds = 15
	}
	if cfg.Analysis.RetryWaitMs <= 0 {
		cfg.Analysis.RetryWaitMs = 250
	}
	if cfg.API.YahooBase == "" {
		cfg.API.YahooBase = "https://query1.finance.yahoo.com"
	}
	if cfg.API.RatePerSec <= 0 {
		cfg.API.RatePerSec = 4
	}
	if cfg.API.Burst <= 0 {
		cfg.API.Burst = 4
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 10
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "coeus.db"
	}
	if cfg.Storage.RetentionDays <= 0 {
		cfg.Storage.RetentionDays = 30
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 120
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 5 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
