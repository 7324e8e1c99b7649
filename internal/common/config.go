package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	OCR       OCRConfig       `toml:"ocr"`
	LLM       LLMConfig       `toml:"llm"`
	ProductDB ProductDBConfig `toml:"product_db"`
	Research  ResearchConfig  `toml:"research"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Scoring   ScoringConfig   `toml:"scoring"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "sqlite" | "postgres"
	DSN             string        `toml:"dsn"`
	MaxConns        int32         `toml:"max_conns"`
	MinConns        int32         `toml:"min_conns"`
	MaxConnLifetime time.Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `toml:"max_conn_idle_time"`
	DialTimeout     time.Duration `toml:"dial_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `toml:"grpc_addr"`
	HTTPAddr string `toml:"http_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string `toml:"tesseract"`
	Zbarimg       string `toml:"zbarimg"`
	TesseractLang string `toml:"lang"`
	TessdataDir   string `toml:"tessdata_dir"`
	HeicConverter string `toml:"heic_converter"`
	CacheDir      string `toml:"artifact_cache_dir"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string        `toml:"base_url"`
	Model       string        `toml:"model"`
	JudgeModel  string        `toml:"judge_model"`
	APIKey      string        `toml:"-"`
	Temperature float32       `toml:"temperature"`
	MaxTokens   int           `toml:"max_tokens"`
	Timeout     time.Duration `toml:"timeout"`
}

// ProductDBConfig points at the OpenFoodFacts-compatible product database.
type ProductDBConfig struct {
	BaseURL   string        `toml:"base_url"`
	Timeout   time.Duration `toml:"timeout"`
	UserAgent string        `toml:"user_agent"`
}

// ResearchConfig configures the research collaborator.
type ResearchConfig struct {
	AgentAddr  string        `toml:"agent_addr"`
	SearXNGURL string        `toml:"searxng_url"`
	MaxResults int           `toml:"max_results"`
	Timeout    time.Duration `toml:"timeout"`
}

// PipelineConfig holds deadlines and concurrency limits for a scan.
type PipelineConfig struct {
	OverallDeadline    time.Duration `toml:"overall_deadline"`
	StructureTimeout   time.Duration `toml:"structure_timeout"`
	ReasoningTimeout   time.Duration `toml:"reasoning_timeout"`
	GateSize           int           `toml:"gate_size"`
	LedgerRetryBackoff time.Duration `toml:"ledger_retry_backoff"`
	TimeZone           string        `toml:"time_zone"`
	Workers            int           `toml:"workers"`
}

// ScoringConfig holds tunable scoring constants.
type ScoringConfig struct {
	WithinMultiplier      float64 `toml:"within_multiplier"`
	ApproachingMultiplier float64 `toml:"approaching_multiplier"`
	ExceedingMultiplier   float64 `toml:"exceeding_multiplier"`
	WarningBudgetFraction float64 `toml:"warning_budget_fraction"`
	HighlightFraction     float64 `toml:"highlight_fraction"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:bytelense.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			HTTPAddr: ":8081",
		},
		OCR: OCRConfig{
			Tesseract:     "tesseract",
			Zbarimg:       "zbarimg",
			TesseractLang: "eng",
			HeicConverter: "magick",
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		ProductDB: ProductDBConfig{
			BaseURL:   "https://world.openfoodfacts.org",
			Timeout:   3 * time.Second,
			UserAgent: "Bytelense/1.0",
		},
		Research: ResearchConfig{
			MaxResults: 5,
			Timeout:    45 * time.Second,
		},
		Pipeline: PipelineConfig{
			OverallDeadline:    60 * time.Second,
			StructureTimeout:   20 * time.Second,
			ReasoningTimeout:   30 * time.Second,
			GateSize:           3,
			LedgerRetryBackoff: 250 * time.Millisecond,
			TimeZone:           "UTC",
			Workers:            2,
		},
		Scoring: ScoringConfig{
			WithinMultiplier:      1.2,
			ApproachingMultiplier: 0.8,
			ExceedingMultiplier:   0.5,
			WarningBudgetFraction: 0.9,
			HighlightFraction:     0.2,
		},
	}
}

// LoadConfig builds configuration from defaults, a .env file, an optional TOML
// file and finally environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "decode "+path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)

	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Zbarimg = getEnv("ZBARIMG_BIN", c.OCR.Zbarimg)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.CacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.CacheDir)

	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.JudgeModel = getEnv("OPENAI_JUDGE_MODEL", c.LLM.JudgeModel)
	c.LLM.MaxTokens = getEnvAsInt("OPENAI_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)

	c.ProductDB.BaseURL = getEnv("OPENFOODFACTS_URL", c.ProductDB.BaseURL)
	c.ProductDB.Timeout = getEnvAsDuration("OPENFOODFACTS_TIMEOUT", c.ProductDB.Timeout)

	c.Research.AgentAddr = getEnv("RESEARCH_AGENT_ADDR", c.Research.AgentAddr)
	c.Research.SearXNGURL = getEnv("SEARXNG_URL", c.Research.SearXNGURL)
	c.Research.MaxResults = getEnvAsInt("SEARXNG_MAX_RESULTS", c.Research.MaxResults)
	c.Research.Timeout = getEnvAsDuration("RESEARCH_TIMEOUT", c.Research.Timeout)

	c.Pipeline.OverallDeadline = getEnvAsDuration("PIPELINE_DEADLINE", c.Pipeline.OverallDeadline)
	c.Pipeline.StructureTimeout = getEnvAsDuration("PIPELINE_STRUCTURE_TIMEOUT", c.Pipeline.StructureTimeout)
	c.Pipeline.ReasoningTimeout = getEnvAsDuration("PIPELINE_REASONING_TIMEOUT", c.Pipeline.ReasoningTimeout)
	c.Pipeline.GateSize = getEnvAsInt("PIPELINE_GATE_SIZE", c.Pipeline.GateSize)
	c.Pipeline.LedgerRetryBackoff = getEnvAsDuration("LEDGER_RETRY_BACKOFF", c.Pipeline.LedgerRetryBackoff)
	c.Pipeline.TimeZone = getEnv("LEDGER_TIME_ZONE", c.Pipeline.TimeZone)
	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
}

// Location resolves the ledger time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Pipeline.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Pipeline.TimeZone)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.GateSize <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_GATE_SIZE must be positive", ErrInvalidInput)
	}
	if c.Pipeline.OverallDeadline <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_DEADLINE must be positive", ErrInvalidInput)
	}
	if _, err := c.Location(); err != nil {
		return NewAppError("CONFIG_ERROR", "LEDGER_TIME_ZONE is not a valid IANA zone", err)
	}
	s := c.Scoring
	if s.WithinMultiplier <= 0 || s.ApproachingMultiplier <= 0 || s.ExceedingMultiplier <= 0 {
		return NewAppError("CONFIG_ERROR", "scoring multipliers must be positive", ErrInvalidInput)
	}
	return nil
}
