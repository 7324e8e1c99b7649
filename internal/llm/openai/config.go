package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024
	maxTemperature   = 2
)

// Config for the OpenAI-compatible client. Label structuring and quality
// judging may run on different models; JudgeModel falls back to Model.
type Config struct {
	APIKey          string // if empty, falls back to env OPENAI_API_KEY
	BaseURL         string
	Model           string // label structuring
	JudgeModel      string // intrinsic quality rating
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
	LenientOptional bool
}

func (cfg Config) withDefaults() Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = cfg.Model
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	} else if cfg.Temperature > maxTemperature {
		cfg.Temperature = maxTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "openai"),
	}
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}
