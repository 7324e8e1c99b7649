package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

type configurable interface {
	Configured() bool
}

// ChainStructurer tries the primary structurer and falls back to the secondary
// when the primary is unconfigured, fails, or returns nothing.
type ChainStructurer struct {
	primary  Structurer
	fallback Structurer
	timeout  time.Duration
	logger   *slog.Logger
}

func NewChainStructurer(primary, fallback Structurer, timeout time.Duration, logger *slog.Logger) *ChainStructurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainStructurer{primary: primary, fallback: fallback, timeout: timeout, logger: logger}
}

func (c *ChainStructurer) Extract(ctx context.Context, rawText string) (entity.NutritionRecord, float64, []string, error) {
	if c.usePrimary() {
		pctx, cancel := c.withTimeout(ctx)
		rec, conf, missing, err := c.primary.Extract(pctx, rawText)
		cancel()
		switch {
		case err == nil && !rec.Empty():
			return rec, conf, missing, nil
		case err != nil:
			if ctx.Err() != nil {
				return entity.NutritionRecord{}, 0, nil, ctx.Err()
			}
			c.logger.Warn("extract.structure.primary_failed", "error", err)
		default:
			c.logger.Warn("extract.structure.primary_empty")
		}
	}
	if c.fallback == nil {
		return entity.NutritionRecord{}, 0, nil, ErrNoStructurer
	}
	return c.fallback.Extract(ctx, rawText)
}

func (c *ChainStructurer) usePrimary() bool {
	if c.primary == nil {
		return false
	}
	if cfg, ok := c.primary.(configurable); ok {
		return cfg.Configured()
	}
	return true
}

func (c *ChainStructurer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
