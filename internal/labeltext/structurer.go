package labeltext

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// Structurer adapts Parse to the text structuring contract.
type Structurer struct {
	logger *slog.Logger
}

func NewStructurer(logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{logger: logger}
}

func (s *Structurer) Extract(ctx context.Context, rawText string) (entity.NutritionRecord, float64, []string, error) {
	if err := ctx.Err(); err != nil {
		return entity.NutritionRecord{}, 0, nil, err
	}
	res := Parse(rawText)
	s.logger.Debug("labeltext.parse.ok",
		"nutrients_per_100g", len(res.Record.Per100g),
		"nutrients_per_serving", len(res.Record.PerServing),
		"missing", res.Missing,
		"confidence", res.Confidence,
	)
	return res.Record, res.Confidence, res.Missing, nil
}
