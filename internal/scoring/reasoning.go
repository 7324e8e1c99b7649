package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// QualityJudge is the external reasoning collaborator that rates intrinsic quality.
type QualityJudge interface {
	JudgeQuality(ctx context.Context, nutrition entity.NutritionRecord, profile entity.UserProfile) (baseScore float64, steps []string, confidence float64, err error)
}

// ReasoningEngine takes its base score from a QualityJudge.
type ReasoningEngine struct {
	Judge  QualityJudge
	Config Config
	logger *slog.Logger
}

func NewReasoningEngine(judge QualityJudge, cfg Config, logger *slog.Logger) *ReasoningEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReasoningEngine{Judge: judge, Config: cfg, logger: logger}
}

// Score never calls the judge when the allergen gate fires. A judge error is
// returned as a scoring_engine_failure ScanError so the caller can fall back.
func (e *ReasoningEngine) Score(ctx context.Context, in Input) (entity.ScoringResult, error) {
	if len(MatchAllergens(in.Profile.Allergens, in.Nutrition)) > 0 {
		return Compute(in, BaseScore{}, e.Config, StrategyReasoning), nil
	}
	if e.Judge == nil {
		return entity.ScoringResult{}, scoringFailure(fmt.Errorf("no reasoning collaborator configured"))
	}

	score, steps, conf, err := e.Judge.JudgeQuality(ctx, in.Nutrition, in.Profile)
	if err != nil {
		e.logger.Warn("scoring.reasoning.failed", "err", err)
		return entity.ScoringResult{}, scoringFailure(err)
	}
	if score < 0 || score > 10 {
		e.logger.Warn("scoring.reasoning.out_of_range", "base_score", score)
	}
	res := Compute(in, BaseScore{Score: score, Steps: steps, Confidence: conf}, e.Config, StrategyReasoning)
	res.Confidence = minConfidence(conf, in.Nutrition.Confidence)
	return res, nil
}

func scoringFailure(cause error) *common.ScanError {
	return &common.ScanError{
		Kind:        common.KindScoringEngineFailure,
		Stage:       constants.StageScoring,
		Message:     "reasoning collaborator unavailable",
		Recoverable: true,
		Cause:       cause,
	}
}
