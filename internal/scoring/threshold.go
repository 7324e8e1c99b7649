package scoring

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// ThresholdRule adjusts the base score when a per-serving amount crosses a limit.
// The limit is TargetShare × daily target when TargetShare is set, else Absolute.
type ThresholdRule struct {
	Nutrient    constants.Nutrient
	TargetShare float64
	Absolute    float64
	Delta       float64
}

// DefaultThresholdTable is the conservative rule set used when no judgment is available.
var DefaultThresholdTable = []ThresholdRule{
	{Nutrient: constants.Sugar, TargetShare: 0.5, Delta: -2},
	{Nutrient: constants.Sodium, TargetShare: 0.3, Delta: -2},
	{Nutrient: constants.Protein, Absolute: 10, Delta: +1},
	{Nutrient: constants.Fiber, Absolute: 5, Delta: +1},
}

// Fallback targets for rules that reference a missing daily target.
var defaultTargets = entity.Nutrients{
	constants.Sugar:  50,
	constants.Sodium: 2000,
}

const (
	thresholdStart      = 5.0
	thresholdConfidence = 0.6
)

// ThresholdEngine computes the base score from a fixed nutrient threshold table.
// It performs no I/O and never fails.
type ThresholdEngine struct {
	Rules  []ThresholdRule
	Config Config
}

func NewThresholdEngine(cfg Config) *ThresholdEngine {
	return &ThresholdEngine{Rules: DefaultThresholdTable, Config: cfg}
}

func (e *ThresholdEngine) Score(_ context.Context, in Input) (entity.ScoringResult, error) {
	base := e.Base(in.Nutrition, in.Profile.DailyTargets)
	res := Compute(in, base, e.Config, StrategyThreshold)
	if res.Strategy == StrategyThreshold {
		res.Confidence = minConfidence(thresholdConfidence, in.Nutrition.Confidence)
	}
	return res, nil
}

// Base evaluates the table against one serving.
func (e *ThresholdEngine) Base(rec entity.NutritionRecord, targets entity.Nutrients) BaseScore {
	rules := e.Rules
	if rules == nil {
		rules = DefaultThresholdTable
	}
	amounts := rec.ServingAmounts()
	score := thresholdStart
	steps := []string{"Rule-based scoring from nutrient thresholds (start 5.0)"}
	for _, r := range rules {
		v, ok := amounts[r.Nutrient]
		if !ok {
			continue
		}
		limit := r.Absolute
		if r.TargetShare > 0 {
			t := targets[r.Nutrient]
			if t <= 0 {
				t = defaultTargets[r.Nutrient]
			}
			limit = r.TargetShare * t
		}
		if v > limit {
			score += r.Delta
			steps = append(steps, fmt.Sprintf("%s %.1f %s is above %.1f %s (%+.0f)", r.Nutrient, v, r.Nutrient.Unit(), limit, r.Nutrient.Unit(), r.Delta))
		}
	}
	if score < constants.MinScore {
		score = constants.MinScore
	}
	if score > constants.MaxScore {
		score = constants.MaxScore
	}
	return BaseScore{Score: score, Steps: steps, Confidence: thresholdConfidence}
}
