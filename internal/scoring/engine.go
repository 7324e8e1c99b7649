// Package scoring turns a nutrition record, a user profile and a consumption
// context into a final score and verdict.
//
// Every strategy shares the same formula:
//
//	final = clamp(base × context multiplier × time multiplier, 0, 10)
//
// Strategies differ only in where the base score comes from. An allergen match
// short-circuits all of them.
package scoring

import (
	"context"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// Strategy names recorded on ScoringResult.Strategy.
const (
	StrategyReasoning        = "reasoning"
	StrategyThreshold        = "threshold_table"
	StrategyAllergenOverride = "allergen_override"
)

// Context multipliers per moderation level.
const (
	ContextWithin      = 1.2
	ContextApproaching = 0.8
	ContextExceeding   = 0.5
)

// Multipliers maps moderation levels onto context multipliers.
type Multipliers struct {
	Within      float64
	Approaching float64
	Exceeding   float64
}

// DefaultMultipliers are the built-in context multipliers.
var DefaultMultipliers = Multipliers{
	Within:      ContextWithin,
	Approaching: ContextApproaching,
	Exceeding:   ContextExceeding,
}

// For returns the multiplier for a level.
func (m Multipliers) For(level constants.ModerationLevel) float64 {
	switch level {
	case constants.ModerationExceeding:
		return m.Exceeding
	case constants.ModerationApproaching:
		return m.Approaching
	default:
		return m.Within
	}
}

type Config struct {
	Multipliers           Multipliers
	WarningBudgetFraction float64 // share of the remaining budget that triggers a warning
	HighlightFraction     float64 // share of the daily target that earns a highlight
	MaxFindings           int
}

func (c Config) withDefaults() Config {
	if c.Multipliers == (Multipliers{}) {
		c.Multipliers = DefaultMultipliers
	}
	if c.WarningBudgetFraction <= 0 {
		c.WarningBudgetFraction = 0.9
	}
	if c.HighlightFraction <= 0 {
		c.HighlightFraction = 0.2
	}
	if c.MaxFindings <= 0 {
		c.MaxFindings = 3
	}
	return c
}

// Input is everything a strategy may look at.
type Input struct {
	Nutrition  entity.NutritionRecord
	Profile    entity.UserProfile
	Context    entity.ConsumptionContext
	Servings   float64
	Projection ledger.Projection
}

func (in Input) servings() float64 {
	if in.Servings > 0 {
		return in.Servings
	}
	return 1
}

// Engine is a scoring strategy.
type Engine interface {
	Score(ctx context.Context, in Input) (entity.ScoringResult, error)
}

// BaseScore is the intrinsic quality judgment a strategy feeds into the formula.
type BaseScore struct {
	Score      float64
	Steps      []string
	Confidence float64
}

// FinalScore applies the formula and rounds to two decimals.
func FinalScore(base, contextMultiplier, timeMultiplier float64) float64 {
	v := utils.Clamp(base*contextMultiplier*timeMultiplier, constants.MinScore, constants.MaxScore)
	return utils.Round(v, 2)
}

// Compute runs the allergen gate and, if it passes, the normal scoring path.
func Compute(in Input, base BaseScore, cfg Config, strategy string) entity.ScoringResult {
	cfg = cfg.withDefaults()
	if matches := MatchAllergens(in.Profile.Allergens, in.Nutrition); len(matches) > 0 {
		return allergenResult(matches)
	}

	class := MacroClassOf(in.Nutrition)
	highCal := IsHighCalorie(in.Nutrition, in.servings())
	level := in.Projection.Level
	if level == "" {
		level = constants.ModerationWithin
	}

	res := entity.ScoringResult{
		BaseScore:         utils.Clamp(base.Score, constants.MinScore, constants.MaxScore),
		ContextMultiplier: cfg.Multipliers.For(level),
		TimeMultiplier:    TimeMultiplier(in.Context.TimeOfDay, class, highCal),
		ModerationLevel:   level,
		MacroClass:        class,
		ReasoningSteps:    append([]string(nil), base.Steps...),
		Confidence:        base.Confidence,
		Strategy:          strategy,
	}
	res.FinalScore = FinalScore(res.BaseScore, res.ContextMultiplier, res.TimeMultiplier)
	res.Verdict = constants.VerdictFor(res.FinalScore)
	res.Warnings, res.Highlights = Findings(in, cfg)
	return res
}

func allergenResult(matches []AllergenMatch) entity.ScoringResult {
	res := entity.ScoringResult{
		BaseScore:         0,
		ContextMultiplier: 1,
		TimeMultiplier:    1,
		FinalScore:        0,
		Verdict:           constants.VerdictAvoid,
		Confidence:        1,
		ModerationLevel:   constants.ModerationWithin,
		Strategy:          StrategyAllergenOverride,
		ReasoningSteps:    []string{"Allergen check failed"},
	}
	for _, m := range matches {
		res.AllergenMatches = append(res.AllergenMatches, m.Allergen)
		res.Warnings = append(res.Warnings, entity.Finding{
			Severity:  entity.SeverityCritical,
			Text:      m.Text(),
			Magnitude: 1,
		})
	}
	return res
}

func minConfidence(a, b float64) float64 {
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}
