// Package assessment turns a scoring result and its inputs into the
// presentation-ready assessment. Everything here is pure.
package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

const (
	maxSummaryLen = 150
	maxKeyPoints  = 3
)

// Input carries everything Assemble reads.
type Input struct {
	ScanID       string
	User         string
	At           time.Time
	Nutrition    entity.NutritionRecord
	Servings     float64
	Scoring      entity.ScoringResult
	Context      entity.ConsumptionContext
	Projection   ledger.Projection
	Targets      entity.Nutrients
	Sources      []entity.CitationSource
	Degradations []entity.Degradation
}

// Assemble builds the detailed assessment.
func Assemble(in Input) entity.DetailedAssessment {
	servings := in.Servings
	if servings <= 0 {
		servings = 1
	}
	s := in.Scoring

	a := entity.DetailedAssessment{
		ScanID:            in.ScanID,
		User:              in.User,
		ScannedAt:         in.At,
		Product:           in.Nutrition.DisplayName(),
		BaseScore:         s.BaseScore,
		ContextMultiplier: s.ContextMultiplier,
		TimeMultiplier:    s.TimeMultiplier,
		FinalScore:        s.FinalScore,
		FinalCalculation:  FinalCalculation(s),
		Verdict:           s.Verdict,
		VerdictEmoji:      s.Verdict.Emoji(),
		Warnings:          texts(s.Warnings),
		Highlights:        texts(s.Highlights),
		ReasoningSteps:    append([]string(nil), s.ReasoningSteps...),
		ModerationLevel:   s.ModerationLevel,
		ServingsConsumed:  servings,
		NutritionSnapshot: snapshot(in.Nutrition.ConsumedAmounts(servings)),
		Confidence:        confidence(in.Nutrition.Confidence, s.Confidence),
		Degradations:      append([]entity.Degradation(nil), in.Degradations...),
	}
	if a.Warnings == nil {
		a.Warnings = []string{}
	}
	if a.Highlights == nil {
		a.Highlights = []string{}
	}

	if s.AllergenOverride() {
		for _, m := range s.AllergenMatches {
			a.AllergenAlerts = append(a.AllergenAlerts, fmt.Sprintf("Contains %s, which is on your allergy list", m))
		}
		a.ModerationMessage = "Not evaluated against your daily limits because of an allergen match."
		a.TimingRecommendation = "Avoid this product at any time of day."
	} else {
		a.ModerationMessage = ModerationMessage(in.Projection, in.Targets)
		a.TimingRecommendation = TimingRecommendation(in.Context.TimeOfDay, s.MacroClass, s.TimeMultiplier)
		a.PortionSuggestion = PortionSuggestion(in.Projection, in.Targets, servings)
	}

	refTexts := make([]string, 0, len(a.ReasoningSteps)+len(a.Warnings)+len(a.Highlights))
	refTexts = append(refTexts, a.ReasoningSteps...)
	refTexts = append(refTexts, a.Warnings...)
	refTexts = append(refTexts, a.Highlights...)
	ms := compileSources(in.Sources)
	number(ms, refTexts)
	a.Citations = sourcesOf(ms)
	a.InlineCitations = inline(ms, append(append([]string(nil), a.Warnings...), a.Highlights...))

	a.Short = Short(a)
	return a
}

// FinalCalculation renders the scoring formula, e.g. "6.0 × 1.2 × 0.8 = 5.76".
func FinalCalculation(s entity.ScoringResult) string {
	if s.AllergenOverride() {
		return "allergen override = 0.00"
	}
	raw := s.BaseScore * s.ContextMultiplier * s.TimeMultiplier
	out := fmt.Sprintf("%.1f × %.1f × %.1f = %.2f", s.BaseScore, s.ContextMultiplier, s.TimeMultiplier, s.FinalScore)
	if raw > constants.MaxScore {
		out += " (capped)"
	}
	return out
}

// ModerationMessage describes today's intake of the limiting nutrient.
func ModerationMessage(p ledger.Projection, targets entity.Nutrients) string {
	n := p.Nutrient
	target := targets[n]
	if n == "" || target <= 0 {
		return "No daily limits set to compare against."
	}
	unit := n.Unit()
	msg := fmt.Sprintf("You've had %s %s %s today (%.0f%% of your limit); this adds %s %s more.",
		amount(p.Consumed[n]), unit, n, p.Consumed[n]/target*100, amount(p.Candidate[n]), unit)
	switch p.Level {
	case constants.ModerationExceeding:
		msg += fmt.Sprintf(" That puts you at %.0f%% of your daily %s limit.", p.MaxRatio*100, n)
	case constants.ModerationApproaching:
		msg += fmt.Sprintf(" You'd be close to your daily %s limit.", n)
	}
	return msg
}

// TimingRecommendation explains the time multiplier.
func TimingRecommendation(tod constants.TimeOfDay, class constants.MacroClass, mult float64) string {
	switch {
	case mult > 1 && class == constants.MacroProteinHeavy:
		return fmt.Sprintf("Good timing: protein in the %s helps keep you full.", tod)
	case mult > 1:
		return fmt.Sprintf("Good timing: carbs in the %s give you energy for the day.", tod)
	case mult < 1 && class == constants.MacroSugarHeavy:
		return "Sugary foods late at night can disturb sleep; earlier in the day is better."
	case mult < 1:
		return "This is heavy for late at night; a smaller portion or an earlier time would be better."
	default:
		if tod == "" {
			return "Timing doesn't change the score for this product."
		}
		return fmt.Sprintf("Timing doesn't change the score for this product in the %s.", tod)
	}
}

// PortionSuggestion proposes a smaller amount when the scan would push the
// limiting nutrient to or past the approaching band.
func PortionSuggestion(p ledger.Projection, targets entity.Nutrients, servings float64) string {
	if p.Level == "" || p.Level == constants.ModerationWithin {
		return ""
	}
	n := p.Nutrient
	target := targets[n]
	perServing := p.Candidate[n] / servings
	if target <= 0 || perServing <= 0 {
		return ""
	}
	room := constants.ApproachingRatio*target - p.Consumed[n]
	fit := quarterFloor(room / perServing)
	if fit <= 0 {
		return fmt.Sprintf("You've already used most of today's %s budget; consider skipping this or picking a lower-%s option.", n, n)
	}
	if fit >= servings {
		return ""
	}
	return fmt.Sprintf("Try %s instead of %s to stay within your %s limit.", servingsText(fit), servingsText(servings), n)
}

func quarterFloor(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return float64(int(v*4)) / 4
}

func servingsText(v float64) string {
	if v == 1 {
		return "1 serving"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") + " servings"
}

func amount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func texts(fs []entity.Finding) []string {
	if len(fs) == 0 {
		return nil
	}
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Text)
	}
	return out
}

func snapshot(n entity.Nutrients) entity.Nutrients {
	out := entity.Nutrients{}
	for k, v := range n {
		out[k] = utils.Round(v, 1)
	}
	return out
}

func confidence(data, scoring float64) float64 {
	switch {
	case data <= 0:
		return utils.Round(scoring, 2)
	case scoring <= 0 || data < scoring:
		return utils.Round(data, 2)
	default:
		return utils.Round(scoring, 2)
	}
}
