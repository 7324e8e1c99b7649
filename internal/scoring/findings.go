package scoring

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// overBudget ranks nutrients whose budget is already spent above any ratio.
const overBudget = 10.0

// Findings compares the consumed amount of each nutrient against the user's
// remaining daily budget (warnings) and daily target (highlights).
func Findings(in Input, cfg Config) (warnings, highlights []entity.Finding) {
	cfg = cfg.withDefaults()
	intake := in.Nutrition.ConsumedAmounts(in.servings())
	consumed := in.Context.Today.Totals
	targets := in.Profile.DailyTargets

	for _, n := range constants.AllNutrients() {
		amount, ok := intake[n]
		target := targets[n]
		if !ok || target <= 0 || amount <= 0 {
			continue
		}
		unit := n.Unit()
		if n.IsLimit() {
			remaining := target - consumed[n]
			if remaining <= 0 {
				warnings = append(warnings, entity.Finding{
					Nutrient:  n,
					Severity:  entity.SeverityHigh,
					Text:      fmt.Sprintf("High %s: you're already past today's %s target and this adds %.0f %s", n, n, amount, unit),
					Magnitude: overBudget + amount/target,
				})
				continue
			}
			share := amount / remaining
			if share > cfg.WarningBudgetFraction {
				sev := entity.SeverityCaution
				if share >= 1 {
					sev = entity.SeverityHigh
				}
				warnings = append(warnings, entity.Finding{
					Nutrient:  n,
					Severity:  sev,
					Text:      fmt.Sprintf("High %s: %.0f %s uses %.0f%% of your remaining %.0f %s today", n, amount, unit, share*100, remaining, unit),
					Magnitude: share,
				})
			}
			continue
		}
		share := amount / target
		if share >= cfg.HighlightFraction {
			highlights = append(highlights, entity.Finding{
				Nutrient:  n,
				Severity:  entity.SeverityInfo,
				Text:      fmt.Sprintf("Good source of %s: %.0f %s is %.0f%% of your daily target", n, amount, unit, share*100),
				Magnitude: share,
			})
		}
	}
	return topN(warnings, cfg.MaxFindings), topN(highlights, cfg.MaxFindings)
}

func topN(fs []entity.Finding, n int) []entity.Finding {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Magnitude != fs[j].Magnitude {
			return fs[i].Magnitude > fs[j].Magnitude
		}
		return fs[i].Nutrient < fs[j].Nutrient
	})
	if len(fs) > n {
		fs = fs[:n]
	}
	return fs
}
