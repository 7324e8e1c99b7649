// Package gaps decides which critical product fields are missing after label
// extraction and which collaborators should be consulted to fill them.
package gaps

import "github.com/joseph-ayodele/bytelense/internal/entity"

const criticalSlots = 3

// Analyze builds the gap report for a partially filled record.
//
// Missing energy points at the product database; missing identity or quantity
// needs market knowledge and points at the research agent.
func Analyze(rec entity.NutritionRecord) entity.ExtractionGapReport {
	var gaps []string
	if !rec.HasIdentity() {
		gaps = append(gaps, entity.SlotIdentity)
	}
	if !rec.HasEnergy() {
		gaps = append(gaps, entity.SlotEnergy)
	}
	if !rec.HasQuantity() {
		gaps = append(gaps, entity.SlotQuantity)
	}

	present := criticalSlots - len(gaps)
	report := entity.ExtractionGapReport{
		CompletenessScore: float64(present) / criticalSlots,
		CriticalGaps:      gaps,
	}
	report.NeedsProductLookup = report.Missing(entity.SlotEnergy)
	report.NeedsResearchAgent = report.Missing(entity.SlotQuantity) || report.Missing(entity.SlotIdentity)
	return report
}
