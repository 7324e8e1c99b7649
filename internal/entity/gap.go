package entity

// Critical slot names reported in ExtractionGapReport.CriticalGaps.
const (
	SlotIdentity = "product_identity"
	SlotEnergy   = "energy"
	SlotQuantity = "quantity"
)

// ExtractionGapReport says which critical fields are missing and who to ask next.
type ExtractionGapReport struct {
	CompletenessScore  float64  `json:"completeness_score"`
	CriticalGaps       []string `json:"critical_gaps"`
	NeedsProductLookup bool     `json:"needs_product_lookup"`
	NeedsResearchAgent bool     `json:"needs_research_agent"`
}

// Missing reports whether the slot is among the critical gaps.
func (g ExtractionGapReport) Missing(slot string) bool {
	for _, s := range g.CriticalGaps {
		if s == slot {
			return true
		}
	}
	return false
}

// Complete reports whether no critical slot is missing.
func (g ExtractionGapReport) Complete() bool {
	return len(g.CriticalGaps) == 0
}
