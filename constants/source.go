package constants

import "strings"

// SourceType tags where a citation came from.
type SourceType string

const (
	SourceOpenFoodFacts   SourceType = "openfoodfacts"
	SourceWeb             SourceType = "searxng_web"
	SourceHealthGuideline SourceType = "health_guideline"
	SourceUserProfile     SourceType = "user_profile"
	SourceLabelOCR        SourceType = "label_ocr"
)

// Extraction method tags for NutritionRecord.
const (
	MethodOCR           = "ocr"
	MethodLLM           = "llm_structured"
	MethodHeuristic     = "heuristic_parse"
	MethodOpenFoodFacts = "openfoodfacts"
	MethodResearch      = "research_agent"
	MethodMerged        = "merged"
)

var authoritativeDomains = []string{"who.int", "fda.gov", "usda.gov", "nih.gov"}

// AuthorityScore rates how much a source can be trusted.
func AuthorityScore(t SourceType, url string) float64 {
	u := strings.ToLower(url)
	for _, d := range authoritativeDomains {
		if strings.Contains(u, d) {
			return 0.95
		}
	}
	switch t {
	case SourceOpenFoodFacts:
		return 0.9
	case SourceHealthGuideline:
		return 0.95
	case SourceWeb:
		return 0.7
	case SourceUserProfile, SourceLabelOCR:
		return 0.8
	default:
		return 0.6
	}
}

// MaxSnippetLen bounds citation snippets.
const MaxSnippetLen = 200
