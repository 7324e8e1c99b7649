package entity

import (
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
)

// Severity of a warning finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityCaution  Severity = "caution"
	SeverityInfo     Severity = "info"
)

// Finding is a single warning or highlight produced by scoring.
type Finding struct {
	Nutrient  constants.Nutrient `json:"nutrient,omitempty"`
	Severity  Severity           `json:"severity"`
	Text      string             `json:"text"`
	Magnitude float64            `json:"magnitude"`
}

// ScoringResult is the deterministic output of a scoring strategy.
type ScoringResult struct {
	BaseScore         float64                   `json:"base_score"`
	ContextMultiplier float64                   `json:"context_multiplier"`
	TimeMultiplier    float64                   `json:"time_multiplier"`
	FinalScore        float64                   `json:"final_score"`
	Verdict           constants.Verdict         `json:"verdict"`
	Warnings          []Finding                 `json:"warnings"`
	Highlights        []Finding                 `json:"highlights"`
	Confidence        float64                   `json:"confidence"`
	ModerationLevel   constants.ModerationLevel `json:"moderation_level"`
	MacroClass        constants.MacroClass      `json:"macro_class,omitempty"`
	AllergenMatches   []string                  `json:"allergen_matches,omitempty"`
	ReasoningSteps    []string                  `json:"reasoning_steps,omitempty"`
	Strategy          string                    `json:"strategy"`
}

// AllergenOverride reports whether the allergen gate decided the result.
func (s ScoringResult) AllergenOverride() bool {
	return len(s.AllergenMatches) > 0
}

// CitationSource is one piece of provenance backing the assessment.
type CitationSource struct {
	Number         int                  `json:"citation_number"`
	SourceType     constants.SourceType `json:"source_type"`
	Title          string               `json:"title"`
	URL            string               `json:"url,omitempty"`
	AuthorityScore float64              `json:"authority_score"`
	Snippet        string               `json:"snippet,omitempty"`
}

// Degradation records a non-fatal condition that lowered trust in the result.
type Degradation struct {
	Kind   string          `json:"kind"`
	Stage  constants.Stage `json:"stage"`
	Detail string          `json:"detail"`
}

// ShortAssessment is the glanceable summary.
type ShortAssessment struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// DetailedAssessment is the presentation-ready result of a scan.
type DetailedAssessment struct {
	ScanID    string    `json:"scan_id"`
	User      string    `json:"user"`
	ScannedAt time.Time `json:"scanned_at"`
	Product   string    `json:"product"`

	BaseScore         float64           `json:"base_score"`
	ContextMultiplier float64           `json:"context_multiplier"`
	TimeMultiplier    float64           `json:"time_multiplier"`
	FinalScore        float64           `json:"final_score"`
	FinalCalculation  string            `json:"final_calculation"`
	Verdict           constants.Verdict `json:"verdict"`
	VerdictEmoji      string            `json:"verdict_emoji"`

	Warnings       []string `json:"warnings"`
	Highlights     []string `json:"highlights"`
	AllergenAlerts []string `json:"allergen_alerts,omitempty"`
	ReasoningSteps []string `json:"reasoning_steps,omitempty"`

	ModerationLevel      constants.ModerationLevel `json:"moderation_level"`
	ModerationMessage    string                    `json:"moderation_message"`
	TimingRecommendation string                    `json:"timing_recommendation"`
	PortionSuggestion    string                    `json:"portion_suggestion,omitempty"`
	ServingsConsumed     float64                   `json:"servings_consumed"`
	NutritionSnapshot    Nutrients                 `json:"nutrition_snapshot"`

	Citations       []CitationSource `json:"citations"`
	InlineCitations map[string][]int `json:"inline_citations"`

	Confidence   float64         `json:"confidence"`
	Degradations []Degradation   `json:"degradations,omitempty"`
	Short        ShortAssessment `json:"short"`
}

// Degraded reports whether any non-fatal condition was recorded.
func (a DetailedAssessment) Degraded() bool {
	return len(a.Degradations) > 0
}

// Progress is a stage event emitted while a scan runs.
type Progress struct {
	ScanID      string          `json:"scan_id"`
	Stage       constants.Stage `json:"stage"`
	StageNumber int             `json:"stage_number"`
	TotalStages int             `json:"total_stages"`
	Fraction    float64         `json:"progress"`
	Message     string          `json:"message"`
}

// ScanErrorEvent is the caller-facing form of a fatal scan error.
type ScanErrorEvent struct {
	ScanID           string          `json:"scan_id"`
	Code             string          `json:"error_code"`
	Message          string          `json:"message"`
	Stage            constants.Stage `json:"stage"`
	Recoverable      bool            `json:"recoverable"`
	RetrySuggestions []string        `json:"retry_suggestions,omitempty"`
}
