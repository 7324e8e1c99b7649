package constants

// Stage is a step of the scan pipeline, in execution order.
type Stage string

const (
	StageImageProcessing    Stage = "image_processing"
	StageNutritionRetrieval Stage = "nutrition_retrieval"
	StageContextLoading     Stage = "context_loading"
	StageScoring            Stage = "scoring"
	StageAssembly           Stage = "assembly"
)

var stageOrder = []Stage{
	StageImageProcessing,
	StageNutritionRetrieval,
	StageContextLoading,
	StageScoring,
	StageAssembly,
}

// TotalStages is the number of pipeline stages.
const TotalStages = 5

// Index returns the 1-based position of the stage, or 0 if unknown.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i + 1
		}
	}
	return 0
}

// Fraction is the progress reported when the stage starts.
func (s Stage) Fraction() float64 {
	idx := s.Index()
	if idx == 0 {
		return 0
	}
	return float64(idx-1) / float64(TotalStages)
}

// Message is the human-readable progress text for the stage.
func (s Stage) Message() string {
	switch s {
	case StageImageProcessing:
		return "Reading the label..."
	case StageNutritionRetrieval:
		return "Looking up nutrition data..."
	case StageContextLoading:
		return "Checking what you've had today..."
	case StageScoring:
		return "Scoring this product for you..."
	case StageAssembly:
		return "Putting your assessment together..."
	default:
		return ""
	}
}
