package constants

// ModerationLevel classifies projected intake against daily targets.
type ModerationLevel string

const (
	ModerationWithin      ModerationLevel = "within"
	ModerationApproaching ModerationLevel = "approaching"
	ModerationExceeding   ModerationLevel = "exceeding"
)

// Ratio thresholds for the moderation bands.
const (
	ApproachingRatio = 0.8
	ExceedingRatio   = 1.0
)

// ModerationFor maps the maximum projected ratio onto a level.
func ModerationFor(maxRatio float64) ModerationLevel {
	switch {
	case maxRatio >= ExceedingRatio:
		return ModerationExceeding
	case maxRatio >= ApproachingRatio:
		return ModerationApproaching
	default:
		return ModerationWithin
	}
}

// TimeOfDay is the hour bucket a scan falls into.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"   // 05:00-11:59
	Afternoon TimeOfDay = "afternoon" // 12:00-16:59
	Evening   TimeOfDay = "evening"   // 17:00-20:59
	Night     TimeOfDay = "night"     // 21:00-04:59
)

// TimeOfDayForHour buckets a 0-23 hour.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// MacroClass is the dominant macronutrient class of a product.
type MacroClass string

const (
	MacroCarbHeavy    MacroClass = "carb_heavy"
	MacroProteinHeavy MacroClass = "protein_heavy"
	MacroSugarHeavy   MacroClass = "sugar_heavy"
	MacroNeutral      MacroClass = "neutral"
)
