package scoring

import (
	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// Time multipliers by time of day and macro class.
const (
	TimeNeutral          = 1.0
	TimeMorningProtein   = 1.2
	TimeMorningCarb      = 1.1
	TimeNightSugar       = 0.8
	TimeNightHighCalorie = 0.9
)

// Energy-share thresholds for macro classification.
const (
	sugarHeavyShare   = 0.25
	proteinHeavyShare = 0.25
	carbHeavyShare    = 0.50

	highCalorieKcal = 400.0
)

// MacroClassOf finds the dominant macronutrient class from energy shares.
// Per-100g values are preferred; sugar outranks protein which outranks carbs.
func MacroClassOf(rec entity.NutritionRecord) constants.MacroClass {
	amounts := rec.Per100g
	if len(amounts) == 0 {
		amounts = rec.ServingAmounts()
	}
	carbs, protein, fat, sugar := amounts[constants.Carbs], amounts[constants.Protein], amounts[constants.Fat], amounts[constants.Sugar]
	kcal := amounts[constants.Calories]
	if kcal <= 0 {
		kcal = 4*carbs + 4*protein + 9*fat
	}
	if kcal <= 0 {
		return constants.MacroNeutral
	}
	switch {
	case 4*sugar/kcal >= sugarHeavyShare:
		return constants.MacroSugarHeavy
	case 4*protein/kcal >= proteinHeavyShare:
		return constants.MacroProteinHeavy
	case 4*carbs/kcal >= carbHeavyShare:
		return constants.MacroCarbHeavy
	default:
		return constants.MacroNeutral
	}
}

// IsHighCalorie reports whether the consumed amount or the per-100g energy is high.
func IsHighCalorie(rec entity.NutritionRecord, servings float64) bool {
	if rec.ConsumedAmounts(servings)[constants.Calories] >= highCalorieKcal {
		return true
	}
	return rec.Per100g[constants.Calories] >= highCalorieKcal
}

// TimeMultiplier favors carbs and protein in the morning and penalizes sugar
// and heavy items at night.
func TimeMultiplier(tod constants.TimeOfDay, class constants.MacroClass, highCalorie bool) float64 {
	switch tod {
	case constants.Morning:
		switch class {
		case constants.MacroProteinHeavy:
			return TimeMorningProtein
		case constants.MacroCarbHeavy:
			return TimeMorningCarb
		}
	case constants.Night:
		if class == constants.MacroSugarHeavy {
			return TimeNightSugar
		}
		if highCalorie {
			return TimeNightHighCalorie
		}
	}
	return TimeNeutral
}
