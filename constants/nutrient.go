package constants

import "strings"

// Nutrient is the canonical key for a tracked nutrient.
type Nutrient string

const (
	Calories Nutrient = "calories" // kcal
	Protein  Nutrient = "protein"  // g
	Carbs    Nutrient = "carbs"    // g
	Fat      Nutrient = "fat"      // g
	Sugar    Nutrient = "sugar"    // g
	Sodium   Nutrient = "sodium"   // mg
	Fiber    Nutrient = "fiber"    // g
)

var allNutrients = []Nutrient{Calories, Protein, Carbs, Fat, Sugar, Sodium, Fiber}

// AllNutrients returns the tracked nutrients in display order.
func AllNutrients() []Nutrient {
	out := make([]Nutrient, len(allNutrients))
	copy(out, allNutrients)
	return out
}

// ModerationNutrients are the nutrients whose projected totals drive the moderation level.
var ModerationNutrients = []Nutrient{Calories, Sugar, Sodium}

// Unit returns the display unit for the nutrient.
func (n Nutrient) Unit() string {
	switch n {
	case Calories:
		return "kcal"
	case Sodium:
		return "mg"
	default:
		return "g"
	}
}

// IsLimit reports whether more of the nutrient is worse (a budget to stay under).
func (n Nutrient) IsLimit() bool {
	switch n {
	case Calories, Sugar, Sodium, Fat:
		return true
	}
	return false
}

// CanonicalizeNutrient maps label and API spellings onto a Nutrient.
func CanonicalizeNutrient(input string) (Nutrient, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimSuffix(normalized, "_100g")
	normalized = strings.TrimSuffix(normalized, "_serving")

	synonyms := map[string]Nutrient{
		"energy":        Calories,
		"energy-kcal":   Calories,
		"kcal":          Calories,
		"calorie":       Calories,
		"carbohydrate":  Carbs,
		"carbohydrates": Carbs,
		"total carbs":   Carbs,
		"sugars":        Sugar,
		"total sugars":  Sugar,
		"salt":          Sodium,
		"proteins":      Protein,
		"fibre":         Fiber,
		"dietary fiber": Fiber,
		"total fat":     Fat,
	}
	if n, ok := synonyms[normalized]; ok {
		return n, true
	}
	for _, n := range allNutrients {
		if normalized == string(n) {
			return n, true
		}
	}
	return "", false
}
