package scoring

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// AllergenMatch pairs a user allergen with the product entry it was found in.
type AllergenMatch struct {
	Allergen string
	Entry    string
	Listed   bool // true when found in the allergen list rather than ingredients
}

func (m AllergenMatch) Text() string {
	if m.Listed {
		return fmt.Sprintf("Contains %s, which is in your allergy list", m.Allergen)
	}
	return fmt.Sprintf("May contain %s: ingredient %q", m.Allergen, m.Entry)
}

// MatchAllergens matches user allergens against the record's allergens and
// ingredients, case-insensitively, by substring in either direction.
// Each user allergen is reported at most once.
func MatchAllergens(userAllergens []string, rec entity.NutritionRecord) []AllergenMatch {
	var out []AllergenMatch
	for _, raw := range userAllergens {
		a := strings.ToLower(strings.TrimSpace(raw))
		if a == "" {
			continue
		}
		if entry, ok := findEntry(a, rec.Allergens); ok {
			out = append(out, AllergenMatch{Allergen: strings.TrimSpace(raw), Entry: entry, Listed: true})
			continue
		}
		if entry, ok := findEntry(a, rec.Ingredients); ok {
			out = append(out, AllergenMatch{Allergen: strings.TrimSpace(raw), Entry: entry})
		}
	}
	return out
}

func findEntry(allergen string, entries []string) (string, bool) {
	for _, e := range entries {
		el := strings.ToLower(strings.TrimSpace(e))
		if el == "" {
			continue
		}
		if strings.Contains(el, allergen) || (len(el) >= 3 && strings.Contains(allergen, el)) {
			return strings.TrimSpace(e), true
		}
	}
	return "", false
}
