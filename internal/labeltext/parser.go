// Package labeltext parses nutrition facts out of free label text with
// regular expressions. It backs the text structurer when no model is
// configured and reads nutrient figures out of web search snippets.
package labeltext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
)

// kJ per kcal
const kjPerKcal = 4.184

// Heuristic parses never claim more than this.
const maxConfidence = 0.6

var (
	reNumber = `(\d+(?:[.,]\d+)?)`

	reKcal        = regexp.MustCompile(`(?i)` + reNumber + `\s*kcal\b`)
	reKJ          = regexp.MustCompile(`(?i)` + reNumber + `\s*kj\b`)
	reCaloriesRow = regexp.MustCompile(`(?i)\b(?:calories|energy)\b[^\d\n]{0,12}` + reNumber)
	reCaloriesPre = regexp.MustCompile(`(?i)` + reNumber + `[ \t]*(?:calories|cals?)\b`)

	rePer100      = regexp.MustCompile(`(?i)\bper\s*100\s*(?:g|ml)\b|/\s*100\s*(?:g|ml)\b`)
	reServingSize = regexp.MustCompile(`(?i)\bserving\s+size\b\s*:?\s*([^\n]+)`)
	reNetQuantity = regexp.MustCompile(`(?i)\bnet\s+(?:wt|weight|quantity|contents)\b\.?\s*:?\s*([^\n]+)`)
	reIngredients = regexp.MustCompile(`(?is)\bingredients\s*:\s*(.+?)(?:\.\s|\n\s*\n|\n[A-Z][A-Za-z ]{2,20}:|$)`)
	reContains    = regexp.MustCompile(`(?i)\b(?:contains|allergens)\s*:?\s*([^\n.]+)`)
	reNameField   = regexp.MustCompile(`(?i)^\s*(?:product|name|product name)\s*:\s*(.+)$`)
	reBrandField  = regexp.MustCompile(`(?i)^\s*(?:brand|manufacturer)\s*:\s*(.+)$`)
	reBarcode     = regexp.MustCompile(`\b(\d{13}|\d{12}|\d{8})\b`)
	reHasDigit    = regexp.MustCompile(`\d`)
	reHasLetters  = regexp.MustCompile(`[A-Za-z]{3,}`)
	reListSplit   = regexp.MustCompile(`\s*(?:,|;|\band\b)\s*`)
)

// nutrientRow describes one label row. Rows are matched in order and the
// first hit for a nutrient wins.
type nutrientRow struct {
	nutrient constants.Nutrient
	re       *regexp.Regexp
	skip     []string // lines containing any of these are not this nutrient
}

var rows = []nutrientRow{
	{constants.Protein, rowRe(`proteins?`), nil},
	{constants.Carbs, rowRe(`total\s+carbohydrates?|carbohydrates?|total\s+carbs?|carbs?`), nil},
	{constants.Sugar, rowRe(`total\s+sugars?|sugars?`), []string{"added", "alcohol"}},
	{constants.Fat, rowRe(`total\s+fat|fat`), []string{"saturated", "trans", "poly", "mono", "calories from"}},
	{constants.Fiber, rowRe(`dietary\s+fib(?:er|re)|fib(?:er|re)`), nil},
	{constants.Sodium, rowRe(`sodium`), nil},
}

var reSalt = rowRe(`salt`)

func rowRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + label + `)\b[^\d\n]{0,16}` + reNumber + `\s*(mg|g)?\b`)
}

// Result is a heuristic parse with the slots it could not fill.
type Result struct {
	Record     entity.NutritionRecord
	Confidence float64
	Missing    []string
}

// Parse extracts what it can from label text. It never fails; an empty
// result simply carries zero confidence.
func Parse(text string) Result {
	rec := entity.NutritionRecord{ExtractionMethod: constants.MethodHeuristic}
	if strings.TrimSpace(text) == "" {
		return Result{Record: rec, Missing: gaps.Analyze(rec).CriticalGaps}
	}

	amounts := parseNutrients(text)
	if rePer100.MatchString(text) {
		rec.Per100g = amounts
	} else if len(amounts) > 0 {
		rec.PerServing = amounts
	}

	if m := reServingSize.FindStringSubmatch(text); m != nil {
		rec.ServingSize = cleanValue(m[1])
		rec.ServingSizeG = entity.ParseGrams(rec.ServingSize)
	}
	if m := reNetQuantity.FindStringSubmatch(text); m != nil {
		rec.NetQuantity = cleanValue(m[1])
	}
	if m := reIngredients.FindStringSubmatch(text); m != nil {
		rec.Ingredients = splitList(strings.ReplaceAll(m[1], "\n", " "), 40)
	}
	if m := reContains.FindStringSubmatch(text); m != nil {
		rec.Allergens = splitList(m[1], 20)
	}
	rec.Name, rec.Brand = parseIdentity(text)
	rec.Barcode = parseBarcode(text)

	report := gaps.Analyze(rec)
	rec.Confidence = confidence(len(amounts), report.CompletenessScore)
	return Result{Record: rec, Confidence: rec.Confidence, Missing: report.CriticalGaps}
}

// ParseNutrients reads just the nutrient figures, for snippets that carry
// no product framing.
func ParseNutrients(text string) entity.Nutrients {
	return parseNutrients(text)
}

func parseNutrients(text string) entity.Nutrients {
	out := entity.Nutrients{}
	if kcal, ok := parseEnergy(text); ok {
		out[constants.Calories] = kcal
	}
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, r := range rows {
			if out.Has(r.nutrient) || containsAny(lower, r.skip) {
				continue
			}
			for _, idx := range r.re.FindAllStringSubmatchIndex(line, -1) {
				if strings.HasPrefix(strings.TrimLeft(line[idx[1]:], " "), "%") {
					continue
				}
				v, ok := parseFloat(line[idx[2]:idx[3]])
				if !ok {
					continue
				}
				unit := ""
				if idx[4] >= 0 {
					unit = strings.ToLower(line[idx[4]:idx[5]])
				}
				if r.nutrient == constants.Sodium && (unit == "g" || (unit == "" && v < 10)) {
					v *= 1000
				}
				out[r.nutrient] = v
				break
			}
		}
		if !out.Has(constants.Sodium) {
			if m := reSalt.FindStringSubmatch(line); m != nil {
				if v, ok := parseFloat(m[1]); ok {
					if strings.EqualFold(m[2], "mg") {
						v /= 1000
					}
					// salt is 40% sodium by weight
					out[constants.Sodium] = v * 400
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseEnergy(text string) (float64, bool) {
	if m := reKcal.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	if m := reKJ.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			return v / kjPerKcal, true
		}
	}
	if m := reCaloriesPre.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	if m := reCaloriesRow.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	return 0, false
}

var headings = []string{
	"nutrition", "ingredients", "serving", "amount per", "daily value", "contains", "net wt", "per 100",
	"calories", "energy", "total", "protein", "sodium", "salt", "fat", "carbohydrate", "sugar", "fiber", "vitamin",
}

func parseIdentity(text string) (name, brand string) {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if m := reNameField.FindStringSubmatch(line); m != nil && name == "" {
			name = cleanValue(m[1])
		}
		if m := reBrandField.FindStringSubmatch(line); m != nil && brand == "" {
			brand = cleanValue(m[1])
		}
	}
	if name != "" {
		return name, brand
	}
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" || reHasDigit.MatchString(l) || !reHasLetters.MatchString(l) || strings.Contains(l, ":") {
			continue
		}
		if containsAny(strings.ToLower(l), headings) {
			continue
		}
		return l, brand
	}
	return "", brand
}

func parseBarcode(text string) string {
	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimSpace(line)
		if reHasLetters.MatchString(l) {
			continue
		}
		if m := reBarcode.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	return ""
}

// confidence grows with recognized nutrients and filled critical slots.
func confidence(nutrients int, completeness float64) float64 {
	if nutrients == 0 && completeness == 0 {
		return 0
	}
	c := 0.2 + 0.03*float64(nutrients) + 0.2*completeness
	if c > maxConfidence {
		c = maxConfidence
	}
	return c
}

func splitList(s string, max int) []string {
	var out []string
	for _, part := range reListSplit.Split(s, -1) {
		p := strings.Trim(strings.TrimSpace(part), ".()[]*")
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == max {
			break
		}
	}
	return out
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ".,;"))
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return v, err == nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
