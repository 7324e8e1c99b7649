package ocr

import (
	"regexp"
	"strings"
)

var (
	reEnergy    = regexp.MustCompile(`\b(kcal|kj|calories)\b`)
	rePer100    = regexp.MustCompile(`per\s*100\s*(g|ml)`)
	reProtein   = regexp.MustCompile(`\bprotein\b`)
	reIngreds   = regexp.MustCompile(`\bingredients\b`)
	reUnitValue = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s?(g|mg|mcg|kcal|kj|ml)\b`)
)

// naive heuristic confidence based on how much of a nutrition panel the text resembles
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := 0.2
	if reEnergy.MatchString(txtL) {
		score += 0.2
	}
	if rePer100.MatchString(txtL) {
		score += 0.1
	}
	if reProtein.MatchString(txtL) {
		score += 0.1
	}
	if reIngreds.MatchString(txtL) {
		score += 0.1
	}
	if n := len(reUnitValue.FindAllString(txtL, -1)); n >= 3 {
		score += 0.15
	} else if n > 0 {
		score += 0.05
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
