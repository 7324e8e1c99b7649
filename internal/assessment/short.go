package assessment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// Short builds the glanceable summary and up to three key points.
func Short(a entity.DetailedAssessment) entity.ShortAssessment {
	verdict := string(a.Verdict)
	if verdict != "" {
		verdict = strings.ToUpper(verdict[:1]) + verdict[1:]
	}
	summary := fmt.Sprintf("%s %s: %s scores %.1f/10", a.VerdictEmoji, verdict, a.Product, a.FinalScore)
	if len(a.AllergenAlerts) > 0 {
		summary = fmt.Sprintf("%s Avoid: %s contains an allergen from your list", a.VerdictEmoji, a.Product)
	}

	var points []string
	add := func(s string) {
		if s != "" && len(points) < maxKeyPoints {
			points = append(points, s)
		}
	}
	for _, s := range a.AllergenAlerts {
		add(s)
	}
	if len(a.Warnings) > 0 && len(a.AllergenAlerts) == 0 {
		add(a.Warnings[0])
	}
	if len(a.Highlights) > 0 {
		add(a.Highlights[0])
	}
	add(a.PortionSuggestion)
	if a.Degraded() {
		add("Some product data was incomplete, so treat this as an estimate")
	}
	if points == nil {
		points = []string{}
	}
	return entity.ShortAssessment{Summary: clip(summary, maxSummaryLen), KeyPoints: points}
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
