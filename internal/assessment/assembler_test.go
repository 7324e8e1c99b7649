package assessment

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
)

func sugarProjection() ledger.Projection {
	return ledger.Projection{
		Level:     constants.ModerationExceeding,
		MaxRatio:  1.0,
		Nutrient:  constants.Sugar,
		Consumed:  entity.Nutrients{constants.Sugar: 35},
		Candidate: entity.Nutrients{constants.Sugar: 15},
		Projected: entity.Nutrients{constants.Sugar: 50},
	}
}

func baseInput() Input {
	return Input{
		ScanID: "scan-1",
		User:   "ada",
		At:     time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC),
		Nutrition: entity.NutritionRecord{
			Name: "Choco Bar", Brand: "Acme",
			PerServing: entity.Nutrients{constants.Sugar: 15, constants.Protein: 2.25},
			Confidence: 0.9,
		},
		Servings: 1,
		Scoring: entity.ScoringResult{
			BaseScore: 6, ContextMultiplier: 0.7, TimeMultiplier: 0.8, FinalScore: 3.36,
			Verdict:         constants.VerdictCaution,
			ModerationLevel: constants.ModerationExceeding,
			MacroClass:      constants.MacroSugarHeavy,
			Confidence:      0.8,
			ReasoningSteps:  []string{"Sugar is high per WHO guidance", "Label confirmed by Open Food Facts"},
			Warnings:        []entity.Finding{{Nutrient: constants.Sugar, Text: "High sugar: exceeds FDA daily value guidance"}},
		},
		Context:    entity.ConsumptionContext{TimeOfDay: constants.Night},
		Projection: sugarProjection(),
		Targets:    entity.Nutrients{constants.Sugar: 50},
		Sources: []entity.CitationSource{
			{SourceType: constants.SourceLabelOCR, Title: "Package label"},
			{SourceType: constants.SourceWeb, Title: "Added sugars", URL: "https://www.fda.gov/food/added-sugars"},
			{SourceType: constants.SourceOpenFoodFacts, Title: "Open Food Facts: Acme Choco Bar", URL: "https://world.openfoodfacts.org/product/123"},
			{SourceType: constants.SourceHealthGuideline, Title: "Sugar intake guideline", URL: "https://www.who.int/sugars"},
		},
	}
}

func TestAssembleScenario(t *testing.T) {
	a := Assemble(baseInput())

	if a.FinalCalculation != "6.0 × 0.7 × 0.8 = 3.36" {
		t.Fatalf("final calculation: %q", a.FinalCalculation)
	}
	if a.Verdict != constants.VerdictCaution || a.VerdictEmoji != "🟡" {
		t.Fatalf("verdict: %s %s", a.Verdict, a.VerdictEmoji)
	}
	want := "You've had 35 g sugar today (70% of your limit); this adds 15 g more."
	if !strings.HasPrefix(a.ModerationMessage, want) {
		t.Fatalf("moderation message: %q", a.ModerationMessage)
	}
	if !strings.Contains(a.TimingRecommendation, "late at night") {
		t.Fatalf("timing: %q", a.TimingRecommendation)
	}
	if a.PortionSuggestion != "Try 0.25 servings instead of 1 serving to stay within your sugar limit." {
		t.Fatalf("portion: %q", a.PortionSuggestion)
	}
	if a.Product != "Acme Choco Bar" || a.Confidence != 0.8 {
		t.Fatalf("product %q confidence %.2f", a.Product, a.Confidence)
	}
	if a.NutritionSnapshot[constants.Protein] != 2.3 {
		t.Fatalf("snapshot should be rounded: %v", a.NutritionSnapshot)
	}
}

func TestCitationNumberingFollowsFirstReference(t *testing.T) {
	a := Assemble(baseInput())
	order := []string{}
	for i, c := range a.Citations {
		if c.Number != i+1 {
			t.Fatalf("citations must be sorted by number: %+v", a.Citations)
		}
		order = append(order, c.Title)
	}
	want := []string{"Sugar intake guideline", "Open Food Facts: Acme Choco Bar", "Added sugars", "Package label"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v want %v", order, want)
		}
	}
	refs := a.InlineCitations["High sugar: exceeds FDA daily value guidance"]
	if len(refs) != 1 || refs[0] != 3 {
		t.Fatalf("inline citations: %v", a.InlineCitations)
	}
}

func TestSourceMatcherCoversEveryKey(t *testing.T) {
	ms := compileSources([]entity.CitationSource{
		{Title: "Added sugars", URL: "https://www.fda.gov/food/added-sugars"},
		{SourceType: constants.SourceLabelOCR},
	})
	if ms[1].re != nil || ms[1].matches("anything") {
		t.Fatal("source without keys must never match")
	}
	for _, text := range []string{"see added SUGARS", "per fda.gov", "FDA says so"} {
		if !ms[0].matches(text) {
			t.Errorf("%q should reference the source", text)
		}
	}
	if ms[0].matches("fdagov") || ms[0].matches("unfda") {
		t.Error("keys must match on word boundaries")
	}
}

func TestCitationHelpersAgreeWithAssemble(t *testing.T) {
	in := baseInput()
	a := Assemble(in)
	texts := append(append([]string(nil), a.ReasoningSteps...), a.Warnings...)
	texts = append(texts, a.Highlights...)
	numbered := NumberCitations(in.Sources, texts)
	for i := range numbered {
		if numbered[i] != a.Citations[i] {
			t.Fatalf("citation %d: %+v vs %+v", i, numbered[i], a.Citations[i])
		}
	}
	inl := InlineCitations(numbered, append(append([]string(nil), a.Warnings...), a.Highlights...))
	if len(inl) != len(a.InlineCitations) {
		t.Fatalf("inline: %v vs %v", inl, a.InlineCitations)
	}
	if in.Sources[0].Number != 0 {
		t.Fatal("input sources must not be renumbered in place")
	}
}

func TestAllergenAssessment(t *testing.T) {
	in := baseInput()
	in.Scoring = entity.ScoringResult{
		Verdict: constants.VerdictAvoid, ContextMultiplier: 1, TimeMultiplier: 1,
		AllergenMatches: []string{"peanuts"}, Confidence: 1,
		Warnings: []entity.Finding{{Severity: entity.SeverityCritical, Text: "Contains peanuts, which is in your allergy list"}},
	}
	a := Assemble(in)
	if a.FinalCalculation != "allergen override = 0.00" || len(a.AllergenAlerts) != 1 {
		t.Fatalf("unexpected %+v", a)
	}
	if a.PortionSuggestion != "" || !strings.Contains(a.Short.Summary, "allergen") {
		t.Fatalf("portion %q summary %q", a.PortionSuggestion, a.Short.Summary)
	}
	if a.Short.KeyPoints[0] != a.AllergenAlerts[0] {
		t.Fatalf("allergen alert should lead the key points: %v", a.Short.KeyPoints)
	}
}

func TestShortIsBounded(t *testing.T) {
	in := baseInput()
	in.Nutrition.Name = strings.Repeat("Extra Long Product Name ", 10)
	in.Scoring.Highlights = []entity.Finding{{Text: "Good source of fiber"}}
	in.Degradations = []entity.Degradation{{Kind: "gap_unresolved"}}
	a := Assemble(in)
	if n := utf8.RuneCountInString(a.Short.Summary); n > maxSummaryLen {
		t.Fatalf("summary is %d runes", n)
	}
	if len(a.Short.KeyPoints) > maxKeyPoints {
		t.Fatalf("too many key points: %v", a.Short.KeyPoints)
	}
}

func TestPortionSuggestion(t *testing.T) {
	p := ledger.Projection{
		Level:     constants.ModerationApproaching,
		Nutrient:  constants.Sugar,
		Consumed:  entity.Nutrients{constants.Sugar: 20},
		Candidate: entity.Nutrients{constants.Sugar: 40},
	}
	targets := entity.Nutrients{constants.Sugar: 50}
	// room = 40 - 20 = 20 g, 20 g per serving over two servings fits one serving
	if got := PortionSuggestion(p, targets, 2); got != "Try 1 serving instead of 2 servings to stay within your sugar limit." {
		t.Fatalf("got %q", got)
	}
	p.Level = constants.ModerationWithin
	if got := PortionSuggestion(p, targets, 2); got != "" {
		t.Fatalf("within should not suggest a portion, got %q", got)
	}
}

func TestPortionSuggestionBudgetSpent(t *testing.T) {
	p := sugarProjection()
	p.Consumed = entity.Nutrients{constants.Sugar: 45}
	want := "You've already used most of today's sugar budget; consider skipping this or picking a lower-sugar option."
	if got := PortionSuggestion(p, entity.Nutrients{constants.Sugar: 50}, 1); got != want {
		t.Fatalf("got %q", got)
	}
}

func TestFinalCalculationCapped(t *testing.T) {
	s := entity.ScoringResult{BaseScore: 9.5, ContextMultiplier: 1.2, TimeMultiplier: 1.1, FinalScore: 10}
	if got := FinalCalculation(s); got != "9.5 × 1.2 × 1.1 = 10.00 (capped)" {
		t.Fatalf("got %q", got)
	}
}

func TestModerationMessageWithoutTargets(t *testing.T) {
	if got := ModerationMessage(ledger.Projection{}, nil); got != "No daily limits set to compare against." {
		t.Fatalf("got %q", got)
	}
}
