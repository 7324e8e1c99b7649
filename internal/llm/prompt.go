package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

const maxPromptText = 3000

// BuildLabelSystemPrompt composes the system message for label structuring.
func BuildLabelSystemPrompt() string {
	var units []string
	for _, n := range constants.AllNutrients() {
		units = append(units, fmt.Sprintf("%s in %s", n, n.Unit()))
	}
	parts := []string{
		"You are a food label parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Copy values exactly as printed; never estimate or invent numbers.",
		"Put 'per 100 g' or 'per 100 ml' columns under 'per_100g' and per-serving columns under 'per_serving'.",
		"Nutrient keys and units: " + strings.Join(units, ", ") + ".",
		"If only salt is printed, convert it to sodium in mg (salt g × 400).",
		"List every allergen the label declares (e.g. from 'Contains:' lines or bold ingredients) under 'allergens'.",
		"Split the ingredient list on commas into 'ingredients'.",
		"Set 'confidence' between 0 and 1 to reflect how legible the text was.",
		// formatting hygiene:
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildLabelUserPrompt packages the extracted label text.
func BuildLabelUserPrompt(rawText string) string {
	var b strings.Builder
	txt := strings.TrimSpace(rawText)
	b.WriteString("Label text (first ~3k chars):\n")
	if len(txt) > maxPromptText {
		b.WriteString(txt[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(txt)
	}
	return b.String()
}

// BuildJudgeSystemPrompt composes the system message for the intrinsic-quality judgment.
func BuildJudgeSystemPrompt() string {
	parts := []string{
		"You are a nutrition analyst. Rate the intrinsic nutritional quality of ONE serving of the product on a 0-10 scale as 'base_score'.",
		"Judge the product itself: nutrient density, processing, added sugar, sodium, fiber and protein.",
		"Do NOT account for what the user already ate today or the time of day; that is applied separately.",
		"Use the user's goals only to weigh which nutrients matter most.",
		"Give 2-5 short 'reasoning_steps', each one sentence with the figure it relies on.",
		"Set 'confidence' between 0 and 1; lower it when the nutrition data is incomplete.",
		"Return ONLY JSON that matches the provided JSON Schema.",
	}
	return strings.Join(parts, " ")
}

// BuildJudgeUserPrompt describes the product and the user's goals.
func BuildJudgeUserPrompt(rec entity.NutritionRecord, profile entity.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", rec.DisplayName())
	if rec.ServingSize != "" {
		fmt.Fprintf(&b, "Serving size: %s\n", rec.ServingSize)
	}
	writeNutrients(&b, "Per serving", rec.ServingAmounts())
	if len(rec.Per100g) > 0 {
		writeNutrients(&b, "Per 100 g", rec.Per100g)
	}
	if len(rec.Ingredients) > 0 {
		fmt.Fprintf(&b, "Ingredients: %s\n", strings.Join(rec.Ingredients, ", "))
	}
	if g := profile.Goals.FitnessGoal; g != "" {
		fmt.Fprintf(&b, "User goal: %s\n", g)
	}
	if len(profile.Goals.HealthGoals) > 0 {
		fmt.Fprintf(&b, "Health goals: %s\n", strings.Join(profile.Goals.HealthGoals, ", "))
	}
	if len(profile.DailyTargets) > 0 {
		writeNutrients(&b, "User daily targets", profile.DailyTargets)
	}
	return b.String()
}

func writeNutrients(b *strings.Builder, label string, n entity.Nutrients) {
	if len(n) == 0 {
		return
	}
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		nut := constants.Nutrient(k)
		parts = append(parts, fmt.Sprintf("%s %.1f %s", k, n[nut], nut.Unit()))
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, ", "))
}
