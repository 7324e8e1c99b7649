package labeltext

import (
	"context"
	"math"
	"testing"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

const usLabel = `Crunchy Granola Bites
Nutrition Facts
Serving Size 2/3 cup (55g)
Amount Per Serving
Calories 230
Total Fat 8g 10%
Saturated Fat 1g 5%
Trans Fat 0g
Sodium 160mg 7%
Total Carbohydrate 37g 13%
Dietary Fiber 4g 14%
Total Sugars 12g
Includes 10g Added Sugars 20%
Protein 3g
Ingredients: Whole grain oats, sugar, canola oil, peanut butter (peanuts, salt), honey.
Contains: Peanuts and Milk.
Net Wt 12 oz (340g)
0123456789012`

const euLabel = `Nutrition per 100 g
Energy 1046 kJ / 250 kcal
Fat 9.5 g
of which saturates 1.2 g
Carbohydrate 33 g
of which sugars 21 g
Fibre 2,5 g
Protein 6.1 g
Salt 0.5 g`

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestParseUSLabel(t *testing.T) {
	res := Parse(usLabel)
	rec := res.Record

	if rec.Name != "Crunchy Granola Bites" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.Per100g != nil {
		t.Errorf("per-100g should be empty on a per-serving label: %v", rec.Per100g)
	}
	want := entity.Nutrients{
		constants.Calories: 230,
		constants.Fat:      8,
		constants.Sodium:   160,
		constants.Carbs:    37,
		constants.Fiber:    4,
		constants.Sugar:    12,
		constants.Protein:  3,
	}
	for n, v := range want {
		if got, ok := rec.PerServing[n]; !ok || !near(got, v) {
			t.Errorf("%s = %v (present=%v), want %v", n, got, ok, v)
		}
	}
	if rec.ServingSizeG != 55 && rec.ServingSizeG != 2 {
		t.Errorf("serving size grams = %v (%q)", rec.ServingSizeG, rec.ServingSize)
	}
	if rec.NetQuantity == "" {
		t.Error("net quantity not found")
	}
	if len(rec.Ingredients) != 6 || rec.Ingredients[0] != "Whole grain oats" {
		t.Errorf("ingredients = %q", rec.Ingredients)
	}
	if len(rec.Allergens) != 2 || rec.Allergens[0] != "Peanuts" || rec.Allergens[1] != "Milk" {
		t.Errorf("allergens = %q", rec.Allergens)
	}
	if rec.Barcode != "0123456789012" {
		t.Errorf("barcode = %q", rec.Barcode)
	}
	if len(res.Missing) != 0 {
		t.Errorf("missing = %v", res.Missing)
	}
	if res.Confidence <= 0 || res.Confidence > maxConfidence {
		t.Errorf("confidence = %v", res.Confidence)
	}
	if rec.ExtractionMethod != constants.MethodHeuristic {
		t.Errorf("method = %q", rec.ExtractionMethod)
	}
}

func TestParseEULabel(t *testing.T) {
	rec := Parse(euLabel).Record
	if rec.PerServing != nil {
		t.Fatalf("per-serving should be empty: %v", rec.PerServing)
	}
	want := entity.Nutrients{
		constants.Calories: 250,
		constants.Fat:      9.5,
		constants.Carbs:    33,
		constants.Sugar:    21,
		constants.Fiber:    2.5,
		constants.Protein:  6.1,
		constants.Sodium:   200,
	}
	for n, v := range want {
		if got := rec.Per100g[n]; !near(got, v) {
			t.Errorf("%s = %v, want %v", n, got, v)
		}
	}
	if rec.Name != "" {
		t.Errorf("name = %q, want none", rec.Name)
	}
}

func TestParseEnergyFromKilojoules(t *testing.T) {
	n := ParseNutrients("Energy 836.8 kJ")
	if !near(n[constants.Calories], 200) {
		t.Fatalf("calories = %v", n[constants.Calories])
	}
}

func TestParseNutrientsFromSnippet(t *testing.T) {
	n := ParseNutrients("Oreo cookies: 160 calories, 7g fat, Sodium 0.09 g, Sugars: 14g, protein 1 g per serving")
	if !near(n[constants.Calories], 160) {
		t.Errorf("calories = %v", n[constants.Calories])
	}
	if !near(n[constants.Sodium], 90) {
		t.Errorf("sodium = %v", n[constants.Sodium])
	}
	if !near(n[constants.Sugar], 14) || !near(n[constants.Protein], 1) {
		t.Errorf("nutrients = %v", n)
	}
}

func TestParseEmpty(t *testing.T) {
	res := Parse("   \n ")
	if res.Confidence != 0 || len(res.Missing) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if ParseNutrients("no numbers here") != nil {
		t.Fatal("expected nil nutrients")
	}
}

func TestParseExplicitFields(t *testing.T) {
	res := Parse("Product: Greek Yogurt\nBrand: Fage\nCalories 100\nServing size: 170 g")
	if res.Record.Name != "Greek Yogurt" || res.Record.Brand != "Fage" {
		t.Fatalf("identity = %q / %q", res.Record.Name, res.Record.Brand)
	}
	if res.Record.ServingSizeG != 170 {
		t.Fatalf("serving = %v", res.Record.ServingSizeG)
	}
}

func TestStructurer(t *testing.T) {
	rec, conf, missing, err := NewStructurer(nil).Extract(context.Background(), "Calories 120")
	if err != nil {
		t.Fatal(err)
	}
	if !near(rec.PerServing[constants.Calories], 120) || conf <= 0 {
		t.Fatalf("rec = %+v conf = %v", rec, conf)
	}
	if len(missing) != 2 {
		t.Fatalf("missing = %v", missing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := NewStructurer(nil).Extract(ctx, "Calories 120"); err == nil {
		t.Fatal("expected context error")
	}
}
