package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

func TestLabelSchemaValidation(t *testing.T) {
	schema := BuildLabelJSONSchema()
	good := `{"product_name":"Oat Bar","per_serving":{"calories":190,"sugar":9},"allergens":["oats"],"confidence":0.8}`
	if err := ValidateJSONAgainstSchema(schema, []byte(good)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	bad := []string{
		`{"product_name":"Oat Bar","per_serving":{"calories":"190 kcal"}}`,
		`{"product_name":"Oat Bar","per_serving":{"vitamin_c":1}}`,
		`{"product_name":"Oat Bar","merchant":"x"}`,
		`{"barcode":"abc"}`,
		`{"confidence":7}`,
	}
	for _, doc := range bad {
		if err := ValidateJSONAgainstSchema(schema, []byte(doc)); err == nil {
			t.Errorf("invalid document accepted: %s", doc)
		}
	}
}

func TestQualitySchema(t *testing.T) {
	schema := BuildQualityJSONSchema()
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"base_score":6.5,"reasoning_steps":["ok"],"confidence":0.7}`)); err != nil {
		t.Fatal(err)
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"base_score":11,"reasoning_steps":[],"confidence":0.7}`)); err == nil {
		t.Fatal("score above 10 accepted")
	}
}

func TestNormalizeAndSanitize(t *testing.T) {
	raw := `{"name":"Cola","nutriments":{"Sugars":10.6,"energy-kcal_100g":42,"salt":0.5,"caffeine":10},"brand":"","notes":"x","allergens":null}`
	out, dropped, err := NormalizeAndSanitizeJSON([]byte(raw), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dropped) == 0 {
		t.Fatal("expected dropped keys to be reported")
	}
	var f LabelFields
	if err := json.Unmarshal(out, &f); err != nil {
		t.Fatal(err)
	}
	if f.ProductName != "Cola" || f.Brand != "" {
		t.Fatalf("identity = %+v", f)
	}
	if f.Per100g["sugar"] != 10.6 || f.Per100g["calories"] != 42 || f.Per100g["sodium"] != 200 {
		t.Fatalf("per_100g = %v", f.Per100g)
	}
	if _, ok := f.Per100g["caffeine"]; ok {
		t.Fatal("unknown nutrient kept")
	}
	if err := ValidateJSONAgainstSchema(BuildLabelJSONSchema(), out); err != nil {
		t.Fatalf("normalized document does not validate: %v", err)
	}
}

func TestNormalizeSaltToSodium(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{"bare salt", `{"per_100g":{"salt":1.2}}`, 480},
		{"suffixed salt", `{"per_100g":{"salt_100g":1.2}}`, 480},
		{"serving salt", `{"per_100g":{"SALT_serving":0.5}}`, 200},
		{"sodium beats salt", `{"per_100g":{"salt":1.2,"sodium":300}}`, 300},
		{"sodium beats suffixed salt", `{"per_100g":{"sodium_100g":300,"salt_100g":1.2}}`, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// map order is random; repeat to catch order dependence
			for i := 0; i < 20; i++ {
				out, _, err := NormalizeAndSanitizeJSON([]byte(tc.raw), nil)
				if err != nil {
					t.Fatal(err)
				}
				var f LabelFields
				if err := json.Unmarshal(out, &f); err != nil {
					t.Fatal(err)
				}
				if got := f.Per100g["sodium"]; got != tc.want {
					t.Fatalf("sodium = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSanitizeOptionalFields(t *testing.T) {
	raw := `{"product_name":"Bar","barcode":"12 345","serving_size_g":"40 g","per_serving":{"protein":"12.5 g","fat":-1},"ingredients":"oats, honey, ","confidence":85}`
	out, dropped, err := SanitizeOptionalFields([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateJSONAgainstSchema(BuildLabelJSONSchema(), out); err != nil {
		t.Fatalf("sanitized document does not validate: %v (%s)", err, out)
	}
	var f LabelFields
	if err := json.Unmarshal(out, &f); err != nil {
		t.Fatal(err)
	}
	if f.Barcode != "" || f.ServingSizeG != 40 || f.PerServing["protein"] != 12.5 {
		t.Fatalf("fields = %+v", f)
	}
	if len(f.Ingredients) != 2 || f.Confidence != 0.85 {
		t.Fatalf("ingredients/confidence = %v / %v", f.Ingredients, f.Confidence)
	}
	if !strings.Contains(strings.Join(dropped, ","), "per_serving.fat") {
		t.Fatalf("dropped = %v", dropped)
	}
}

func TestLabelFieldsRecord(t *testing.T) {
	f := LabelFields{
		ProductName: " Yogurt ",
		ServingSize: "150 g",
		PerServing:  map[string]float64{"protein": 15, "fibre": 0, "bogus": 3},
	}
	rec := f.Record(constants.MethodLLM)
	if rec.Name != "Yogurt" || rec.ServingSizeG != 150 {
		t.Fatalf("rec = %+v", rec)
	}
	if rec.PerServing[constants.Protein] != 15 || !rec.PerServing.Has(constants.Fiber) || len(rec.PerServing) != 2 {
		t.Fatalf("per serving = %v", rec.PerServing)
	}
	if rec.Per100g != nil {
		t.Fatalf("per 100g = %v", rec.Per100g)
	}
}

func TestJudgePromptMentionsTargets(t *testing.T) {
	rec := entity.NutritionRecord{Name: "Granola", PerServing: entity.Nutrients{constants.Sugar: 12}}
	p := entity.UserProfile{Goals: entity.Goals{FitnessGoal: "weight_loss"}, DailyTargets: entity.Nutrients{constants.Sugar: 50}}
	got := BuildJudgeUserPrompt(rec, p)
	for _, want := range []string{"Granola", "sugar 12.0 g", "weight_loss", "User daily targets"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestLabelPromptTruncates(t *testing.T) {
	got := BuildLabelUserPrompt(strings.Repeat("a", maxPromptText+50))
	if !strings.HasSuffix(got, "(truncated)") {
		t.Fatal("long text not truncated")
	}
}

func TestSendJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("X-Test") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL+"/ok", map[string]any{"a": 1}, map[string]string{"X-Test": "1"}, nil)
	if err != nil || status != http.StatusOK || string(raw) != `{"ok":true}` {
		t.Fatalf("ok call: %s %d %v", raw, status, err)
	}
	raw, status, err = SendJSON(context.Background(), srv.Client(), srv.URL+"/fail", map[string]any{}, map[string]string{"X-Test": "1"}, nil)
	if err == nil || status != http.StatusBadGateway || !strings.Contains(string(raw), "upstream") {
		t.Fatalf("failing call: %s %d %v", raw, status, err)
	}
}

func TestSendJSONRetriesOnceWhenThrottled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]any{}, nil, nil)
	if err != nil || status != http.StatusOK || string(raw) != `{"ok":true}` {
		t.Fatalf("got %s %d %v", raw, status, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestSendJSONGivesUpAfterOneRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]any{}, nil, nil)
	var he *HTTPError
	if !errors.As(err, &he) || status != http.StatusServiceUnavailable || !he.Retryable() {
		t.Fatalf("got %d %v", status, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{"": defaultRetryWait, "x": defaultRetryWait, "1": time.Second, "30": maxRetryWait}
	for in, want := range cases {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%q) = %s, want %s", in, got, want)
		}
	}
}
