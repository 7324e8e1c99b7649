package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// chatServer answers every completion with the given message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url, LenientOptional: true}, nil)
}

func TestExtract(t *testing.T) {
	srv := chatServer(t, "```json\n"+`{"product_name":"Choco Bar","serving_size":"45 g","per_serving":{"calories":230,"sugars":"24 g"},"allergens":["milk"],"confidence":0.9}`+"\n```")
	defer srv.Close()

	rec, conf, missing, err := newTestClient(srv.URL).Extract(context.Background(), "Choco Bar ...")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Choco Bar" || rec.ServingSizeG != 45 || rec.ExtractionMethod != constants.MethodLLM {
		t.Fatalf("rec = %+v", rec)
	}
	if rec.PerServing[constants.Sugar] != 24 || rec.PerServing[constants.Calories] != 230 {
		t.Fatalf("per serving = %v", rec.PerServing)
	}
	if conf != 0.9 || len(missing) != 0 {
		t.Fatalf("conf = %v missing = %v", conf, missing)
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	srv := chatServer(t, `not json at all`)
	defer srv.Close()
	if _, _, _, err := newTestClient(srv.URL).Extract(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNotConfigured(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient(Config{}, nil)
	if _, _, _, err := c.Extract(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if _, _, _, err := c.JudgeQuality(context.Background(), entity.NutritionRecord{}, entity.UserProfile{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestJudgeQuality(t *testing.T) {
	srv := chatServer(t, `{"base_score":6.5,"reasoning_steps":["High fiber oats","Moderate added sugar"],"confidence":0.75}`)
	defer srv.Close()

	score, steps, conf, err := newTestClient(srv.URL).JudgeQuality(context.Background(),
		entity.NutritionRecord{Name: "Oats"}, entity.UserProfile{User: "ana"})
	if err != nil {
		t.Fatal(err)
	}
	if score != 6.5 || conf != 0.75 || len(steps) != 2 {
		t.Fatalf("judgment = %v %v %v", score, steps, conf)
	}
}

func TestJudgeQualityOutOfRange(t *testing.T) {
	srv := chatServer(t, `{"base_score":14,"reasoning_steps":[],"confidence":0.75}`)
	defer srv.Close()
	_, _, _, err := newTestClient(srv.URL).JudgeQuality(context.Background(), entity.NutritionRecord{}, entity.UserProfile{})
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("err = %v", err)
	}
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	if _, _, _, err := newTestClient(srv.URL).JudgeQuality(context.Background(), entity.NutritionRecord{}, entity.UserProfile{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := Config{Temperature: 3.5, Model: "label-model"}.withDefaults()
	if cfg.APIKey != "env-key" || cfg.BaseURL != defaultBaseURL {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.JudgeModel != "label-model" {
		t.Fatalf("judge model should fall back to the label model, got %q", cfg.JudgeModel)
	}
	if cfg.Temperature != maxTemperature || cfg.MaxTokens != defaultMaxTokens {
		t.Fatalf("temperature = %v max_tokens = %d", cfg.Temperature, cfg.MaxTokens)
	}
	if neg := (Config{Temperature: -1}).withDefaults(); neg.Temperature != 0 {
		t.Fatalf("negative temperature kept: %v", neg.Temperature)
	}
}

func TestRequestsUsePerTaskModel(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, body)
		content := `{"product_name":"Oats","per_serving":{"calories":150},"confidence":0.8}`
		if strings.Contains(mustJSON(body["messages"]), "base_score") {
			content = `{"base_score":7,"reasoning_steps":["whole grain"],"confidence":0.8}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: "small", JudgeModel: "large", MaxTokens: 300, LenientOptional: true}, nil)
	if _, _, _, err := c.Extract(context.Background(), "Oats"); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := c.JudgeQuality(context.Background(), entity.NutritionRecord{Name: "Oats"}, entity.UserProfile{}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["model"] != "small" || got[1]["model"] != "large" {
		t.Fatalf("models = %v", got)
	}
	if got[0]["max_tokens"] != float64(300) {
		t.Fatalf("max_tokens = %v", got[0]["max_tokens"])
	}
}
