package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
	"github.com/joseph-ayodele/bytelense/internal/llm"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("openai: api key not configured")

// Extract implements llm.LabelStructurer using text-only chat/completions.
func (c *Client) Extract(ctx context.Context, rawText string) (entity.NutritionRecord, float64, []string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(rawText),
	)
	if !c.Configured() {
		return entity.NutritionRecord{}, 0, nil, ErrNotConfigured
	}

	schema := llm.BuildLabelJSONSchema()
	content, err := c.complete(ctx, rid, c.cfg.Model, llm.BuildLabelSystemPrompt(), llm.BuildLabelUserPrompt(rawText), schema)
	if err != nil {
		return entity.NutritionRecord{}, 0, nil, err
	}

	normalized, _, err := llm.NormalizeAndSanitizeJSON(content, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.normalize_failed", "req_id", rid, "error", err)
		return entity.NutritionRecord{}, 0, nil, err
	}
	validated, err := c.validate(rid, schema, normalized)
	if err != nil {
		return entity.NutritionRecord{}, 0, nil, err
	}

	var fields llm.LabelFields
	if err := json.Unmarshal(validated, &fields); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return entity.NutritionRecord{}, 0, nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	rec := fields.Record(constants.MethodLLM)
	report := gaps.Analyze(rec)
	conf := fields.Confidence
	if conf <= 0 {
		conf = 0.5 + 0.4*report.CompletenessScore
	}
	rec.Confidence = conf

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"product", rec.DisplayName(),
		"per_100g", len(rec.Per100g),
		"per_serving", len(rec.PerServing),
		"allergens", len(rec.Allergens),
		"missing", report.CriticalGaps,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, conf, report.CriticalGaps, nil
}

// JudgeQuality implements the reasoning collaborator: an intrinsic 0-10 rating.
func (c *Client) JudgeQuality(ctx context.Context, rec entity.NutritionRecord, profile entity.UserProfile) (float64, []string, float64, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.judge.start", "req_id", rid, "model", c.cfg.JudgeModel, "product", rec.DisplayName())
	if !c.Configured() {
		return 0, nil, 0, ErrNotConfigured
	}

	schema := llm.BuildQualityJSONSchema()
	content, err := c.complete(ctx, rid, c.cfg.JudgeModel, llm.BuildJudgeSystemPrompt(), llm.BuildJudgeUserPrompt(rec, profile), schema)
	if err != nil {
		return 0, nil, 0, err
	}
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.logger.Error("llm.judge.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return 0, nil, 0, fmt.Errorf("schema validation failed: %w", err)
	}

	var j llm.QualityJudgment
	if err := json.Unmarshal(content, &j); err != nil {
		return 0, nil, 0, fmt.Errorf("unmarshal judgment: %w", err)
	}

	c.logger.Info("llm.judge.ok",
		"req_id", rid,
		"base_score", j.BaseScore,
		"confidence", j.Confidence,
		"steps", len(j.ReasoningSteps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return j.BaseScore, j.ReasoningSteps, j.Confidence, nil
}

// complete runs one chat completion and returns the message content.
func (c *Client) complete(ctx context.Context, rid, model, system, user string, schema map[string]any) ([]byte, error) {
	start := time.Now()
	body := map[string]any{
		"model":           model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.no_choices", "req_id", rid, "raw", string(raw))
		return nil, fmt.Errorf("no choices in openai response")
	}
	return []byte(stripFences(cc.Choices[0].Message.Content)), nil
}

// validate checks strictly first, then retries once after lenient sanitizing.
func (c *Client) validate(rid string, schema map[string]any, content []byte) ([]byte, error) {
	err := llm.ValidateJSONAgainstSchema(schema, content)
	if err == nil {
		return content, nil
	}
	if !c.cfg.LenientOptional {
		c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(content))
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	cleaned, dropped, sErr := llm.SanitizeOptionalFields(content)
	if sErr != nil {
		c.logger.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
		return nil, fmt.Errorf("sanitize failed: %w", sErr)
	}
	if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
		c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(cleaned))
		return nil, fmt.Errorf("schema validation failed: %w", vErr)
	}
	c.logger.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
	return cleaned, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
