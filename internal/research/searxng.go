package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/labeltext"
)

const (
	webBaseConfidence = 0.4
	webMaxConfidence  = 0.7
)

type SearXNGConfig struct {
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// SearXNG researches products through a SearXNG metasearch instance and reads
// nutrient figures out of the result snippets.
type SearXNG struct {
	cfg    SearXNGConfig
	http   *http.Client
	logger *slog.Logger
}

func NewSearXNG(cfg SearXNGConfig, logger *slog.Logger) *SearXNG {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearXNG{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (s *SearXNG) Research(ctx context.Context, task string, hints Hints, dataType string) (entity.NutritionRecord, []entity.CitationSource, float64, error) {
	query := hints.Query()
	if query == "" {
		query = task
	}
	if strings.TrimSpace(query) == "" {
		return entity.NutritionRecord{}, nil, 0, fmt.Errorf("searxng: nothing to search for")
	}
	switch dataType {
	case DataServingSize:
		query += " serving size"
	default:
		query += " nutrition facts"
	}

	results, err := s.search(ctx, query)
	if err != nil {
		return entity.NutritionRecord{}, nil, 0, err
	}

	rec := entity.NutritionRecord{
		Name:             hints.Name,
		Brand:            hints.Brand,
		ExtractionMethod: constants.MethodResearch,
	}
	var (
		citations   []entity.CitationSource
		contributed bool
	)
	for i, r := range results {
		if i == s.cfg.MaxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			// out of time: keep what was read so far
			conf := webConfidence(rec, contributed)
			rec.Confidence = conf
			return rec, citations, conf, err
		}
		parsed := labeltext.Parse(r.Title + "\n" + r.Content).Record
		used := fillFromSnippet(&rec, parsed)
		contributed = contributed || used
		if used || i < 3 {
			citations = append(citations, citation(constants.SourceWeb, r.Title, r.URL, r.Content))
		}
	}
	if rec.Name == "" && len(results) > 0 && dataType == DataProductIdentity {
		rec.Name = strings.TrimSpace(results[0].Title)
		contributed = contributed || rec.Name != ""
	}

	if err := ValidateFindings(rec); err != nil {
		s.logger.Warn("research.searxng.invalid_findings", "error", err)
		return entity.NutritionRecord{}, citations, 0, err
	}
	conf := webConfidence(rec, contributed)
	rec.Confidence = conf
	s.logger.Info("research.searxng.ok", "query", query, "results", len(results), "citations", len(citations), "confidence", conf)
	return rec, citations, conf, nil
}

func (s *SearXNG) search(ctx context.Context, query string) ([]searxResult, error) {
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("searxng: base url not configured")
	}
	reqID := uuid.New().String()
	start := time.Now()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("research.searxng.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			s.logger.Warn("research.searxng.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("searxng status %d", resp.StatusCode)
	}
	var body struct {
		Results []searxResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}
	s.logger.Debug("research.searxng.response", "req_id", reqID, "results", len(body.Results), "elapsed_ms", time.Since(start).Milliseconds())
	return body.Results, nil
}

// fillFromSnippet copies fields the record lacks. It reports whether the
// snippet contributed anything.
func fillFromSnippet(rec *entity.NutritionRecord, parsed entity.NutritionRecord) bool {
	used := false
	fill := func(dst *entity.Nutrients, src entity.Nutrients) {
		for n, v := range src {
			if *dst == nil {
				*dst = entity.Nutrients{}
			}
			if !(*dst).Has(n) {
				(*dst)[n] = v
				used = true
			}
		}
	}
	fill(&rec.Per100g, parsed.Per100g)
	fill(&rec.PerServing, parsed.PerServing)
	if rec.ServingSize == "" && parsed.ServingSize != "" {
		rec.ServingSize, rec.ServingSizeG = parsed.ServingSize, parsed.ServingSizeG
		used = true
	}
	if rec.NetQuantity == "" && parsed.NetQuantity != "" {
		rec.NetQuantity = parsed.NetQuantity
		used = true
	}
	if len(rec.Allergens) == 0 && len(parsed.Allergens) > 0 {
		rec.Allergens = parsed.Allergens
		used = true
	}
	return used
}

func webConfidence(rec entity.NutritionRecord, contributed bool) float64 {
	if !contributed {
		return 0
	}
	c := webBaseConfidence + 0.04*float64(len(rec.Per100g)+len(rec.PerServing))
	if rec.HasQuantity() {
		c += 0.05
	}
	if c > webMaxConfidence {
		c = webMaxConfidence
	}
	return c
}
