// Package productdb looks products up in an OpenFoodFacts-compatible database.
package productdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

const (
	foundConfidence = 0.9
	maxIngredients  = 20
	kjPerKcal       = 4.184
)

type Config struct {
	BaseURL   string        // default https://world.openfoodfacts.org
	Timeout   time.Duration // http client timeout
	UserAgent string
}

// Client talks to the OpenFoodFacts v2 product API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://world.openfoodfacts.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Bytelense/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// product mirrors the subset of the OpenFoodFacts product document we read.
type product struct {
	ProductName     string         `json:"product_name"`
	Brands          string         `json:"brands"`
	Code            string         `json:"code"`
	ServingSize     string         `json:"serving_size"`
	ServingQuantity any            `json:"serving_quantity"`
	Quantity        string         `json:"quantity"`
	IngredientsText string         `json:"ingredients_text"`
	AllergensTags   []string       `json:"allergens_tags"`
	Nutriments      map[string]any `json:"nutriments"`
}

// LookupByBarcode returns the product for a barcode. found is false when the
// database has no such product; err is reserved for transport failures.
func (c *Client) LookupByBarcode(ctx context.Context, barcode string) (entity.NutritionRecord, bool, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return entity.NutritionRecord{}, false, nil
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v2/product/" + url.PathEscape(code) + ".json"

	var body struct {
		Status  int     `json:"status"`
		Product product `json:"product"`
	}
	status, err := c.getJSON(ctx, endpoint, &body)
	if err != nil {
		return entity.NutritionRecord{}, false, err
	}
	if status == http.StatusNotFound || body.Status != 1 {
		c.logger.Info("productdb.lookup.not_found", "barcode", code)
		return entity.NutritionRecord{}, false, nil
	}
	if body.Product.Code == "" {
		body.Product.Code = code
	}
	rec := toRecord(body.Product)
	c.logger.Info("productdb.lookup.ok", "barcode", code, "product", rec.DisplayName(), "per_100g", len(rec.Per100g))
	return rec, true, nil
}

// SearchByName returns the best match for a product name.
func (c *Client) SearchByName(ctx context.Context, name string) (entity.NutritionRecord, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.NutritionRecord{}, false, nil
	}
	q := url.Values{}
	q.Set("search_terms", name)
	q.Set("search_simple", "1")
	q.Set("json", "1")
	q.Set("page_size", "1")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/cgi/search.pl?" + q.Encode()

	var body struct {
		Count    int       `json:"count"`
		Products []product `json:"products"`
	}
	if _, err := c.getJSON(ctx, endpoint, &body); err != nil {
		return entity.NutritionRecord{}, false, err
	}
	if len(body.Products) == 0 {
		c.logger.Info("productdb.search.not_found", "name", name)
		return entity.NutritionRecord{}, false, nil
	}
	rec := toRecord(body.Products[0])
	c.logger.Info("productdb.search.ok", "name", name, "product", rec.DisplayName())
	return rec, true, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("productdb.http.request", "req_id", reqID, "url", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("productdb.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("productdb.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	c.logger.Debug("productdb.http.response", "req_id", reqID, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("openfoodfacts status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode openfoodfacts response: %w", err)
	}
	return resp.StatusCode, nil
}

func toRecord(p product) entity.NutritionRecord {
	rec := entity.NutritionRecord{
		Name:             strings.TrimSpace(p.ProductName),
		Brand:            firstBrand(p.Brands),
		Barcode:          strings.TrimSpace(p.Code),
		ServingSize:      strings.TrimSpace(p.ServingSize),
		NetQuantity:      strings.TrimSpace(p.Quantity),
		Per100g:          nutriments(p.Nutriments, "_100g"),
		PerServing:       nutriments(p.Nutriments, "_serving"),
		Ingredients:      splitIngredients(p.IngredientsText),
		Allergens:        allergenNames(p.AllergensTags),
		Confidence:       foundConfidence,
		ExtractionMethod: constants.MethodOpenFoodFacts,
	}
	rec.ServingSizeG = number(p.ServingQuantity)
	if rec.ServingSizeG <= 0 {
		rec.ServingSizeG = entity.ParseGrams(rec.ServingSize)
	}
	return rec
}

var nutrimentKeys = map[constants.Nutrient]string{
	constants.Protein: "proteins",
	constants.Carbs:   "carbohydrates",
	constants.Fat:     "fat",
	constants.Sugar:   "sugars",
	constants.Fiber:   "fiber",
}

func nutriments(m map[string]any, suffix string) entity.Nutrients {
	out := entity.Nutrients{}
	if v, ok := lookup(m, "energy-kcal"+suffix); ok {
		out[constants.Calories] = v
	} else if v, ok := lookup(m, "energy"+suffix); ok {
		// energy is reported in kJ
		out[constants.Calories] = v / kjPerKcal
	}
	for n, key := range nutrimentKeys {
		if v, ok := lookup(m, key+suffix); ok {
			out[n] = v
		}
	}
	if v, ok := lookup(m, "sodium"+suffix); ok {
		// grams -> mg
		out[constants.Sodium] = v * 1000
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func lookup(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := parseNumber(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

func number(v any) float64 {
	f, _ := parseNumber(v)
	return f
}

// parseNumber accepts JSON numbers and numeric strings; OFF emits both.
func parseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func firstBrand(brands string) string {
	b, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(b)
}

func splitIngredients(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		p := strings.Trim(strings.TrimSpace(part), "._*")
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == maxIngredients {
			break
		}
	}
	return out
}

// allergenNames turns tags like "en:milk" into "Milk".
func allergenNames(tags []string) []string {
	var out []string
	for _, tag := range tags {
		_, name, found := strings.Cut(tag, ":")
		if !found {
			name = tag
		}
		name = strings.TrimSpace(strings.ReplaceAll(name, "-", " "))
		if name == "" {
			continue
		}
		out = append(out, strings.ToUpper(name[:1])+name[1:])
	}
	return out
}
