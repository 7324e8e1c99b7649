// Package research holds the research collaborators that fill gaps a label
// and the product database cannot: a remote agent reached over gRPC and a
// SearXNG-backed web researcher.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/llm"
)

// Data types a research call can ask for.
const (
	DataNutritionFacts  = "nutrition_facts"
	DataServingSize     = "serving_size"
	DataProductIdentity = "product_identity"
)

// Hints is what the caller already knows about the product.
type Hints struct {
	Name    string   `json:"name,omitempty"`
	Brand   string   `json:"brand,omitempty"`
	Barcode string   `json:"barcode,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Query renders the hints as a search phrase.
func (h Hints) Query() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{h.Brand, h.Name} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && h.Barcode != "" {
		parts = append(parts, h.Barcode)
	}
	return strings.Join(parts, " ")
}

// Researcher is bounded by its own internal budget; callers impose only an
// outer deadline. On a deadline it may return partial findings together with
// the context error.
type Researcher interface {
	Research(ctx context.Context, task string, hints Hints, dataType string) (findings entity.NutritionRecord, citations []entity.CitationSource, confidence float64, err error)
}

// DataTypeFor picks what to ask for given the missing critical slots.
func DataTypeFor(missing []string) string {
	for _, m := range missing {
		if m == entity.SlotIdentity {
			return DataProductIdentity
		}
	}
	for _, m := range missing {
		if m == entity.SlotQuantity {
			return DataServingSize
		}
	}
	return DataNutritionFacts
}

// TaskFor phrases the research task for the agent.
func TaskFor(hints Hints, dataType string) string {
	subject := hints.Query()
	if subject == "" {
		subject = "the scanned product"
	}
	switch dataType {
	case DataProductIdentity:
		return fmt.Sprintf("Identify the product %s and its package size", subject)
	case DataServingSize:
		return fmt.Sprintf("Find the serving size and net quantity of %s", subject)
	default:
		return fmt.Sprintf("Find nutrition facts for %s", subject)
	}
}

// ValidateFindings checks findings against the partial nutrition schema.
func ValidateFindings(rec entity.NutritionRecord) error {
	raw, err := json.Marshal(llm.FieldsFromRecord(rec))
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	return llm.ValidateJSONAgainstSchema(llm.BuildFindingsJSONSchema(), raw)
}

// HasFindings reports whether a research record carries anything usable.
func HasFindings(rec entity.NutritionRecord) bool {
	return rec.HasIdentity() || len(rec.Per100g) > 0 || len(rec.PerServing) > 0 || rec.HasQuantity() ||
		len(rec.Ingredients) > 0 || len(rec.Allergens) > 0
}

func citation(t constants.SourceType, title, url, snippet string) entity.CitationSource {
	return entity.CitationSource{
		SourceType:     t,
		Title:          strings.TrimSpace(title),
		URL:            strings.TrimSpace(url),
		AuthorityScore: constants.AuthorityScore(t, url),
		Snippet:        truncate(strings.TrimSpace(snippet), constants.MaxSnippetLen),
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
