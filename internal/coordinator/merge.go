package coordinator

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// Fill copies into dst only the slots dst leaves empty. Allergens are unioned
// so a known allergen is never dropped. It reports whether anything changed.
func Fill(dst *entity.NutritionRecord, src entity.NutritionRecord) bool {
	changed := false
	setStr := func(d *string, s string) {
		if strings.TrimSpace(*d) == "" && strings.TrimSpace(s) != "" {
			*d = s
			changed = true
		}
	}
	setStr(&dst.Name, src.Name)
	setStr(&dst.Brand, src.Brand)
	setStr(&dst.Barcode, src.Barcode)
	setStr(&dst.ServingSize, src.ServingSize)
	setStr(&dst.NetQuantity, src.NetQuantity)
	if dst.ServingSizeG <= 0 && src.ServingSizeG > 0 {
		dst.ServingSizeG = src.ServingSizeG
		changed = true
	}
	if fillNutrients(&dst.Per100g, src.Per100g) {
		changed = true
	}
	if fillNutrients(&dst.PerServing, src.PerServing) {
		changed = true
	}
	if len(dst.Ingredients) == 0 && len(src.Ingredients) > 0 {
		dst.Ingredients = append([]string(nil), src.Ingredients...)
		changed = true
	}
	if union, added := unionFold(dst.Allergens, src.Allergens); added {
		dst.Allergens = union
		changed = true
	}
	return changed
}

func fillNutrients(dst *entity.Nutrients, src entity.Nutrients) bool {
	changed := false
	for k, v := range src {
		if dst.Has(k) {
			continue
		}
		if *dst == nil {
			*dst = entity.Nutrients{}
		}
		(*dst)[k] = v
		changed = true
	}
	return changed
}

func unionFold(a, b []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		seen[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		out = append(out, s)
	}
	added := false
	for _, s := range b {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, strings.TrimSpace(s))
		added = true
	}
	return out, added
}

func appendCitations(dst, src []entity.CitationSource) []entity.CitationSource {
	for _, c := range src {
		dup := false
		for _, d := range dst {
			if (c.URL != "" && c.URL == d.URL) || (c.URL == "" && d.URL == "" && c.Title == d.Title) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, c)
		}
	}
	return dst
}

func productCitation(rec entity.NutritionRecord) entity.CitationSource {
	url := ""
	if rec.Barcode != "" {
		url = "https://world.openfoodfacts.org/product/" + rec.Barcode
	}
	snippet := rec.DisplayName()
	if kcal, ok := rec.Per100g[constants.Calories]; ok {
		snippet = fmt.Sprintf("%s: %.0f kcal per 100 g", snippet, kcal)
	}
	return entity.CitationSource{
		SourceType:     constants.SourceOpenFoodFacts,
		Title:          "Open Food Facts: " + rec.DisplayName(),
		URL:            url,
		AuthorityScore: constants.AuthorityScore(constants.SourceOpenFoodFacts, url),
		Snippet:        snippet,
	}
}

func labelCitation(rec entity.NutritionRecord) entity.CitationSource {
	return entity.CitationSource{
		SourceType:     constants.SourceLabelOCR,
		Title:          "Package label",
		AuthorityScore: constants.AuthorityScore(constants.SourceLabelOCR, ""),
		Snippet:        "Nutrition panel scanned from " + rec.DisplayName(),
	}
}
