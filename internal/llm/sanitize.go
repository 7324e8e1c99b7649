package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (name -> product_name, nutriments -> per_100g)
// - Canonicalizes nutrient keys (sugars -> sugar, fibre -> fiber)
// - Drops null/empty strings
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("name", "product_name")
	renamed("product", "product_name")
	renamed("nutriments", "per_100g")
	renamed("per100g", "per_100g")
	renamed("nutrition_per_100g", "per_100g")
	renamed("nutrition_per_serving", "per_serving")
	renamed("perServing", "per_serving")
	renamed("ean", "barcode")
	renamed("upc", "barcode")

	// 2) canonical nutrient keys; unknown nutrients are dropped
	for _, k := range []string{"per_100g", "per_serving"} {
		nm, ok := m[k].(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]any, len(nm))
		fromSalt := map[string]bool{}
		for nk, nv := range nm {
			n, ok := constants.CanonicalizeNutrient(nk)
			if !ok {
				dropped = append(dropped, k+"."+nk+"(unknown)")
				continue
			}
			salt := isSaltKey(nk)
			if f, isNum := nv.(float64); isNum && salt {
				// grams of salt -> mg of sodium
				nv = f * 400
			}
			// an explicit sodium value beats one derived from salt
			if _, exists := out[string(n)]; exists && (salt || !fromSalt[string(n)]) {
				continue
			}
			out[string(n)] = nv
			fromSalt[string(n)] = salt
		}
		m[k] = out
	}

	// 3) drop nulls and trim strings
	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "unknown") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 4) remove unknown keys (everything not in the schema set below)
	allowed := map[string]struct{}{
		"product_name": {}, "brand": {}, "barcode": {}, "serving_size": {}, "serving_size_g": {},
		"net_quantity": {}, "per_100g": {}, "per_serving": {}, "ingredients": {}, "allergens": {},
		"confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// isSaltKey matches salt keys with or without an OFF-style basis suffix.
func isSaltKey(k string) bool {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.TrimSuffix(k, "_100g")
	k = strings.TrimSuffix(k, "_serving")
	return k == "salt"
}
