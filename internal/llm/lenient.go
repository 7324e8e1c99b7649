package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	reBarcode = regexp.MustCompile(`^\d{8,14}$`)
	reAmount  = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	optLists  = []string{"ingredients", "allergens"}
	optNutMap = []string{"per_100g", "per_serving"}
)

// SanitizeOptionalFields removes or normalizes optional fields that don't meet our stricter schema,
// so the overall document can still validate. Every label field is optional.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	// barcode: digits only, else drop
	if v, ok := m["barcode"]; ok {
		s, _ := v.(string)
		s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
		if reBarcode.MatchString(s) {
			m["barcode"] = s
		} else {
			delete(m, "barcode")
			dropped = append(dropped, "barcode")
		}
	}

	if v, ok := m["serving_size_g"]; ok {
		if f, ok := coerceAmount(v); ok && f > 0 {
			m["serving_size_g"] = f
		} else {
			delete(m, "serving_size_g")
			dropped = append(dropped, "serving_size_g")
		}
	}

	if v, ok := m["confidence"]; ok {
		f, ok := coerceAmount(v)
		switch {
		case !ok:
			delete(m, "confidence")
			dropped = append(dropped, "confidence")
		case f > 1 && f <= 100:
			// percent
			m["confidence"] = f / 100
		case f < 0 || f > 100:
			delete(m, "confidence")
			dropped = append(dropped, "confidence")
		default:
			m["confidence"] = f
		}
	}

	for _, k := range optNutMap {
		v, ok := m[k]
		if !ok {
			continue
		}
		nm, ok := v.(map[string]any)
		if !ok {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		for nk, nv := range nm {
			f, ok := coerceAmount(nv)
			if !ok || f < 0 {
				delete(nm, nk)
				dropped = append(dropped, k+"."+nk)
				continue
			}
			nm[nk] = f
		}
		if len(nm) == 0 {
			delete(m, k)
		}
	}

	for _, k := range optLists {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			// comma-separated text instead of an array
			m[k] = splitNonEmpty(t)
		case []any:
			var out []string
			for _, item := range t {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			m[k] = out
		default:
			delete(m, k)
			dropped = append(dropped, k)
		}
		if l, ok := m[k].([]string); ok && len(l) == 0 {
			delete(m, k)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

// coerceAmount accepts numbers and strings like "12", "12.5 g" or "3,2".
func coerceAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := reAmount.FindString(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
