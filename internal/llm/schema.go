package llm

import "github.com/joseph-ayodele/bytelense/constants"

// BuildLabelJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it locally to validate.
func BuildLabelJSONSchema() map[string]any {
	props := map[string]any{
		"product_name":   map[string]any{"type": "string", "minLength": 1},
		"brand":          map[string]any{"type": "string"},
		"barcode":        map[string]any{"type": "string", "pattern": `^\d{8,14}$`},
		"serving_size":   map[string]any{"type": "string"},
		"serving_size_g": map[string]any{"type": "number", "exclusiveMinimum": 0},
		"net_quantity":   map[string]any{"type": "string"},
		"per_100g":       nutrientsProp(),
		"per_serving":    nutrientsProp(),
		"ingredients":    stringListProp(),
		"allergens":      stringListProp(),
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// BuildFindingsJSONSchema constrains research findings: a partial record where
// every field is optional but nutrient amounts must still be non-negative numbers.
func BuildFindingsJSONSchema() map[string]any {
	s := BuildLabelJSONSchema()
	s["additionalProperties"] = true
	return s
}

// BuildQualityJSONSchema constrains the intrinsic-quality judgment.
func BuildQualityJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"base_score":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 10.0},
			"reasoning_steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": 8},
			"confidence":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"base_score", "reasoning_steps", "confidence"},
	}
}

func nutrientsProp() map[string]any {
	props := map[string]any{}
	for _, n := range constants.AllNutrients() {
		props[string(n)] = map[string]any{"type": "number", "minimum": 0.0}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func stringListProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
}
