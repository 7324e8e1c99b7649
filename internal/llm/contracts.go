package llm

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// LabelFields is the normalized shape we want from the model for a label.
type LabelFields struct {
	ProductName  string             `json:"product_name,omitempty"`
	Brand        string             `json:"brand,omitempty"`
	Barcode      string             `json:"barcode,omitempty"`
	ServingSize  string             `json:"serving_size,omitempty"`
	ServingSizeG float64            `json:"serving_size_g,omitempty"`
	NetQuantity  string             `json:"net_quantity,omitempty"`
	Per100g      map[string]float64 `json:"per_100g,omitempty"`
	PerServing   map[string]float64 `json:"per_serving,omitempty"`
	Ingredients  []string           `json:"ingredients,omitempty"`
	Allergens    []string           `json:"allergens,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"` // optional (0..1)
}

// Record converts the fields into a NutritionRecord tagged with the given method.
func (f LabelFields) Record(method string) entity.NutritionRecord {
	rec := entity.NutritionRecord{
		Name:             strings.TrimSpace(f.ProductName),
		Brand:            strings.TrimSpace(f.Brand),
		Barcode:          strings.TrimSpace(f.Barcode),
		ServingSize:      strings.TrimSpace(f.ServingSize),
		ServingSizeG:     f.ServingSizeG,
		NetQuantity:      strings.TrimSpace(f.NetQuantity),
		Per100g:          toNutrients(f.Per100g),
		PerServing:       toNutrients(f.PerServing),
		Ingredients:      f.Ingredients,
		Allergens:        f.Allergens,
		Confidence:       f.Confidence,
		ExtractionMethod: method,
	}
	if rec.ServingSizeG <= 0 {
		rec.ServingSizeG = entity.ParseGrams(rec.ServingSize)
	}
	return rec
}

func toNutrients(m map[string]float64) entity.Nutrients {
	if len(m) == 0 {
		return nil
	}
	out := entity.Nutrients{}
	for k, v := range m {
		if n, ok := constants.CanonicalizeNutrient(k); ok {
			out[n] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// QualityJudgment is the model's intrinsic-quality rating for a product.
type QualityJudgment struct {
	BaseScore      float64  `json:"base_score"`
	ReasoningSteps []string `json:"reasoning_steps"`
	Confidence     float64  `json:"confidence"`
}

// LabelStructurer turns raw label text into a partial nutrition record.
type LabelStructurer interface {
	Extract(ctx context.Context, rawText string) (rec entity.NutritionRecord, confidence float64, missing []string, err error)
}

// QualityJudge rates the intrinsic quality of a product for a user.
type QualityJudge interface {
	JudgeQuality(ctx context.Context, nutrition entity.NutritionRecord, profile entity.UserProfile) (baseScore float64, steps []string, confidence float64, err error)
}

// FieldsFromRecord is the inverse of Record, used to validate findings
// produced outside the model against the same schema.
func FieldsFromRecord(rec entity.NutritionRecord) LabelFields {
	return LabelFields{
		ProductName:  rec.Name,
		Brand:        rec.Brand,
		Barcode:      rec.Barcode,
		ServingSize:  rec.ServingSize,
		ServingSizeG: rec.ServingSizeG,
		NetQuantity:  rec.NetQuantity,
		Per100g:      fromNutrients(rec.Per100g),
		PerServing:   fromNutrients(rec.PerServing),
		Ingredients:  rec.Ingredients,
		Allergens:    rec.Allergens,
		Confidence:   rec.Confidence,
	}
}

func fromNutrients(n entity.Nutrients) map[string]float64 {
	if len(n) == 0 {
		return nil
	}
	out := make(map[string]float64, len(n))
	for k, v := range n {
		out[string(k)] = v
	}
	return out
}
