package entity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
)

// Nutrients maps a nutrient onto its amount. A missing key means unknown, not zero.
type Nutrients map[constants.Nutrient]float64

// Clone returns an independent copy.
func (n Nutrients) Clone() Nutrients {
	if n == nil {
		return nil
	}
	out := make(Nutrients, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// Has reports whether the nutrient is known.
func (n Nutrients) Has(k constants.Nutrient) bool {
	_, ok := n[k]
	return ok
}

// Scale returns every amount multiplied by f.
func (n Nutrients) Scale(f float64) Nutrients {
	out := make(Nutrients, len(n))
	for k, v := range n {
		out[k] = v * f
	}
	return out
}

// Add returns the element-wise sum; keys from either side are kept.
func (n Nutrients) Add(o Nutrients) Nutrients {
	out := n.Clone()
	if out == nil {
		out = Nutrients{}
	}
	for k, v := range o {
		out[k] += v
	}
	return out
}

// NutritionRecord is normalized per-product data for one scanned item.
type NutritionRecord struct {
	Name    string `json:"name,omitempty"`
	Brand   string `json:"brand,omitempty"`
	Barcode string `json:"barcode,omitempty"`

	Per100g    Nutrients `json:"per_100g,omitempty"`
	PerServing Nutrients `json:"per_serving,omitempty"`

	ServingSize  string  `json:"serving_size,omitempty"`
	ServingSizeG float64 `json:"serving_size_g,omitempty"`
	NetQuantity  string  `json:"net_quantity,omitempty"`

	Ingredients []string `json:"ingredients,omitempty"`
	Allergens   []string `json:"allergens,omitempty"`

	Confidence       float64 `json:"confidence"`
	ExtractionMethod string  `json:"extraction_method,omitempty"`
}

// Clone returns a deep copy so callers never share maps or slices.
func (r NutritionRecord) Clone() NutritionRecord {
	out := r
	out.Per100g = r.Per100g.Clone()
	out.PerServing = r.PerServing.Clone()
	if r.Ingredients != nil {
		out.Ingredients = append([]string(nil), r.Ingredients...)
	}
	if r.Allergens != nil {
		out.Allergens = append([]string(nil), r.Allergens...)
	}
	return out
}

// HasIdentity reports whether a name or brand is present.
func (r NutritionRecord) HasIdentity() bool {
	return strings.TrimSpace(r.Name) != "" || strings.TrimSpace(r.Brand) != ""
}

// Empty reports whether nothing at all was extracted.
func (r NutritionRecord) Empty() bool {
	return !r.HasIdentity() && r.Barcode == "" && len(r.Per100g) == 0 && len(r.PerServing) == 0 &&
		!r.HasQuantity() && len(r.Ingredients) == 0 && len(r.Allergens) == 0
}

// HasEnergy reports whether calories are known on either basis.
func (r NutritionRecord) HasEnergy() bool {
	return r.Per100g.Has(constants.Calories) || r.PerServing.Has(constants.Calories)
}

// HasQuantity reports whether a serving size or net quantity is present.
func (r NutritionRecord) HasQuantity() bool {
	return r.ServingSizeG > 0 || strings.TrimSpace(r.ServingSize) != "" || strings.TrimSpace(r.NetQuantity) != ""
}

// DisplayName returns the best human label for the product.
func (r NutritionRecord) DisplayName() string {
	name := strings.TrimSpace(r.Name)
	brand := strings.TrimSpace(r.Brand)
	switch {
	case name != "" && brand != "":
		return brand + " " + name
	case name != "":
		return name
	case brand != "":
		return brand
	case r.Barcode != "":
		return "product " + r.Barcode
	default:
		return "this product"
	}
}

var reGrams = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kg|g|gr|grams?|ml|l)\b`)

// PortionGrams resolves the serving size in grams (millilitres count as grams), or 0.
func (r NutritionRecord) PortionGrams() float64 {
	if r.ServingSizeG > 0 {
		return r.ServingSizeG
	}
	return ParseGrams(r.ServingSize)
}

// ParseGrams extracts a gram amount from text such as "30 g" or "0.25 l".
func ParseGrams(s string) float64 {
	m := reGrams.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "kg", "l":
		return v * 1000
	default:
		return v
	}
}

// ServingAmounts resolves one serving's nutrients: the per-serving map wins, then
// per-100g scaled by the portion, then per-100g as a 100 g portion.
func (r NutritionRecord) ServingAmounts() Nutrients {
	out := Nutrients{}
	grams := r.PortionGrams()
	for _, n := range constants.AllNutrients() {
		if v, ok := r.PerServing[n]; ok {
			out[n] = v
			continue
		}
		if v, ok := r.Per100g[n]; ok {
			if grams > 0 {
				out[n] = v * grams / 100
			} else {
				out[n] = v
			}
		}
	}
	return out
}

// ConsumedAmounts is the nutrient intake for the given number of servings.
func (r NutritionRecord) ConsumedAmounts(servings float64) Nutrients {
	return r.ServingAmounts().Scale(servings)
}
