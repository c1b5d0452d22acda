package nutrition

import (
	"strconv"
)

// NutrientCode identifies a nutrient column of the composition table.
type NutrientCode int

// NutrientDefinition describes one nutrient of the catalog.
type NutrientDefinition struct {
	Code      NutrientCode `json:"code"`
	Name      string       `json:"name"`
	ShortName string       `json:"short_name"`
	Unit      string       `json:"unit"`
}

// Display markers for qualified quantities.
const (
	UnknownMarker    = "-"
	TraceMarker      = "Traces"
	BelowLimitPrefix = "< "
)

// NutrientValue is the amount of one nutrient in one food at the food's
// current quantity. It remembers the per-100g baseline it was scaled from.
type NutrientValue struct {
	Code      NutrientCode `json:"code"`
	Qualifier Qualifier    `json:"qualifier"`
	Quantity  float64      `json:"quantity"`

	per100g float64
}

// ScaleFromBaseline builds the value for grams of a food whose table value is
// per100g.
func ScaleFromBaseline(code NutrientCode, per100g float64, qualifier Qualifier, grams float64) NutrientValue {
	v := NutrientValue{Code: code, Qualifier: qualifier, per100g: per100g}
	v.Rescale(grams)
	return v
}

// valueFromSnapshot rebuilds a value from a stored scaled quantity. The
// baseline is derived back from grams so later rescales stay path independent.
func valueFromSnapshot(code NutrientCode, quantity float64, qualifier Qualifier, grams float64) NutrientValue {
	per100g := 0.0
	if grams > 0 && qualifier != Unknown {
		per100g = quantity * 100 / grams
	}
	v := NutrientValue{Code: code, Qualifier: qualifier, Quantity: quantity, per100g: per100g}
	if qualifier == Unknown {
		v.Quantity = 0
	}
	return v
}

// Per100g returns the baseline the value is scaled from.
func (v NutrientValue) Per100g() float64 { return v.per100g }

// Rescale recomputes the quantity for grams from the per-100g baseline.
func (v *NutrientValue) Rescale(grams float64) {
	if v.Qualifier == Unknown {
		v.Quantity = 0
		return
	}
	v.Quantity = v.per100g * grams / 100
}

// Format renders the value for display.
func (v NutrientValue) Format(precision int) (string, error) {
	return FormatQuantity(v.Qualifier, v.Quantity, precision)
}

// FormatQuantity renders a quantity according to its qualifier.
func FormatQuantity(q Qualifier, quantity float64, precision int) (string, error) {
	switch q {
	case Exact:
		return strconv.FormatFloat(quantity, 'f', precision, 64), nil
	case Unknown:
		return UnknownMarker, nil
	case Trace:
		return TraceMarker, nil
	case BelowLimit:
		return BelowLimitPrefix + strconv.FormatFloat(quantity, 'f', precision, 64), nil
	default:
		return "", InternalErrorf("format", "%w: %d", ErrUnknownQualifier, int(q))
	}
}
