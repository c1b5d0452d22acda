package nutrition

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// FoodEntry is one food line of the working meal.
type FoodEntry struct {
	Info     FoodInfo
	Quantity float64

	values  map[NutrientCode]*NutrientValue
	epsilon float64
}

// NewFoodEntry loads name from source and scales each tracked nutrient to
// quantity. Nutrients without a table row become Unknown/0.
func NewFoodEntry(ctx context.Context, source NutrientSource, name string, quantity float64,
	codes []NutrientCode, epsilon float64,
) (*FoodEntry, error) {
	info, err := source.GetFoodInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load food %q: %w", name, err)
	}

	f := &FoodEntry{
		Info:     info,
		Quantity: quantity,
		values:   make(map[NutrientCode]*NutrientValue, len(codes)),
		epsilon:  epsilon,
	}
	if err := f.AddTrackedNutrients(ctx, source, codes); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFoodEntryFromSnapshot rebuilds an entry from stored scaled values without
// going back to the per-100g table.
func NewFoodEntryFromSnapshot(info FoodInfo, quantity float64, values []NutrientValue, epsilon float64) *FoodEntry {
	f := &FoodEntry{
		Info:     info,
		Quantity: quantity,
		values:   make(map[NutrientCode]*NutrientValue, len(values)),
		epsilon:  epsilon,
	}
	for _, v := range values {
		nv := valueFromSnapshot(v.Code, v.Quantity, v.Qualifier, quantity)
		f.values[v.Code] = &nv
	}
	return f
}

// Name is the key of the entry within a meal.
func (f *FoodEntry) Name() string { return f.Info.Name }

// UpdateQuantity sets (or, with add, increases) the quantity and rescales every
// value from its baseline. It reports false and does nothing when the change
// is within epsilon.
func (f *FoodEntry) UpdateQuantity(quantity float64, add bool) bool {
	if add {
		quantity += f.Quantity
	}
	if math.Abs(quantity-f.Quantity) < f.epsilon {
		return false
	}
	f.Quantity = quantity
	for _, v := range f.values {
		v.Rescale(quantity)
	}
	return true
}

// AddTrackedNutrients fetches codes not yet tracked at the current quantity.
func (f *FoodEntry) AddTrackedNutrients(ctx context.Context, source NutrientSource, codes []NutrientCode) error {
	fetched := make(map[NutrientCode]*NutrientValue, len(codes))
	for _, code := range codes {
		if _, ok := f.values[code]; ok {
			continue
		}
		reading, err := source.GetNutrientValue(ctx, f.Info.Code, code)
		if err != nil {
			return fmt.Errorf("load nutrient %d of %q: %w", code, f.Info.Name, err)
		}
		v := ScaleFromBaseline(code, reading.Value, reading.Qualifier, f.Quantity)
		fetched[code] = &v
	}
	for code, v := range fetched {
		f.values[code] = v
	}
	return nil
}

// RemoveTrackedNutrients drops codes. Re-adding them later refetches.
func (f *FoodEntry) RemoveTrackedNutrients(codes []NutrientCode) {
	for _, code := range codes {
		delete(f.values, code)
	}
}

// AddMissingNutrients inserts Unknown/0 placeholders for untracked codes.
func (f *FoodEntry) AddMissingNutrients(codes []NutrientCode) {
	for _, code := range codes {
		if _, ok := f.values[code]; ok {
			continue
		}
		f.values[code] = &NutrientValue{Code: code, Qualifier: Unknown}
	}
}

// Value returns the tracked value for code.
func (f *FoodEntry) Value(code NutrientCode) (NutrientValue, bool) {
	v, ok := f.values[code]
	if !ok {
		return NutrientValue{}, false
	}
	return *v, true
}

// Codes returns the tracked codes in ascending order.
func (f *FoodEntry) Codes() []NutrientCode {
	codes := make([]NutrientCode, 0, len(f.values))
	for code := range f.values {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Values returns copies of the tracked values ordered by code.
func (f *FoodEntry) Values() []NutrientValue {
	out := make([]NutrientValue, 0, len(f.values))
	for _, code := range f.Codes() {
		out = append(out, *f.values[code])
	}
	return out
}

// Clone returns a deep copy that can be mutated independently.
func (f *FoodEntry) Clone() *FoodEntry {
	c := &FoodEntry{
		Info:     f.Info,
		Quantity: f.Quantity,
		values:   make(map[NutrientCode]*NutrientValue, len(f.values)),
		epsilon:  f.epsilon,
	}
	for code, v := range f.values {
		nv := *v
		c.values[code] = &nv
	}
	return c
}

// Format renders every tracked value.
func (f *FoodEntry) Format(precision int) (map[NutrientCode]string, error) {
	out := make(map[NutrientCode]string, len(f.values))
	for code, v := range f.values {
		s, err := v.Format(precision)
		if err != nil {
			return nil, err
		}
		out[code] = s
	}
	return out, nil
}
