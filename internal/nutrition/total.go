package nutrition

import (
	"sort"
)

// Total is the reduced qualifier and summed quantity of one nutrient.
type Total struct {
	Qualifier Qualifier `json:"qualifier"`
	Quantity  float64   `json:"quantity"`
}

// Totals is the read side of an aggregator used by the derived metrics.
type Totals interface {
	Total(code NutrientCode) (Total, bool)
	Len() int
}

// Labels of the total line.
const (
	TotalLabel       = "Total"
	TotalPerDayLabel = "Total per day"
)

// FormattedTotal is the total line ready for display.
type FormattedTotal struct {
	Label    string                  `json:"label"`
	Quantity float64                 `json:"quantity"`
	Values   map[NutrientCode]string `json:"values"`
}

// MealAggregator sums the entries of a meal. It is always rebuilt from the
// entries and never edited directly.
type MealAggregator struct {
	reducer   *Reducer
	precision int

	quantity float64
	totals   map[NutrientCode]Total
}

// NewMealAggregator returns an empty aggregator.
func NewMealAggregator(reducer *Reducer, precision int) *MealAggregator {
	return &MealAggregator{
		reducer:   reducer,
		precision: precision,
		totals:    map[NutrientCode]Total{},
	}
}

// Recompute rebuilds the totals from entries. Codes no entry tracks are
// dropped. On error the previous totals are kept.
func (a *MealAggregator) Recompute(entries []*FoodEntry) error {
	quantity := 0.0
	sums := map[NutrientCode]float64{}
	qualifiers := map[NutrientCode][]Qualifier{}

	for _, e := range entries {
		quantity += e.Quantity
		for code, v := range e.values {
			sums[code] += v.Quantity
			qualifiers[code] = append(qualifiers[code], v.Qualifier)
		}
	}

	totals := make(map[NutrientCode]Total, len(sums))
	for code, sum := range sums {
		q, err := a.reducer.Reduce(qualifiers[code], sum)
		if err != nil {
			return err
		}
		totals[code] = Total{Qualifier: q, Quantity: sum}
	}

	a.quantity = quantity
	a.totals = totals
	return nil
}

// Quantity is the summed food quantity in grams.
func (a *MealAggregator) Quantity() float64 { return a.quantity }

// Total returns the aggregate for code.
func (a *MealAggregator) Total(code NutrientCode) (Total, bool) {
	t, ok := a.totals[code]
	return t, ok
}

// Len is the number of aggregated nutrients.
func (a *MealAggregator) Len() int { return len(a.totals) }

// Codes returns the aggregated codes in ascending order.
func (a *MealAggregator) Codes() []NutrientCode {
	codes := make([]NutrientCode, 0, len(a.totals))
	for code := range a.totals {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Totals returns a copy of every aggregate.
func (a *MealAggregator) Totals() map[NutrientCode]Total {
	out := make(map[NutrientCode]Total, len(a.totals))
	for code, t := range a.totals {
		out[code] = t
	}
	return out
}

// PerDay returns a copy with the quantity and every sum divided by nbDays.
func (a *MealAggregator) PerDay(nbDays int) (*MealAggregator, error) {
	if nbDays < 1 {
		return nil, InternalErrorf("per day", "%w: %d", ErrInvalidDays, nbDays)
	}
	return a.scaled(1 / float64(nbDays)), nil
}

// FormattedValue renders the total line divided by nbDays.
func (a *MealAggregator) FormattedValue(nbDays int) (FormattedTotal, error) {
	perDay, err := a.PerDay(nbDays)
	if err != nil {
		return FormattedTotal{}, err
	}

	label := TotalLabel
	if nbDays > 1 {
		label = TotalPerDayLabel
	}
	values := make(map[NutrientCode]string, len(perDay.totals))
	for code, t := range perDay.totals {
		s, err := FormatQuantity(t.Qualifier, t.Quantity, a.precision)
		if err != nil {
			return FormattedTotal{}, err
		}
		values[code] = s
	}
	return FormattedTotal{Label: label, Quantity: perDay.quantity, Values: values}, nil
}

// NormalizedTo100g returns a copy rescaled so the total quantity is exactly
// 100g. Used to freeze the profile of a new group; the receiver is untouched.
func (a *MealAggregator) NormalizedTo100g() (*MealAggregator, error) {
	if a.quantity <= 0 {
		return nil, InternalErrorf("normalize", "%w", ErrZeroQuantity)
	}
	n := a.scaled(100 / a.quantity)
	n.quantity = 100
	return n, nil
}

func (a *MealAggregator) scaled(ratio float64) *MealAggregator {
	out := &MealAggregator{
		reducer:   a.reducer,
		precision: a.precision,
		quantity:  a.quantity * ratio,
		totals:    make(map[NutrientCode]Total, len(a.totals)),
	}
	for code, t := range a.totals {
		out.totals[code] = Total{Qualifier: t.Qualifier, Quantity: t.Quantity * ratio}
	}
	return out
}
