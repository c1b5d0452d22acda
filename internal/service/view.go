package service

import (
	"context"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// FoodLine is one row of the meal table.
type FoodLine struct {
	Name     string                            `json:"name"`
	Code     int                               `json:"code"`
	Family   string                            `json:"family"`
	Source   string                            `json:"source"`
	Quantity float64                           `json:"quantity"`
	Values   map[nutrition.NutrientCode]string `json:"values"`
}

// MealView is everything a presentation layer needs to draw the meal.
type MealView struct {
	Nutrients []nutrition.NutrientDefinition `json:"nutrients"`
	Foods     []FoodLine                     `json:"foods"`
	Total     nutrition.FormattedTotal       `json:"total"`
	Energy    nutrition.EnergyBreakdown      `json:"energy"`
	Water     nutrition.WaterBalance         `json:"water"`
	Days      int                            `json:"days"`
}

// View renders the meal. Total, energy and water are per day.
func (s *MealService) View(ctx context.Context) (MealView, error) {
	const op = "view"
	catalog, err := s.store.GetNutrientCatalog(ctx)
	if err != nil {
		return MealView{}, classify(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.view(catalog)
	if err != nil {
		err = classify(op, err)
		if nutrition.IsInternalError(err) {
			logInternal(err)
		}
		return MealView{}, err
	}
	return v, nil
}

func (s *MealService) view(catalog []nutrition.NutrientDefinition) (MealView, error) {
	tracked := map[nutrition.NutrientCode]bool{}
	for _, c := range s.tracked {
		tracked[c] = true
	}
	v := MealView{Days: s.nbDays}
	for _, def := range catalog {
		if tracked[def.Code] {
			v.Nutrients = append(v.Nutrients, def)
		}
	}

	for _, e := range s.entries {
		values, err := e.Format(s.engine.Precision)
		if err != nil {
			return MealView{}, err
		}
		v.Foods = append(v.Foods, FoodLine{
			Name:     e.Name(),
			Code:     e.Info.Code,
			Family:   e.Info.FamilyName,
			Source:   e.Info.Source,
			Quantity: e.Quantity,
			Values:   values,
		})
	}

	total, err := s.total.FormattedValue(s.nbDays)
	if err != nil {
		return MealView{}, err
	}
	v.Total = total

	perDay, err := s.total.PerDay(s.nbDays)
	if err != nil {
		return MealView{}, err
	}
	energyCode := nutrition.NutrientCode(s.engine.EnergyCode)
	v.Energy, err = nutrition.ComputeEnergyBreakdown(perDay, s.supply, energyCode, s.engine.Precision)
	if err != nil {
		return MealView{}, err
	}
	v.Water = nutrition.ComputeWaterBalance(perDay, s.engine.WaterPerKcal, energyCode,
		nutrition.NutrientCode(s.engine.WaterCode), s.engine.Precision)
	return v, nil
}
