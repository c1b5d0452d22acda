package store

import (
	"context"
	"fmt"
	"log"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

const ciqualURL = "https://ciqual.anses.fr"

// SampleNutrients is a CIQUAL subset covering energy, water, macros and sodium.
var SampleNutrients = []nutrition.NutrientDefinition{
	{Code: 328, Name: "Energy, N x Jones' factor, with fibres", ShortName: "Energy", Unit: "kcal/100g"},
	{Code: 400, Name: "Water", ShortName: "Water", Unit: "g/100g"},
	{Code: 10110, Name: "Sodium (Na)", ShortName: "Sodium", Unit: "mg/100g"},
	{Code: 25000, Name: "Protein, N x Jones' factor", ShortName: "Protein", Unit: "g/100g"},
	{Code: 31000, Name: "Carbohydrate", ShortName: "Carbs", Unit: "g/100g"},
	{Code: 34100, Name: "Fibres", ShortName: "Fibres", Unit: "g/100g"},
	{Code: 40000, Name: "Fat", ShortName: "Fat", Unit: "g/100g"},
	{Code: 60000, Name: "Alcohol", ShortName: "Alcohol", Unit: "g/100g"},
}

type sampleFood struct {
	info     nutrition.FoodInfo
	readings map[nutrition.NutrientCode]nutrition.Reading
}

func exact(v float64) nutrition.Reading { return nutrition.Reading{Value: v, Qualifier: nutrition.Exact} }
func below(v float64) nutrition.Reading { return nutrition.Reading{Value: v, Qualifier: nutrition.BelowLimit} }
func trace() nutrition.Reading         { return nutrition.Reading{Qualifier: nutrition.Trace} }

func sample(code int, name, family string, r map[nutrition.NutrientCode]nutrition.Reading) sampleFood {
	return sampleFood{
		info: nutrition.FoodInfo{
			Code:       code,
			Name:       name,
			FamilyName: family,
			Source:     "CIQUAL",
			DateSource: "2020",
			URLSource:  ciqualURL,
		},
		readings: r,
	}
}

var sampleFoods = []sampleFood{
	sample(2013, "Orange juice, pure juice", "Beverages", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(45), 400: exact(88.9), 25000: below(0.5), 31000: exact(10.2), 40000: trace(), 34100: exact(0.3), 10110: exact(1),
	}),
	sample(7001, "Wholemeal bread", "Cereal products", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(243), 400: exact(37.6), 25000: exact(9.7), 31000: exact(41.1), 40000: exact(2.9), 34100: exact(7), 10110: exact(470),
	}),
	sample(13000, "Apple, raw", "Fruits", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(53.5), 400: exact(85.4), 25000: below(0.5), 31000: exact(11.6), 40000: below(0.5), 34100: exact(1.4), 10110: trace(),
	}),
	sample(19024, "Whole milk, UHT", "Milk and dairy products", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(65), 400: exact(87.8), 25000: exact(3.3), 31000: exact(4.8), 40000: exact(3.6), 10110: exact(40),
	}),
	sample(16400, "Butter, unsalted", "Fats and oils", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(745), 400: exact(15.5), 25000: exact(0.7), 31000: exact(0.6), 40000: exact(82.2), 10110: below(10),
	}),
	sample(5214, "Red wine", "Beverages", map[nutrition.NutrientCode]nutrition.Reading{
		328: exact(84), 400: exact(86.6), 31000: below(0.5), 40000: trace(), 60000: exact(10.9), 10110: exact(5),
	}),
}

var samplePathologies = map[string][]nutrition.NutrientCode{
	"Hypertension": {10110},
	"Diabetes":     {31000, 34100},
}

// SeedSample loads a small catalog. Foods already present are skipped.
func (s *GormStore) SeedSample(ctx context.Context) error {
	if err := s.CreateNutrients(ctx, SampleNutrients); err != nil {
		return err
	}
	for _, f := range sampleFoods {
		if _, err := s.GetFoodInfo(ctx, f.info.Name); err == nil {
			continue
		}
		if err := s.CreateFood(ctx, f.info, f.readings); err != nil {
			return fmt.Errorf("seed %q: %w", f.info.Name, err)
		}
	}
	for name, codes := range samplePathologies {
		if _, err := s.GetPathologyNutrients(ctx, name); err == nil {
			continue
		}
		if err := s.CreatePathology(ctx, name, codes); err != nil {
			return err
		}
	}
	log.Printf("[store] seeded %d nutrients, %d foods", len(SampleNutrients), len(sampleFoods))
	return nil
}
