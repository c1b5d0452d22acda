package nutrition

import (
	"context"
	"fmt"
)

const (
	codeEnergy  NutrientCode = 328
	codeWater   NutrientCode = 400
	codeProtein NutrientCode = 25000
	codeCarbs   NutrientCode = 31000
	codeFat     NutrientCode = 40000
	codeSodium  NutrientCode = 10110
)

// fakeSource serves per-100g readings from memory.
type fakeSource struct {
	foods    map[string]FoodInfo
	readings map[int]map[NutrientCode]Reading
	calls    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		foods:    map[string]FoodInfo{},
		readings: map[int]map[NutrientCode]Reading{},
	}
}

func (s *fakeSource) addFood(code int, name string, readings map[NutrientCode]Reading) {
	s.foods[name] = FoodInfo{Code: code, Name: name, FamilyName: "test"}
	s.readings[code] = readings
}

func (s *fakeSource) GetFoodInfo(_ context.Context, name string) (FoodInfo, error) {
	info, ok := s.foods[name]
	if !ok {
		return FoodInfo{}, fmt.Errorf("%w: %s", ErrFoodNotFound, name)
	}
	return info, nil
}

func (s *fakeSource) GetNutrientValue(_ context.Context, foodCode int, code NutrientCode) (Reading, error) {
	s.calls++
	r, ok := s.readings[foodCode][code]
	if !ok {
		return Reading{Qualifier: Unknown}, nil
	}
	return r, nil
}

func juiceSource() *fakeSource {
	s := newFakeSource()
	s.addFood(1, "JuiceX", map[NutrientCode]Reading{
		codeWater:   {Value: 88.9, Qualifier: Exact},
		codeEnergy:  {Value: 45, Qualifier: Exact},
		codeCarbs:   {Value: 10.2, Qualifier: Exact},
		codeProtein: {Value: 0.5, Qualifier: BelowLimit},
		codeFat:     {Value: 0, Qualifier: Trace},
	})
	s.addFood(2, "BreadY", map[NutrientCode]Reading{
		codeWater:   {Value: 30, Qualifier: Exact},
		codeEnergy:  {Value: 270, Qualifier: Exact},
		codeCarbs:   {Value: 50, Qualifier: Exact},
		codeProtein: {Value: 9, Qualifier: Exact},
		codeFat:     {Value: 3, Qualifier: Exact},
		codeSodium:  {Value: 0.5, Qualifier: Exact},
	})
	return s
}

func mustReducer() *Reducer {
	r, err := NewReducer(DefaultRuleTables(), 1e-6)
	if err != nil {
		panic(err)
	}
	return r
}
