package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/store"
)

const (
	juice = "Orange juice, pure juice"
	bread = "Wholemeal bread"
	apple = "Apple, raw"
	milk  = "Whole milk, UHT"

	water   nutrition.NutrientCode = 400
	energy  nutrition.NutrientCode = 328
	protein nutrition.NutrientCode = 25000
	carbs   nutrition.NutrientCode = 31000
	fibres  nutrition.NutrientCode = 34100
	sodium  nutrition.NutrientCode = 10110
)

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s := store.New(db)
	require.NoError(t, s.SeedSample(context.Background()))
	return s
}

func newTestMeal(t *testing.T) (*MealService, *store.GormStore) {
	t.Helper()
	st := newTestStore(t)
	meal, err := NewMealService(st, config.DefaultEngineConfig())
	require.NoError(t, err)
	return meal, st
}

func requireTotal(t *testing.T, m *MealService, code nutrition.NutrientCode, q nutrition.Qualifier, quantity float64) {
	t.Helper()
	total, ok := m.Total(code)
	require.True(t, ok, "no total for %d", code)
	assert.Equal(t, q, total.Qualifier, "qualifier of %d", code)
	assert.InDelta(t, quantity, total.Quantity, 1e-6, "quantity of %d", code)
}

func TestAddFoodScalesValues(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()

	require.NoError(t, m.AddFood(ctx, juice, "200", false))

	e, ok := m.Entry(juice)
	require.True(t, ok)
	v, ok := e.Value(water)
	require.True(t, ok)
	assert.InDelta(t, 177.8, v.Quantity, 1e-9)
	assert.Equal(t, nutrition.Exact, v.Qualifier)

	requireTotal(t, m, water, nutrition.Exact, 177.8)
	assert.InDelta(t, 200, m.Quantity(), 1e-9)
}

func TestAddFoodAgainReplacesOrAdds(t *testing.T) {
	ctx := context.Background()

	t.Run("replace", func(t *testing.T) {
		m, _ := newTestMeal(t)
		require.NoError(t, m.AddFood(ctx, juice, "200", false))
		require.NoError(t, m.AddFood(ctx, juice, "50", false))
		e, _ := m.Entry(juice)
		assert.Equal(t, 50.0, e.Quantity)
		assert.Equal(t, []string{juice}, m.Names())
		requireTotal(t, m, water, nutrition.Exact, 44.45)
	})

	t.Run("add", func(t *testing.T) {
		m, _ := newTestMeal(t)
		require.NoError(t, m.AddFood(ctx, juice, "200", false))
		require.NoError(t, m.AddFood(ctx, juice, " 50 ", true))
		e, _ := m.Entry(juice)
		assert.Equal(t, 250.0, e.Quantity)
		requireTotal(t, m, water, nutrition.Exact, 222.25)
	})
}

func TestAddFoodUserErrors(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "100", false))

	tests := []struct {
		name     string
		food     string
		quantity string
		target   error
	}{
		{"empty name", "  ", "100", nutrition.ErrEmptyFoodName},
		{"not a number", bread, "abc", nutrition.ErrInvalidQuantity},
		{"negative", bread, "-5", nutrition.ErrInvalidQuantity},
		{"unknown food", "Dragon fruit jam", "10", nutrition.ErrFoodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.AddFood(ctx, tt.food, tt.quantity, false)
			require.Error(t, err)
			assert.True(t, nutrition.IsUserError(err))
			assert.False(t, nutrition.IsInternalError(err))
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, []string{juice}, m.Names())
			assert.InDelta(t, 100, m.Quantity(), 1e-9)
		})
	}
}

func TestAggregatorAdditivity(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMeal(t)
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))

	e1, _ := m.Entry(juice)
	e2, _ := m.Entry(bread)
	for _, code := range []nutrition.NutrientCode{water, energy, carbs, sodium} {
		v1, _ := e1.Value(code)
		v2, _ := e2.Value(code)
		total, ok := m.Total(code)
		require.True(t, ok)
		assert.InDelta(t, v1.Quantity+v2.Quantity, total.Quantity, 1e-9)
	}
	// below-limit protein in juice makes the sum an upper bound
	requireTotal(t, m, protein, nutrition.BelowLimit, 1+4.85)
}

func TestChangeTrackedNutrientsKeepsSpecialCodes(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	_, ok := m.Total(sodium)
	require.True(t, ok)

	require.NoError(t, m.ChangeTrackedNutrients(ctx, nil))
	assert.Equal(t, sortedCodes(config.DefaultEngineConfig().SpecialCodes()), m.Tracked())
	_, ok = m.Total(sodium)
	assert.False(t, ok, "stale code must leave the total")
	requireTotal(t, m, water, nutrition.Exact, 177.8+18.8)

	require.NoError(t, m.ChangeTrackedNutrients(ctx, []nutrition.NutrientCode{sodium}))
	requireTotal(t, m, sodium, nutrition.Exact, 2+235)
	e, _ := m.Entry(bread)
	assert.Contains(t, e.Codes(), sodium)
}

func sortedCodes(codes []nutrition.NutrientCode) []nutrition.NutrientCode {
	return union(codes, nil)
}

type failingStore struct {
	*store.GormStore
	failCode nutrition.NutrientCode
	failName string
}

var errBrokenDisk = errors.New("disk I/O error")

func (f *failingStore) GetNutrientValue(ctx context.Context, foodCode int, code nutrition.NutrientCode) (nutrition.Reading, error) {
	if code == f.failCode && foodCode == 7001 {
		return nutrition.Reading{}, errBrokenDisk
	}
	return f.GormStore.GetNutrientValue(ctx, foodCode, code)
}

func (f *failingStore) GetFoodInfo(ctx context.Context, name string) (nutrition.FoodInfo, error) {
	if f.failName != "" && name == f.failName {
		return nutrition.FoodInfo{}, errBrokenDisk
	}
	return f.GormStore.GetFoodInfo(ctx, name)
}

func TestChangeTrackedNutrientsIsAtomic(t *testing.T) {
	st := &failingStore{GormStore: newTestStore(t)}
	m, err := NewMealService(st, config.DefaultEngineConfig())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	before := m.Tracked()

	// juice is updated first, then loading the new code for bread fails
	const magnesium nutrition.NutrientCode = 10120
	st.failCode = magnesium
	err = m.ChangeTrackedNutrients(ctx, []nutrition.NutrientCode{sodium, magnesium})
	require.Error(t, err)
	assert.True(t, nutrition.IsInternalError(err))
	assert.ErrorIs(t, err, errBrokenDisk)

	e, _ := m.Entry(juice)
	assert.NotContains(t, e.Codes(), magnesium)
	assert.Equal(t, before, m.Tracked())
	_, ok := m.Total(magnesium)
	assert.False(t, ok)
}

func TestTrackPathology(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.ChangeTrackedNutrients(ctx, nil))

	require.NoError(t, m.TrackPathology(ctx, "Hypertension"))
	assert.Contains(t, m.Tracked(), sodium)

	err := m.TrackPathology(ctx, "Gout")
	require.Error(t, err)
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrPathologyNotFound)
}

func TestRemoveFoods(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))

	err := m.RemoveFoods(ctx, []string{apple}, false)
	assert.True(t, nutrition.IsInternalError(err))
	assert.ErrorIs(t, err, nutrition.ErrFoodNotInMeal)

	err = m.RemoveFoods(ctx, []string{juice, bread}, true)
	assert.True(t, nutrition.IsInternalError(err))
	assert.Len(t, m.Names(), 2)

	require.NoError(t, m.RemoveFoods(ctx, []string{juice}, false))
	assert.Equal(t, []string{bread}, m.Names())
	requireTotal(t, m, water, nutrition.Exact, 18.8)

	require.NoError(t, m.RemoveFoods(ctx, []string{bread}, false))
	assert.Empty(t, m.Names())
	assert.Zero(t, m.Quantity())
	_, ok := m.Total(water)
	assert.False(t, ok)
}

func TestRemoveFoodsDeleteFromStore(t *testing.T) {
	m, st := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	require.NoError(t, m.AddFood(ctx, apple, "100", false))
	require.NoError(t, m.GroupFoods(ctx, "Meals", "Toast and juice", []string{juice, bread}))

	var deleted []Event
	m.Subscribe(func(ev Event) {
		if ev.Kind == FoodDeleted {
			deleted = append(deleted, ev)
		}
	})

	// the group refers to juice, which is no longer in the meal but stays in the store
	require.NoError(t, m.AddFood(ctx, juice, "10", false))
	err := m.RemoveFoods(ctx, []string{juice}, true)
	require.Error(t, err)
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrFoodReferenced)
	assert.Contains(t, m.Names(), juice)
	assert.Empty(t, deleted)

	require.NoError(t, m.RemoveFoods(ctx, []string{apple}, true))
	assert.NotContains(t, m.Names(), apple)
	_, err = st.GetFoodInfo(ctx, apple)
	assert.ErrorIs(t, err, nutrition.ErrFoodNotFound)
	require.Len(t, deleted, 1)
	assert.Equal(t, []string{apple}, deleted[0].Names)
}

func TestRemoveFoodsKeepsStoreWhenTotalFails(t *testing.T) {
	m, st := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	require.NoError(t, m.AddFood(ctx, apple, "100", false))

	// without rules, juice and bread protein qualifiers no longer reduce
	reducer, err := nutrition.NewReducer(nutrition.RuleTables{}, 1e-6)
	require.NoError(t, err)
	m.reducer = reducer

	err = m.RemoveFoods(ctx, []string{apple}, true)
	require.Error(t, err)
	assert.True(t, nutrition.IsInternalError(err))
	assert.ErrorIs(t, err, nutrition.ErrNotConverged)

	assert.Equal(t, []string{juice, bread, apple}, m.Names())
	_, err = st.GetFoodInfo(ctx, apple)
	assert.NoError(t, err, "apple must still be in the store")
}

func TestGroupFoodsRemovesGroupWhenMealUpdateFails(t *testing.T) {
	st := &failingStore{GormStore: newTestStore(t)}
	m, err := NewMealService(st, config.DefaultEngineConfig())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, apple, "100", false))

	st.failName = "Fruit mix"
	err = m.GroupFoods(ctx, "Homemade", "Fruit mix", []string{juice, apple})
	require.Error(t, err)
	assert.True(t, nutrition.IsInternalError(err))
	assert.ErrorIs(t, err, errBrokenDisk)
	assert.Equal(t, []string{juice, apple}, m.Names())
	_, err = st.GormStore.GetFoodInfo(ctx, "Fruit mix")
	assert.ErrorIs(t, err, nutrition.ErrFoodNotFound)

	st.failName = ""
	require.NoError(t, m.GroupFoods(ctx, "Homemade", "Fruit mix", []string{juice, apple}))
	assert.Equal(t, []string{"Fruit mix"}, m.Names())
	assert.InDelta(t, 300, m.Quantity(), 1e-9)
}

func TestGroupUngroupRoundTrip(t *testing.T) {
	m, st := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.ChangeTrackedNutrients(ctx, nil))
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))

	before := map[nutrition.NutrientCode]nutrition.Total{}
	for _, code := range m.Tracked() {
		before[code], _ = m.Total(code)
	}

	require.NoError(t, m.GroupFoods(ctx, "Meals", "Breakfast", []string{juice, bread}))
	assert.Equal(t, []string{"Breakfast"}, m.Names())
	assert.InDelta(t, 250, m.Quantity(), 1e-9)
	requireTotal(t, m, water, nutrition.Exact, 196.6)

	// the stored profile covers the whole catalog, not only tracked nutrients
	info, err := st.GetFoodInfo(ctx, "Breakfast")
	require.NoError(t, err)
	r, err := st.GetNutrientValue(ctx, info.Code, sodium)
	require.NoError(t, err)
	assert.Equal(t, nutrition.Exact, r.Qualifier)
	assert.InDelta(t, (2+235)*100/250.0, r.Value, 1e-9)
	r, err = st.GetNutrientValue(ctx, info.Code, fibres)
	require.NoError(t, err)
	assert.InDelta(t, (0.6+3.5)*100/250, r.Value, 1e-9)

	require.NoError(t, m.UngroupFood(ctx, "Breakfast"))
	assert.ElementsMatch(t, []string{juice, bread}, m.Names())
	e, _ := m.Entry(juice)
	assert.InDelta(t, 200, e.Quantity, 1e-9)

	after := map[nutrition.NutrientCode]nutrition.Total{}
	for _, code := range m.Tracked() {
		after[code], _ = m.Total(code)
	}
	if diff := cmp.Diff(before, after, cmp.Comparer(func(a, b float64) bool {
		return a-b < 1e-6 && b-a < 1e-6
	})); diff != "" {
		t.Errorf("totals changed after group round trip (-before +after):\n%s", diff)
	}
}

func TestUngroupMergesExistingParts(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	require.NoError(t, m.GroupFoods(ctx, "Meals", "Breakfast", []string{juice, bread}))
	require.NoError(t, m.AddFood(ctx, juice, "100", false))

	require.NoError(t, m.UngroupFood(ctx, "Breakfast"))
	assert.Equal(t, []string{juice, bread}, m.Names())
	e, _ := m.Entry(juice)
	assert.InDelta(t, 300, e.Quantity, 1e-9)
}

func TestGroupFoodsErrors(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))

	err := m.GroupFoods(ctx, "Meals", "Solo", []string{juice, juice})
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrNotEnoughFoods)

	err = m.GroupFoods(ctx, "", "Nameless family", []string{juice, bread})
	assert.ErrorIs(t, err, nutrition.ErrEmptyFamily)

	err = m.GroupFoods(ctx, "Meals", apple, []string{juice, bread})
	require.Error(t, err)
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrFoodExists)
	assert.Equal(t, []string{juice, bread}, m.Names())

	err = m.GroupFoods(ctx, "Meals", "Ghost group", []string{juice, apple})
	assert.True(t, nutrition.IsInternalError(err))
	assert.Equal(t, []string{juice, bread}, m.Names())
}

func TestGroupFoodsZeroQuantity(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "0", false))
	require.NoError(t, m.AddFood(ctx, bread, "0", false))

	err := m.GroupFoods(ctx, "Meals", "Nothing", []string{juice, bread})
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrZeroQuantity)
}

func TestUngroupFoodErrors(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))

	err := m.UngroupFood(ctx, "")
	assert.True(t, nutrition.IsUserError(err))

	err = m.UngroupFood(ctx, juice)
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrNotComposite)
	assert.Equal(t, []string{juice}, m.Names())
}

func TestSaveAndLoadPortion(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.ChangeTrackedNutrients(ctx, nil))
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, bread, "50", false))
	require.NoError(t, m.SetDays(2))

	id, err := m.SavePortion(ctx, "Lunch", "Doe", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, m.Clear())
	require.NoError(t, m.SetDays(1))
	require.NoError(t, m.ChangeTrackedNutrients(ctx, []nutrition.NutrientCode{sodium}))

	var loaded []Event
	m.Subscribe(func(ev Event) { loaded = append(loaded, ev) })

	require.NoError(t, m.LoadPortion(ctx, id))
	assert.Equal(t, []string{juice, bread}, m.Names())
	assert.Equal(t, 2, m.Days())
	requireTotal(t, m, water, nutrition.Exact, 196.6)
	requireTotal(t, m, protein, nutrition.BelowLimit, 5.85)

	// sodium was not tracked when the portion was saved
	e, _ := m.Entry(juice)
	v, ok := e.Value(sodium)
	require.True(t, ok)
	assert.Equal(t, nutrition.Unknown, v.Qualifier)
	requireTotal(t, m, sodium, nutrition.Unknown, 0)

	require.Len(t, loaded, 1)
	assert.Equal(t, PortionLoaded, loaded[0].Kind)
}

func TestPortionErrors(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()

	_, err := m.SavePortion(ctx, "Empty", "", time.Now())
	assert.ErrorIs(t, err, nutrition.ErrEmptyMeal)

	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	_, err = m.SavePortion(ctx, " ", "", time.Now())
	assert.True(t, nutrition.IsUserError(err))

	err = m.LoadPortion(ctx, "5b3c4b8e-59a1-4c8e-8c3a-1e4c6a4d9f00")
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrPortionNotFound)
	assert.Equal(t, []string{juice}, m.Names())
}

func TestSetDaysAndView(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()

	err := m.SetDays(0)
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrInvalidDays)

	view, err := m.View(ctx)
	require.NoError(t, err)
	assert.False(t, view.Water.HasData)
	assert.Equal(t, nutrition.TotalLabel, view.Total.Label)

	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	one, err := m.View(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SetDays(2))
	two, err := m.View(ctx)
	require.NoError(t, err)

	assert.Equal(t, nutrition.TotalLabel, one.Total.Label)
	assert.Equal(t, nutrition.TotalPerDayLabel, two.Total.Label)
	assert.Equal(t, one.Total.Quantity/2, two.Total.Quantity)
	assert.Equal(t, "177.8", one.Total.Values[water])
	assert.Equal(t, "88.9", two.Total.Values[water])
	assert.True(t, two.Water.HasData)
	assert.Equal(t, 2, two.Days)

	require.Len(t, two.Foods, 1)
	assert.Equal(t, "177.8", two.Foods[0].Values[water], "food lines are not divided by days")
	assert.Len(t, two.Energy.Ratios, len(config.DefaultEngineConfig().EnergySupply))

	codes := make([]nutrition.NutrientCode, len(two.Nutrients))
	for i, d := range two.Nutrients {
		codes[i] = d.Code
	}
	assert.Equal(t, m.Tracked(), codes)
}

func TestEventsAreDelivered(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()

	var got []EventKind
	unsubscribe := m.Subscribe(func(ev Event) {
		got = append(got, ev.Kind)
		// listeners run outside the lock
		_ = m.Names()
	})

	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.ChangeTrackedNutrients(ctx, nil))
	require.NoError(t, m.SetDays(3))
	assert.Error(t, m.SetDays(-1))
	unsubscribe()
	require.NoError(t, m.Clear())

	assert.Equal(t, []EventKind{FoodSetChanged, NutrientSetChanged, DayCountChanged}, got)
}

func TestNonConvergingRulesAreInternalErrors(t *testing.T) {
	engine := config.DefaultEngineConfig()
	engine.QualifierRules = config.QualifierRules{}
	m, err := NewMealService(newTestStore(t), engine)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	// protein is below-limit in juice and exact in bread
	err = m.AddFood(ctx, bread, "50", false)
	require.Error(t, err)
	assert.True(t, nutrition.IsInternalError(err))
	assert.ErrorIs(t, err, nutrition.ErrNotConverged)
	assert.Equal(t, []string{juice}, m.Names())
	requireTotal(t, m, water, nutrition.Exact, 177.8)
}

func TestDraftRestore(t *testing.T) {
	m, _ := newTestMeal(t)
	ctx := context.Background()
	require.NoError(t, m.AddFood(ctx, juice, "200", false))
	require.NoError(t, m.AddFood(ctx, milk, "250", false))
	require.NoError(t, m.TrackPathology(ctx, "Diabetes"))
	require.NoError(t, m.SetDays(2))
	d := m.Draft()

	other, _ := newTestMeal(t)
	require.NoError(t, other.Restore(ctx, d))
	assert.Equal(t, m.Names(), other.Names())
	assert.Equal(t, m.Tracked(), other.Tracked())
	assert.Equal(t, 2, other.Days())
	want, _ := m.Total(fibres)
	got, _ := other.Total(fibres)
	assert.Equal(t, want, got)

	d.Days = 0
	assert.True(t, nutrition.IsUserError(other.Restore(ctx, d)))
}
