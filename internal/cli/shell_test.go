package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
	"github.com/pageza/nutricalc/backend/internal/store"
)

const (
	juice = "Orange juice, pure juice"
	apple = "Apple, raw"
)

func newShell(t *testing.T) (*Shell, *service.MealService, *bytes.Buffer) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	st := store.New(db)
	require.NoError(t, st.SeedSample(context.Background()))

	engine := config.DefaultEngineConfig()
	meal, err := service.NewMealService(st, engine)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return NewShell(meal, st, engine, out), meal, out
}

func TestAddSetAndRemove(t *testing.T) {
	sh, meal, _ := newShell(t)
	ctx := context.Background()

	require.NoError(t, sh.Exec(ctx, "add 100 "+juice))
	require.NoError(t, sh.Exec(ctx, "add 50 "+juice))
	assert.InDelta(t, 150, meal.Quantity(), 1e-9)

	require.NoError(t, sh.Exec(ctx, "set 20 "+juice))
	assert.InDelta(t, 20, meal.Quantity(), 1e-9)

	require.NoError(t, sh.Exec(ctx, "add 100 "+apple))
	require.NoError(t, sh.Exec(ctx, "rm "+juice+"; "+apple))
	assert.Empty(t, meal.Names())
}

func TestCommandErrors(t *testing.T) {
	sh, meal, _ := newShell(t)
	ctx := context.Background()

	assert.Error(t, sh.Exec(ctx, "add"))
	assert.Error(t, sh.Exec(ctx, "days two"))
	assert.Error(t, sh.Exec(ctx, "track water"))
	assert.Error(t, sh.Exec(ctx, "frobnicate"))

	err := sh.Exec(ctx, "rm Unicorn steak")
	assert.True(t, nutrition.IsUserError(err))
	assert.ErrorIs(t, err, nutrition.ErrFoodNotInMeal)

	err = sh.Exec(ctx, "add lots "+juice)
	assert.True(t, nutrition.IsUserError(err))
	assert.Empty(t, meal.Names())

	assert.ErrorIs(t, sh.Exec(ctx, "quit"), ErrQuit)
	assert.NoError(t, sh.Exec(ctx, "   "))
}

func TestGroupAndUngroup(t *testing.T) {
	sh, meal, _ := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Exec(ctx, "add 200 "+juice))
	require.NoError(t, sh.Exec(ctx, "add 100 "+apple))

	require.NoError(t, sh.Exec(ctx, "group Homemade; Fruit mix; "+juice+"; "+apple))
	assert.Equal(t, []string{"Fruit mix"}, meal.Names())

	require.NoError(t, sh.Exec(ctx, "ungroup Fruit mix"))
	assert.ElementsMatch(t, []string{juice, apple}, meal.Names())

	assert.Error(t, sh.Exec(ctx, "group Homemade; Lonely"))
}

func TestTrackPathologyAndDays(t *testing.T) {
	sh, meal, out := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Exec(ctx, "add 200 "+juice))

	require.NoError(t, sh.Exec(ctx, "track"))
	assert.NotContains(t, meal.Tracked(), nutrition.NutrientCode(10110))
	require.NoError(t, sh.Exec(ctx, "pathology Hypertension"))
	assert.Contains(t, meal.Tracked(), nutrition.NutrientCode(10110))

	require.NoError(t, sh.Exec(ctx, "days 2"))
	assert.Equal(t, 2, meal.Days())

	require.NoError(t, sh.Exec(ctx, "show"))
	text := out.String()
	assert.Contains(t, text, juice)
	assert.Contains(t, text, nutrition.TotalPerDayLabel)
	assert.Contains(t, text, "88.9")
	assert.Contains(t, text, "Days: 2")
	assert.Contains(t, text, "Water:")
}

func TestSaveLoadAndList(t *testing.T) {
	sh, meal, out := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Exec(ctx, "add 200 "+juice))
	require.NoError(t, sh.Exec(ctx, "save Breakfast; Doe"))
	assert.Contains(t, out.String(), "Saved portion ")

	require.NoError(t, sh.Exec(ctx, "clear"))
	assert.Empty(t, meal.Names())

	out.Reset()
	require.NoError(t, sh.Exec(ctx, "portions Doe"))
	fields := bytes.Fields(out.Bytes())
	require.NotEmpty(t, fields)
	id := string(fields[0])

	require.NoError(t, sh.Exec(ctx, "load "+id))
	assert.Equal(t, []string{juice}, meal.Names())

	out.Reset()
	require.NoError(t, sh.Exec(ctx, "foods"))
	assert.Contains(t, out.String(), "Beverages")

	out.Reset()
	require.NoError(t, sh.Exec(ctx, "foods Beverages"))
	assert.Contains(t, out.String(), "Red wine")
}

func TestExportWritesReport(t *testing.T) {
	sh, _, _ := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Exec(ctx, "add 200 "+juice))

	path := filepath.Join(t.TempDir(), "meal.json")
	require.NoError(t, sh.Exec(ctx, "export "+path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report service.Report
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Meal.Foods, 1)
	assert.Equal(t, juice, report.Meal.Foods[0].Name)
}

func TestComplete(t *testing.T) {
	sh, _, _ := newShell(t)
	assert.Equal(t, []string{"group"}, sh.Complete("gr"))
	assert.ElementsMatch(t, []string{"days", "del"}, sh.Complete("d"))
}
