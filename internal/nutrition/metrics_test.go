package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supply = []EnergySupply{
	{Code: codeProtein, KcalPerUnit: 4},
	{Code: codeCarbs, KcalPerUnit: 4},
	{Code: codeFat, KcalPerUnit: 9},
}

func TestEnergyBreakdownEmpty(t *testing.T) {
	b, err := ComputeEnergyBreakdown(NewMealAggregator(mustReducer(), 1), supply, codeEnergy, 1)
	require.NoError(t, err)
	assert.False(t, b.HasData)
	assert.Equal(t, []string{"-", "-", "-"}, b.Ratios)
	assert.Equal(t, []string{"-", "-", "-"}, b.RawValues)
	assert.Equal(t, []string{"-", "-", "-"}, b.Contributions)
}

func TestEnergyBreakdown(t *testing.T) {
	agg := NewMealAggregator(mustReducer(), 1)
	require.NoError(t, agg.Recompute([]*FoodEntry{entry(t, juiceSource(), "BreadY", 100, allCodes)}))

	b, err := ComputeEnergyBreakdown(agg, supply, codeEnergy, 1)
	require.NoError(t, err)
	assert.True(t, b.HasData)
	// 9*4=36 -> 13%, 50*4=200 -> 74%, 3*9=27 -> 10%
	assert.Equal(t, []string{"13", "74", "10"}, b.Ratios)
	assert.Equal(t, []string{"9.0", "50.0", "3.0"}, b.RawValues)
	assert.Equal(t, []string{"36.0", "200.0", "27.0"}, b.Contributions)
}

func TestEnergyBreakdownZeroEnergy(t *testing.T) {
	src := newFakeSource()
	src.addFood(9, "Salt", map[NutrientCode]Reading{codeSodium: {Value: 39, Qualifier: Exact}})
	agg := NewMealAggregator(mustReducer(), 1)
	require.NoError(t, agg.Recompute([]*FoodEntry{entry(t, src, "Salt", 5, allCodes)}))

	b, err := ComputeEnergyBreakdown(agg, supply, codeEnergy, 1)
	require.NoError(t, err)
	assert.False(t, b.HasData)
	assert.Equal(t, []string{"-", "-", "-"}, b.Ratios)
	assert.Equal(t, []string{"-", "-", "-"}, b.RawValues, "unknown totals render as unknown")
	assert.Equal(t, []string{"0.0", "0.0", "0.0"}, b.Contributions)
}

func TestWaterBalance(t *testing.T) {
	empty := ComputeWaterBalance(NewMealAggregator(mustReducer(), 1), 1, codeEnergy, codeWater, 1)
	assert.False(t, empty.HasData)
	assert.Equal(t, NoData, empty.Supplied)
	assert.Equal(t, NoData, empty.Needed)

	src := juiceSource()
	agg := NewMealAggregator(mustReducer(), 1)
	require.NoError(t, agg.Recompute([]*FoodEntry{entry(t, src, "JuiceX", 200, allCodes)}))
	wb := ComputeWaterBalance(agg, 1, codeEnergy, codeWater, 1)
	assert.True(t, wb.HasData)
	assert.Equal(t, "177.8", wb.Supplied)
	assert.Equal(t, "90.0", wb.Needed)
	assert.True(t, wb.Sufficient)

	require.NoError(t, agg.Recompute([]*FoodEntry{entry(t, src, "BreadY", 100, allCodes)}))
	wb = ComputeWaterBalance(agg, 1, codeEnergy, codeWater, 1)
	assert.Equal(t, "30.0", wb.Supplied)
	assert.Equal(t, "270.0", wb.Needed)
	assert.False(t, wb.Sufficient)
}

func TestWaterBalanceUnknownWater(t *testing.T) {
	src := newFakeSource()
	src.addFood(9, "Oil", map[NutrientCode]Reading{codeEnergy: {Value: 900, Qualifier: Exact}})
	agg := NewMealAggregator(mustReducer(), 1)
	require.NoError(t, agg.Recompute([]*FoodEntry{entry(t, src, "Oil", 10, allCodes)}))

	wb := ComputeWaterBalance(agg, 1, codeEnergy, codeWater, 1)
	assert.True(t, wb.HasData)
	assert.Equal(t, "0.0", wb.Supplied)
	assert.Equal(t, "90.0", wb.Needed)
	assert.False(t, wb.Sufficient)
}
