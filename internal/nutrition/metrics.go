package nutrition

import (
	"math"
	"strconv"
)

// EnergySupply is the energy one unit of a macronutrient provides.
type EnergySupply struct {
	Code        NutrientCode `json:"code"`
	KcalPerUnit float64      `json:"kcal_per_unit"`
}

// NoData is shown in place of a value that cannot be computed.
const NoData = "-"

// EnergyBreakdown is the contribution of each macronutrient to total energy,
// in the order of the supply list.
type EnergyBreakdown struct {
	HasData       bool     `json:"has_data"`
	Ratios        []string `json:"ratios"`
	RawValues     []string `json:"raw_values"`
	Contributions []string `json:"contributions"`
}

// WaterBalance compares the water supplied by the meal with the water needed
// to process its energy.
type WaterBalance struct {
	HasData    bool   `json:"has_data"`
	Supplied   string `json:"supplied"`
	Needed     string `json:"needed"`
	Sufficient bool   `json:"sufficient"`
}

func placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = NoData
	}
	return out
}

// ComputeEnergyBreakdown derives the macronutrient energy ratios from totals.
// An empty meal yields placeholders, and so do the ratios when total energy is
// zero.
func ComputeEnergyBreakdown(totals Totals, supply []EnergySupply, energyCode NutrientCode, precision int) (EnergyBreakdown, error) {
	n := len(supply)
	if totals.Len() == 0 {
		return EnergyBreakdown{
			Ratios:        placeholders(n),
			RawValues:     placeholders(n),
			Contributions: placeholders(n),
		}, nil
	}

	energy, _ := totals.Total(energyCode)
	b := EnergyBreakdown{
		HasData:       energy.Quantity > 0,
		Ratios:        make([]string, n),
		RawValues:     make([]string, n),
		Contributions: make([]string, n),
	}
	for i, s := range supply {
		t, ok := totals.Total(s.Code)
		if !ok {
			t = Total{Qualifier: Unknown}
		}
		raw, err := FormatQuantity(t.Qualifier, t.Quantity, precision)
		if err != nil {
			return EnergyBreakdown{}, err
		}
		contribution := t.Quantity * s.KcalPerUnit

		b.RawValues[i] = raw
		b.Contributions[i] = strconv.FormatFloat(contribution, 'f', precision, 64)
		if b.HasData {
			b.Ratios[i] = strconv.Itoa(int(math.Round(contribution * 100 / energy.Quantity)))
		} else {
			b.Ratios[i] = NoData
		}
	}
	return b, nil
}

// ComputeWaterBalance derives the water need from total energy. HasData is
// false only for an empty meal; Unknown contributions count as zero.
func ComputeWaterBalance(totals Totals, waterPerKcal float64, energyCode, waterCode NutrientCode, precision int) WaterBalance {
	if totals.Len() == 0 {
		return WaterBalance{Supplied: NoData, Needed: NoData}
	}

	energy, _ := totals.Total(energyCode)
	water, _ := totals.Total(waterCode)
	needed := energy.Quantity * waterPerKcal
	return WaterBalance{
		HasData:    true,
		Supplied:   strconv.FormatFloat(water.Quantity, 'f', precision, 64),
		Needed:     strconv.FormatFloat(needed, 'f', precision, 64),
		Sufficient: needed < water.Quantity,
	}
}
