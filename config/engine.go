package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

var (
	errEngineConfigRead    = errors.New("cannot read engine config")
	errEngineConfigInvalid = errors.New("invalid engine config")
)

// QualifierRules holds rule triples as table tags, e.g. ["N", "-", "N"].
type QualifierRules struct {
	NonZero  [][3]string `json:"nonzero"`
	NearZero [][3]string `json:"near_zero"`
	Common   [][3]string `json:"common"`
}

// EngineConfig holds the tolerances, rule tables and nutrient codes of the
// meal engine.
type EngineConfig struct {
	QuantityEpsilon float64                  `json:"quantity_epsilon"`
	ValueEpsilon    float64                  `json:"value_epsilon"`
	Precision       int                      `json:"precision"`
	QualifierRules  QualifierRules           `json:"qualifier_rules"`
	EnergyCode      int                      `json:"energy_code"`
	WaterCode       int                      `json:"water_code"`
	EnergySupply    []nutrition.EnergySupply `json:"energy_supply"`
	WaterPerKcal    float64                  `json:"water_per_kcal"`
	DefaultTracked  []int                    `json:"default_tracked"`
}

// DefaultEngineConfig uses CIQUAL nutrient codes.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		QuantityEpsilon: 0.01,
		ValueEpsilon:    1e-6,
		Precision:       1,
		QualifierRules:  rulesToTags(nutrition.DefaultRuleTables()),
		EnergyCode:      328,
		WaterCode:       400,
		EnergySupply: []nutrition.EnergySupply{
			{Code: 25000, KcalPerUnit: 4}, // protein
			{Code: 31000, KcalPerUnit: 4}, // carbohydrate
			{Code: 40000, KcalPerUnit: 9}, // fat
			{Code: 34100, KcalPerUnit: 2}, // fibres
			{Code: 60000, KcalPerUnit: 7}, // alcohol
		},
		WaterPerKcal:   1,
		DefaultTracked: []int{10110},
	}
}

// LoadEngineConfig reads a JSONC file over the defaults. An empty path
// returns the defaults.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("%w %s: %w", errEngineConfigRead, path, err)
	}

	cfg, err = ParseEngineConfig(data)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseEngineConfig decodes JSONC over the defaults and validates the result.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("%w: invalid JSONC: %w", errEngineConfigInvalid, err)
	}

	cfg := DefaultEngineConfig()
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("%w: %w", errEngineConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// Validate checks tolerances and that the rule tables parse.
func (c EngineConfig) Validate() error {
	if c.QuantityEpsilon < 0 || c.ValueEpsilon < 0 {
		return fmt.Errorf("%w: epsilons must not be negative", errEngineConfigInvalid)
	}
	if c.Precision < 0 || c.Precision > 6 {
		return fmt.Errorf("%w: precision must be between 0 and 6", errEngineConfigInvalid)
	}
	if c.EnergyCode == 0 || c.WaterCode == 0 {
		return fmt.Errorf("%w: energy_code and water_code are required", errEngineConfigInvalid)
	}
	if c.WaterPerKcal < 0 {
		return fmt.Errorf("%w: water_per_kcal must not be negative", errEngineConfigInvalid)
	}
	if _, err := c.Reducer(); err != nil {
		return fmt.Errorf("%w: %w", errEngineConfigInvalid, err)
	}
	return nil
}

// RuleTables converts the tag triples into typed rules.
func (c EngineConfig) RuleTables() (nutrition.RuleTables, error) {
	var tables nutrition.RuleTables
	var err error
	if tables.NonZero, err = parseRules(c.QualifierRules.NonZero); err != nil {
		return nutrition.RuleTables{}, err
	}
	if tables.NearZero, err = parseRules(c.QualifierRules.NearZero); err != nil {
		return nutrition.RuleTables{}, err
	}
	if tables.Common, err = parseRules(c.QualifierRules.Common); err != nil {
		return nutrition.RuleTables{}, err
	}
	return tables, nil
}

// Reducer builds the qualifier reducer for this configuration.
func (c EngineConfig) Reducer() (*nutrition.Reducer, error) {
	tables, err := c.RuleTables()
	if err != nil {
		return nil, err
	}
	return nutrition.NewReducer(tables, c.ValueEpsilon)
}

// Supply returns a copy of the energy coefficients, in order.
func (c EngineConfig) Supply() []nutrition.EnergySupply {
	return append([]nutrition.EnergySupply(nil), c.EnergySupply...)
}

// SpecialCodes are always tracked: total energy, water and the energy
// macronutrients.
func (c EngineConfig) SpecialCodes() []nutrition.NutrientCode {
	codes := []nutrition.NutrientCode{nutrition.NutrientCode(c.EnergyCode), nutrition.NutrientCode(c.WaterCode)}
	for _, s := range c.EnergySupply {
		codes = append(codes, s.Code)
	}
	return codes
}

// DefaultTrackedCodes returns the initial tracked set without the special codes.
func (c EngineConfig) DefaultTrackedCodes() []nutrition.NutrientCode {
	out := make([]nutrition.NutrientCode, len(c.DefaultTracked))
	for i, code := range c.DefaultTracked {
		out[i] = nutrition.NutrientCode(code)
	}
	return out
}

func parseRules(triples [][3]string) ([]nutrition.Rule, error) {
	rules := make([]nutrition.Rule, 0, len(triples))
	for _, t := range triples {
		var q [3]nutrition.Qualifier
		for i, tag := range t {
			parsed, err := nutrition.ParseQualifier(tag)
			if err != nil {
				return nil, fmt.Errorf("rule %v: %w", t, err)
			}
			q[i] = parsed
		}
		rules = append(rules, nutrition.Rule{A: q[0], B: q[1], Result: q[2]})
	}
	return rules, nil
}

func rulesToTags(tables nutrition.RuleTables) QualifierRules {
	conv := func(rules []nutrition.Rule) [][3]string {
		out := make([][3]string, len(rules))
		for i, r := range rules {
			out[i] = [3]string{r.A.Tag(), r.B.Tag(), r.Result.Tag()}
		}
		return out
	}
	return QualifierRules{
		NonZero:  conv(tables.NonZero),
		NearZero: conv(tables.NearZero),
		Common:   conv(tables.Common),
	}
}
