package nutrition

import (
	"context"
	"time"
)

// FoodInfo is the identity and provenance of a food.
type FoodInfo struct {
	Code       int    `json:"code"`
	Name       string `json:"name"`
	FamilyName string `json:"family"`
	Source     string `json:"source"`
	DateSource string `json:"date_source"`
	URLSource  string `json:"url_source"`
}

// Reading is a per-100g table value.
type Reading struct {
	Value     float64
	Qualifier Qualifier
}

// Part is one constituent of a group, in grams.
type Part struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// Composite is a new group food ready to be persisted. Totals are per 100g.
type Composite struct {
	Name          string
	FamilyName    string
	TotalQuantity float64
	Totals        map[NutrientCode]Total
	Parts         []Part
}

// SnapshotRow is one (food, nutrient) row of a saved portion.
type SnapshotRow struct {
	Quantity         float64
	FoodName         string
	FoodCode         int
	FamilyName       string
	Source           string
	DateSource       string
	URLSource        string
	NutrientCode     NutrientCode
	NutrientName     string
	NutrientShortcut string
	Value            float64
	Qualifier        Qualifier
}

// PortionSnapshot is a saved meal as returned by the store.
type PortionSnapshot struct {
	NbDays int
	Rows   []SnapshotRow
}

// NutrientSource is what a FoodEntry needs to populate itself.
type NutrientSource interface {
	GetFoodInfo(ctx context.Context, name string) (FoodInfo, error)
	// GetNutrientValue returns an Unknown/0 reading when no row exists.
	GetNutrientValue(ctx context.Context, foodCode int, code NutrientCode) (Reading, error)
}

// FoodDataStore is the relational collaborator of the meal engine.
type FoodDataStore interface {
	NutrientSource
	GetNutrientCatalog(ctx context.Context) ([]NutrientDefinition, error)
	InsertComposite(ctx context.Context, c Composite) error
	GetCompositeParts(ctx context.Context, name string, currentQuantity float64) ([]Part, error)
	GetPortionSnapshot(ctx context.Context, portionID string) (PortionSnapshot, error)
	DeleteFood(ctx context.Context, name string) error
}

// PortionRecord is a meal snapshot to be saved.
type PortionRecord struct {
	Name    string
	Patient string
	Date    time.Time
	NbDays  int
	Foods   []PortionFood
}

// PortionFood is one food of a PortionRecord with its scaled values.
type PortionFood struct {
	Name     string
	Code     int
	Quantity float64
	Values   []NutrientValue
}

// PortionSummary lists a saved portion.
type PortionSummary struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Patient string    `json:"patient"`
	Date    time.Time `json:"date"`
	NbDays  int       `json:"nb_days"`
}

// Criterion filters foods by a per-100g nutrient value.
type Criterion struct {
	Code  NutrientCode `json:"code"`
	Op    string       `json:"op"`
	Value float64      `json:"value"`
}
