package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// Portion is a saved meal.
type Portion struct {
	ID        uuid.UUID     `gorm:"type:varchar(36);primarykey" json:"id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	Patient   string        `gorm:"size:255;index" json:"patient"`
	Date      time.Time     `gorm:"not null" json:"date"`
	NbDays    int           `gorm:"not null;default:1" json:"nb_days"`
	Items     []PortionItem `gorm:"foreignKey:PortionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time     `json:"created_at"`
}

func (Portion) TableName() string {
	return "portions"
}

// PortionItem is one food of a portion.
type PortionItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	PortionID uuid.UUID      `gorm:"type:varchar(36);not null;index" json:"portion_id"`
	FoodCode  int            `gorm:"not null;index" json:"food_code"`
	Quantity  float64        `gorm:"not null" json:"quantity"`
	Values    []PortionValue `gorm:"foreignKey:PortionItemID;constraint:OnDelete:CASCADE" json:"values"`
}

func (PortionItem) TableName() string {
	return "portion_items"
}

// PortionValue is a scaled nutrient value as it was when the portion was saved.
type PortionValue struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	PortionItemID uint                `gorm:"not null;index" json:"portion_item_id"`
	NutrientCode  int                 `gorm:"not null" json:"nutrient_code"`
	Value         float64             `gorm:"not null" json:"value"`
	Qualifier     nutrition.Qualifier `gorm:"type:varchar(1);not null" json:"qualifier"`
}

func (PortionValue) TableName() string {
	return "portion_values"
}

// Pathology names a set of nutrients to watch for a patient.
type Pathology struct {
	ID        uint                `gorm:"primarykey" json:"id"`
	Name      string              `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Nutrients []PathologyNutrient `gorm:"foreignKey:PathologyID;constraint:OnDelete:CASCADE" json:"nutrients"`
}

func (Pathology) TableName() string {
	return "pathologies"
}

// PathologyNutrient links a pathology to a nutrient code.
type PathologyNutrient struct {
	PathologyID  uint `gorm:"primaryKey;autoIncrement:false" json:"pathology_id"`
	NutrientCode int  `gorm:"primaryKey;autoIncrement:false" json:"nutrient_code"`
}

func (PathologyNutrient) TableName() string {
	return "pathology_nutrients"
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&Nutrient{},
		&Family{},
		&Food{},
		&FoodNutrient{},
		&CompositePart{},
		&Portion{},
		&PortionItem{},
		&PortionValue{},
		&Pathology{},
		&PathologyNutrient{},
		&Operator{},
	}
}
