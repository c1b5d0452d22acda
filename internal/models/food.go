package models

import (
	"time"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// Nutrient is one column of the composition table.
type Nutrient struct {
	Code      int    `gorm:"primaryKey;autoIncrement:false" json:"code"`
	Name      string `gorm:"size:255;not null" json:"name"`
	ShortName string `gorm:"size:64;not null" json:"short_name"`
	Unit      string `gorm:"size:16" json:"unit"`
}

func (Nutrient) TableName() string {
	return "nutrients"
}

// Family groups foods by category.
type Family struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

func (Family) TableName() string {
	return "families"
}

// Food is a row of the composition table, imported or created as a group.
type Food struct {
	Code       int       `gorm:"primaryKey;autoIncrement:false" json:"code"`
	Name       string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	FamilyID   uint      `gorm:"not null;index" json:"family_id"`
	Family     Family    `gorm:"foreignKey:FamilyID" json:"family"`
	Source     string    `gorm:"size:64" json:"source"`
	DateSource string    `gorm:"size:32" json:"date_source"`
	URLSource  string    `gorm:"size:255" json:"url_source"`
	IsGroup    bool      `gorm:"not null;default:false" json:"is_group"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Food) TableName() string {
	return "foods"
}

// FoodNutrient is a per-100g value with its qualifier.
type FoodNutrient struct {
	FoodCode     int                 `gorm:"primaryKey;autoIncrement:false" json:"food_code"`
	NutrientCode int                 `gorm:"primaryKey;autoIncrement:false;index" json:"nutrient_code"`
	Value        float64             `gorm:"not null;default:0" json:"value"`
	Qualifier    nutrition.Qualifier `gorm:"type:varchar(1);not null" json:"qualifier"`
}

func (FoodNutrient) TableName() string {
	return "food_nutrients"
}

// CompositePart links a group food to one of its constituents.
type CompositePart struct {
	ID         uint    `gorm:"primarykey" json:"id"`
	GroupCode  int     `gorm:"not null;index" json:"group_code"`
	PartCode   int     `gorm:"not null;index" json:"part_code"`
	Percentage float64 `gorm:"not null" json:"percentage"`
}

func (CompositePart) TableName() string {
	return "composite_parts"
}
