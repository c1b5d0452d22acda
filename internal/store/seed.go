package store

import (
	"context"
	"fmt"

	"github.com/pageza/nutricalc/backend/internal/models"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// CreateNutrients upserts nutrient definitions.
func (s *GormStore) CreateNutrients(ctx context.Context, defs []nutrition.NutrientDefinition) error {
	for _, d := range defs {
		row := models.Nutrient{Code: int(d.Code), Name: d.Name, ShortName: d.ShortName, Unit: d.Unit}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("failed to save nutrient %d: %w", d.Code, err)
		}
	}
	return nil
}

// CreateFood inserts a table food with its per-100g readings.
func (s *GormStore) CreateFood(ctx context.Context, info nutrition.FoodInfo, readings map[nutrition.NutrientCode]nutrition.Reading) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.Model(&models.Food{}).Where("name = ? OR code = ?", info.Name, info.Code).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check food: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", nutrition.ErrFoodExists, info.Name)
	}

	family, err := s.family(tx, info.FamilyName)
	if err != nil {
		return err
	}
	food := models.Food{
		Code:       info.Code,
		Name:       info.Name,
		FamilyID:   family.ID,
		Source:     info.Source,
		DateSource: info.DateSource,
		URLSource:  info.URLSource,
	}
	if err := tx.Create(&food).Error; err != nil {
		return fmt.Errorf("failed to create food %q: %w", info.Name, err)
	}

	for code, r := range readings {
		value := r.Value
		if r.Qualifier == nutrition.Unknown {
			value = 0
		}
		row := models.FoodNutrient{FoodCode: info.Code, NutrientCode: int(code), Value: value, Qualifier: r.Qualifier}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to store nutrient %d of %q: %w", code, info.Name, err)
		}
	}

	return tx.Commit().Error
}

// CreatePathology stores a pathology and its watched nutrients.
func (s *GormStore) CreatePathology(ctx context.Context, name string, codes []nutrition.NutrientCode) error {
	p := models.Pathology{Name: name}
	for _, c := range codes {
		p.Nutrients = append(p.Nutrients, models.PathologyNutrient{NutrientCode: int(c)})
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return fmt.Errorf("failed to create pathology %q: %w", name, err)
	}
	return nil
}
