package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/nutricalc/backend/internal/models"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

const (
	// GroupSource marks foods created by grouping.
	GroupSource = "group"

	defaultSearchLimit = 200
)

var errInvalidOperator = errors.New("invalid comparison operator")

// GormStore is the relational FoodDataStore.
type GormStore struct {
	db *gorm.DB
}

// Ensure GormStore implements nutrition.FoodDataStore
var _ nutrition.FoodDataStore = (*GormStore)(nil)

// New creates a new GormStore instance
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func foodInfo(f models.Food) nutrition.FoodInfo {
	return nutrition.FoodInfo{
		Code:       f.Code,
		Name:       f.Name,
		FamilyName: f.Family.Name,
		Source:     f.Source,
		DateSource: f.DateSource,
		URLSource:  f.URLSource,
	}
}

func (s *GormStore) findFood(ctx context.Context, db *gorm.DB, name string) (models.Food, error) {
	var food models.Food
	if err := db.WithContext(ctx).Preload("Family").First(&food, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Food{}, fmt.Errorf("%w: %s", nutrition.ErrFoodNotFound, name)
		}
		return models.Food{}, fmt.Errorf("failed to get food %q: %w", name, err)
	}
	return food, nil
}

// GetFoodInfo retrieves a food's identity by name
func (s *GormStore) GetFoodInfo(ctx context.Context, name string) (nutrition.FoodInfo, error) {
	food, err := s.findFood(ctx, s.db, name)
	if err != nil {
		return nutrition.FoodInfo{}, err
	}
	return foodInfo(food), nil
}

// GetNutrientValue returns the per-100g value, or Unknown/0 when there is no row
func (s *GormStore) GetNutrientValue(ctx context.Context, foodCode int, code nutrition.NutrientCode) (nutrition.Reading, error) {
	var rows []models.FoodNutrient
	err := s.db.WithContext(ctx).
		Where("food_code = ? AND nutrient_code = ?", foodCode, int(code)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nutrition.Reading{}, fmt.Errorf("failed to get nutrient %d of food %d: %w", code, foodCode, err)
	}
	if len(rows) == 0 {
		return nutrition.Reading{Qualifier: nutrition.Unknown}, nil
	}
	r := nutrition.Reading{Value: rows[0].Value, Qualifier: rows[0].Qualifier}
	if r.Qualifier == nutrition.Unknown {
		r.Value = 0
	}
	return r, nil
}

// GetNutrientCatalog lists every nutrient ordered by code
func (s *GormStore) GetNutrientCatalog(ctx context.Context) ([]nutrition.NutrientDefinition, error) {
	var rows []models.Nutrient
	if err := s.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list nutrients: %w", err)
	}
	defs := make([]nutrition.NutrientDefinition, len(rows))
	for i, r := range rows {
		defs[i] = nutrition.NutrientDefinition{
			Code:      nutrition.NutrientCode(r.Code),
			Name:      r.Name,
			ShortName: r.ShortName,
			Unit:      r.Unit,
		}
	}
	return defs, nil
}

func (s *GormStore) family(tx *gorm.DB, name string) (models.Family, error) {
	family := models.Family{Name: name}
	if err := tx.Where("name = ?", name).FirstOrCreate(&family).Error; err != nil {
		return models.Family{}, fmt.Errorf("failed to get family %q: %w", name, err)
	}
	return family, nil
}

func nextFoodCode(tx *gorm.DB) (int, error) {
	var maxCode int
	if err := tx.Model(&models.Food{}).Select("COALESCE(MAX(code), 0)").Scan(&maxCode).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate food code: %w", err)
	}
	return maxCode + 1, nil
}

// InsertComposite persists a group food, its per-100g profile and its parts
// in one transaction
func (s *GormStore) InsertComposite(ctx context.Context, c nutrition.Composite) error {
	if c.TotalQuantity <= 0 {
		return fmt.Errorf("group %q: %w", c.Name, nutrition.ErrZeroQuantity)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Food{}).Where("name = ?", c.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check food name: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", nutrition.ErrFoodExists, c.Name)
		}

		family, err := s.family(tx, c.FamilyName)
		if err != nil {
			return err
		}
		code, err := nextFoodCode(tx)
		if err != nil {
			return err
		}

		food := models.Food{
			Code:       code,
			Name:       c.Name,
			FamilyID:   family.ID,
			Source:     GroupSource,
			DateSource: time.Now().Format("2006-01-02"),
			IsGroup:    true,
		}
		if err := tx.Create(&food).Error; err != nil {
			return fmt.Errorf("failed to create group %q: %w", c.Name, err)
		}

		values := make([]models.FoodNutrient, 0, len(c.Totals))
		for nc, t := range c.Totals {
			values = append(values, models.FoodNutrient{
				FoodCode:     code,
				NutrientCode: int(nc),
				Value:        t.Quantity,
				Qualifier:    t.Qualifier,
			})
		}
		if len(values) > 0 {
			if err := tx.Create(&values).Error; err != nil {
				return fmt.Errorf("failed to store group profile: %w", err)
			}
		}

		for _, p := range c.Parts {
			part, err := s.findFood(ctx, tx, p.Name)
			if err != nil {
				return err
			}
			row := models.CompositePart{
				GroupCode:  code,
				PartCode:   part.Code,
				Percentage: p.Quantity * 100 / c.TotalQuantity,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store group part %q: %w", p.Name, err)
			}
		}

		log.Printf("[store] created group %q (code %d, %d parts)", c.Name, code, len(c.Parts))
		return nil
	})
}

// GetCompositeParts returns the parts of a group in grams for currentQuantity
func (s *GormStore) GetCompositeParts(ctx context.Context, name string, currentQuantity float64) ([]nutrition.Part, error) {
	group, err := s.findFood(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if !group.IsGroup {
		return nil, fmt.Errorf("%w: %s", nutrition.ErrNotComposite, name)
	}

	var rows []struct {
		Name       string
		Percentage float64
	}
	err = s.db.WithContext(ctx).
		Table("composite_parts").
		Select("foods.name AS name, composite_parts.percentage AS percentage").
		Joins("JOIN foods ON foods.code = composite_parts.part_code").
		Where("composite_parts.group_code = ?", group.Code).
		Order("composite_parts.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get parts of %q: %w", name, err)
	}

	parts := make([]nutrition.Part, len(rows))
	for i, r := range rows {
		parts[i] = nutrition.Part{Name: r.Name, Quantity: r.Percentage * currentQuantity / 100}
	}
	return parts, nil
}

// DeleteFood removes a food that no group or portion refers to
func (s *GormStore) DeleteFood(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		food, err := s.findFood(ctx, tx, name)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.CompositePart{}).Where("part_code = ?", food.Code).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check group references: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s is part of %d group(s)", nutrition.ErrFoodReferenced, name, count)
		}
		if err := tx.Model(&models.PortionItem{}).Where("food_code = ?", food.Code).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check portion references: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s is in %d saved portion(s)", nutrition.ErrFoodReferenced, name, count)
		}

		if err := tx.Where("food_code = ?", food.Code).Delete(&models.FoodNutrient{}).Error; err != nil {
			return fmt.Errorf("failed to delete values of %q: %w", name, err)
		}
		if err := tx.Where("group_code = ?", food.Code).Delete(&models.CompositePart{}).Error; err != nil {
			return fmt.Errorf("failed to delete parts of %q: %w", name, err)
		}
		if err := tx.Delete(&models.Food{}, "code = ?", food.Code).Error; err != nil {
			return fmt.Errorf("failed to delete %q: %w", name, err)
		}
		log.Printf("[store] deleted food %q", name)
		return nil
	})
}

// SavePortion persists a meal snapshot and returns its id
func (s *GormStore) SavePortion(ctx context.Context, rec nutrition.PortionRecord) (string, error) {
	portion := models.Portion{
		ID:      uuid.New(),
		Name:    rec.Name,
		Patient: rec.Patient,
		Date:    rec.Date,
		NbDays:  rec.NbDays,
	}
	for _, f := range rec.Foods {
		item := models.PortionItem{FoodCode: f.Code, Quantity: f.Quantity}
		for _, v := range f.Values {
			item.Values = append(item.Values, models.PortionValue{
				NutrientCode: int(v.Code),
				Value:        v.Quantity,
				Qualifier:    v.Qualifier,
			})
		}
		portion.Items = append(portion.Items, item)
	}

	if err := s.db.WithContext(ctx).Create(&portion).Error; err != nil {
		return "", fmt.Errorf("failed to save portion %q: %w", rec.Name, err)
	}
	return portion.ID.String(), nil
}

// GetPortionSnapshot loads a saved portion as flat rows ordered by food then nutrient
func (s *GormStore) GetPortionSnapshot(ctx context.Context, portionID string) (nutrition.PortionSnapshot, error) {
	id, err := uuid.Parse(portionID)
	if err != nil {
		return nutrition.PortionSnapshot{}, fmt.Errorf("%w: %s", nutrition.ErrPortionNotFound, portionID)
	}

	var portion models.Portion
	err = s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("portion_items.id") }).
		Preload("Items.Values", func(db *gorm.DB) *gorm.DB { return db.Order("portion_values.nutrient_code") }).
		First(&portion, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nutrition.PortionSnapshot{}, fmt.Errorf("%w: %s", nutrition.ErrPortionNotFound, portionID)
		}
		return nutrition.PortionSnapshot{}, fmt.Errorf("failed to load portion: %w", err)
	}

	catalog, err := s.GetNutrientCatalog(ctx)
	if err != nil {
		return nutrition.PortionSnapshot{}, err
	}
	defs := make(map[nutrition.NutrientCode]nutrition.NutrientDefinition, len(catalog))
	for _, d := range catalog {
		defs[d.Code] = d
	}

	snap := nutrition.PortionSnapshot{NbDays: portion.NbDays}
	for _, item := range portion.Items {
		var food models.Food
		if err := s.db.WithContext(ctx).Preload("Family").First(&food, "code = ?", item.FoodCode).Error; err != nil {
			return nutrition.PortionSnapshot{}, fmt.Errorf("failed to load food %d of portion: %w", item.FoodCode, err)
		}
		for _, v := range item.Values {
			def := defs[nutrition.NutrientCode(v.NutrientCode)]
			snap.Rows = append(snap.Rows, nutrition.SnapshotRow{
				Quantity:         item.Quantity,
				FoodName:         food.Name,
				FoodCode:         food.Code,
				FamilyName:       food.Family.Name,
				Source:           food.Source,
				DateSource:       food.DateSource,
				URLSource:        food.URLSource,
				NutrientCode:     nutrition.NutrientCode(v.NutrientCode),
				NutrientName:     def.Name,
				NutrientShortcut: def.ShortName,
				Value:            v.Value,
				Qualifier:        v.Qualifier,
			})
		}
	}
	return snap, nil
}

// ListPortions returns saved portions, newest first, optionally for one patient
func (s *GormStore) ListPortions(ctx context.Context, patient string) ([]nutrition.PortionSummary, error) {
	query := s.db.WithContext(ctx).Order("date DESC")
	if patient != "" {
		query = query.Where("patient = ?", patient)
	}
	var rows []models.Portion
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list portions: %w", err)
	}
	out := make([]nutrition.PortionSummary, len(rows))
	for i, p := range rows {
		out[i] = nutrition.PortionSummary{ID: p.ID.String(), Name: p.Name, Patient: p.Patient, Date: p.Date, NbDays: p.NbDays}
	}
	return out, nil
}

// ListFamilies returns family names in alphabetical order
func (s *GormStore) ListFamilies(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.Family{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	return names, nil
}

// ListFoods returns foods, optionally restricted to one family
func (s *GormStore) ListFoods(ctx context.Context, family string) ([]nutrition.FoodInfo, error) {
	query := s.db.WithContext(ctx).Preload("Family").Order("foods.name")
	if family != "" {
		query = query.Joins("JOIN families ON families.id = foods.family_id").Where("families.name = ?", family)
	}
	var foods []models.Food
	if err := query.Find(&foods).Error; err != nil {
		return nil, fmt.Errorf("failed to list foods: %w", err)
	}
	out := make([]nutrition.FoodInfo, len(foods))
	for i, f := range foods {
		out[i] = foodInfo(f)
	}
	return out, nil
}

// GetPathologyNutrients returns the nutrient codes watched for a pathology
func (s *GormStore) GetPathologyNutrients(ctx context.Context, name string) ([]nutrition.NutrientCode, error) {
	var p models.Pathology
	if err := s.db.WithContext(ctx).Preload("Nutrients").First(&p, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", nutrition.ErrPathologyNotFound, name)
		}
		return nil, fmt.Errorf("failed to get pathology %q: %w", name, err)
	}
	codes := make([]nutrition.NutrientCode, len(p.Nutrients))
	for i, n := range p.Nutrients {
		codes[i] = nutrition.NutrientCode(n.NutrientCode)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes, nil
}

var operators = map[string]string{
	"<": "<", "<=": "<=", ">": ">", ">=": ">=", "=": "=",
}

// FindFoods returns foods whose known per-100g values satisfy every criterion
func (s *GormStore) FindFoods(ctx context.Context, criteria []nutrition.Criterion) ([]nutrition.FoodInfo, error) {
	query := s.db.WithContext(ctx).Preload("Family").Order("foods.name").Limit(defaultSearchLimit)
	for _, c := range criteria {
		op, ok := operators[strings.TrimSpace(c.Op)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errInvalidOperator, c.Op)
		}
		sub := s.db.Model(&models.FoodNutrient{}).
			Select("food_code").
			Where("nutrient_code = ? AND qualifier <> ? AND value "+op+" ?", int(c.Code), nutrition.Unknown, c.Value)
		query = query.Where("foods.code IN (?)", sub)
	}

	var foods []models.Food
	if err := query.Find(&foods).Error; err != nil {
		return nil, fmt.Errorf("failed to search foods: %w", err)
	}
	out := make([]nutrition.FoodInfo, len(foods))
	for i, f := range foods {
		out[i] = foodInfo(f)
	}
	return out, nil
}
