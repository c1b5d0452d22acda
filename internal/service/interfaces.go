package service

import (
	"context"
	"time"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// MealStore is the store as seen by the meal service
type MealStore interface {
	nutrition.FoodDataStore
	SavePortion(ctx context.Context, rec nutrition.PortionRecord) (string, error)
	GetPathologyNutrients(ctx context.Context, name string) ([]nutrition.NutrientCode, error)
}

// CatalogStore lists what the store holds
type CatalogStore interface {
	GetNutrientCatalog(ctx context.Context) ([]nutrition.NutrientDefinition, error)
	ListFamilies(ctx context.Context) ([]string, error)
	ListFoods(ctx context.Context, family string) ([]nutrition.FoodInfo, error)
	ListPortions(ctx context.Context, patient string) ([]nutrition.PortionSummary, error)
}

// FoodFinder runs nutrient threshold searches
type FoodFinder interface {
	FindFoods(ctx context.Context, criteria []nutrition.Criterion) ([]nutrition.FoodInfo, error)
}

// IMealService defines the working meal operations used by the API
type IMealService interface {
	AddFood(ctx context.Context, name, quantityText string, add bool) error
	ChangeTrackedNutrients(ctx context.Context, codes []nutrition.NutrientCode) error
	TrackPathology(ctx context.Context, name string) error
	RemoveFoods(ctx context.Context, names []string, alsoDelete bool) error
	GroupFoods(ctx context.Context, family, product string, names []string) error
	UngroupFood(ctx context.Context, name string) error
	LoadPortion(ctx context.Context, portionID string) error
	SetDays(n int) error
	Clear() error
	SavePortion(ctx context.Context, name, patient string, date time.Time) (string, error)
	View(ctx context.Context) (MealView, error)
	Subscribe(l Listener) func()
	Draft() MealDraft
	Restore(ctx context.Context, d MealDraft) error
}

// IAuthService defines the operator login used by the API
type IAuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// IDraftService defines the interface for meal draft storage
type IDraftService interface {
	Save(ctx context.Context, draft *MealDraft) error
	Get(ctx context.Context, id string) (*MealDraft, error)
	Delete(ctx context.Context, id string) error
}

// ISearchService defines the interface for background food searches
type ISearchService interface {
	Submit(criteria []nutrition.Criterion) uint64
	Latest() (SearchResult, bool)
}

// IExportService defines the interface for report exports
type IExportService interface {
	Upload(ctx context.Context, key string, report *Report) (string, error)
}

var (
	_ IAuthService   = (*AuthService)(nil)
	_ IMealService   = (*MealService)(nil)
	_ IDraftService  = (*DraftService)(nil)
	_ ISearchService = (*SearchService)(nil)
	_ IExportService = (*ExportService)(nil)
)
