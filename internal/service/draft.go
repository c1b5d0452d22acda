package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// DraftTTL is how long an unsaved meal is kept.
const DraftTTL = 24 * time.Hour

var ErrDraftNotFound = errors.New("draft not found")

// DraftFood is one food of a draft.
type DraftFood struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// MealDraft is an unsaved meal, enough to rebuild it from the store.
type MealDraft struct {
	ID        string                   `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Foods     []DraftFood              `json:"foods"`
	Tracked   []nutrition.NutrientCode `json:"tracked"`
	Days      int                      `json:"days"`
}

// RedisClient is the subset of the redis client used for drafts
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DraftService keeps meal drafts in Redis
type DraftService struct {
	redis RedisClient
}

// NewDraftService creates a new DraftService instance
func NewDraftService(client RedisClient) *DraftService {
	return &DraftService{redis: client}
}

func draftKey(id string) string {
	return fmt.Sprintf("meal:draft:%s", id)
}

// Save stores a draft, assigning an id on first save
func (s *DraftService) Save(ctx context.Context, draft *MealDraft) error {
	now := time.Now()
	if draft.ID == "" {
		draft.ID = uuid.New().String()
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	if err := s.redis.Set(ctx, draftKey(draft.ID), data, DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to save draft to Redis: %w", err)
	}
	return nil
}

// Get retrieves a draft
func (s *DraftService) Get(ctx context.Context, id string) (*MealDraft, error) {
	data, err := s.redis.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
		}
		return nil, fmt.Errorf("failed to get draft from Redis: %w", err)
	}

	var draft MealDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// Delete removes a draft
func (s *DraftService) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from Redis: %w", err)
	}
	return nil
}

// Draft captures the meal as a draft
func (s *MealService) Draft() MealDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := MealDraft{
		Tracked: append([]nutrition.NutrientCode(nil), s.tracked...),
		Days:    s.nbDays,
	}
	for _, e := range s.entries {
		d.Foods = append(d.Foods, DraftFood{Name: e.Name(), Quantity: e.Quantity})
	}
	return d
}

// Restore replaces the meal with a draft, reloading every food from the store
func (s *MealService) Restore(ctx context.Context, d MealDraft) error {
	const op = "restore draft"
	return s.apply(op, func() ([]Event, error) {
		if d.Days < 1 {
			return nil, nutrition.UserErrorf(op, "%w: %d", nutrition.ErrInvalidDays, d.Days)
		}
		tracked := union(s.special, d.Tracked)

		entries := make([]*nutrition.FoodEntry, 0, len(d.Foods))
		names := make([]string, 0, len(d.Foods))
		for _, f := range d.Foods {
			if f.Quantity < 0 || math.IsNaN(f.Quantity) || math.IsInf(f.Quantity, 0) {
				return nil, nutrition.UserErrorf(op, "%w: %v", nutrition.ErrInvalidQuantity, f.Quantity)
			}
			e, err := s.newEntry(ctx, f.Name, f.Quantity, tracked)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			names = append(names, f.Name)
		}

		if err := s.commit(entries); err != nil {
			return nil, err
		}
		s.tracked = tracked
		s.nbDays = d.Days
		return []Event{
			{Kind: FoodSetChanged, Names: names},
			{Kind: NutrientSetChanged},
			{Kind: DayCountChanged},
		}, nil
	})
}
