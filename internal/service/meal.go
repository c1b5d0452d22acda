package service

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// EventKind names a change of the working meal.
type EventKind string

const (
	FoodSetChanged     EventKind = "food-set-changed"
	NutrientSetChanged EventKind = "nutrient-set-changed"
	FoodDeleted        EventKind = "food-deleted"
	GroupCreated       EventKind = "group-created"
	GroupDissolved     EventKind = "group-dissolved"
	PortionLoaded      EventKind = "portion-loaded"
	DayCountChanged    EventKind = "day-count-changed"
)

// Event is pushed to listeners after a successful mutation.
type Event struct {
	Kind  EventKind `json:"kind"`
	Names []string  `json:"names,omitempty"`
}

// Listener receives meal events. It is called outside the meal lock and may
// read the meal back.
type Listener func(Event)

// store errors that come from a user choice rather than a broken database
var userFacingStoreErrors = []error{
	nutrition.ErrFoodNotFound,
	nutrition.ErrFoodExists,
	nutrition.ErrFoodReferenced,
	nutrition.ErrPortionNotFound,
	nutrition.ErrNotComposite,
	nutrition.ErrPathologyNotFound,
}

// MealService is the working meal: its food entries, the tracked nutrients,
// the day count and the aggregated total line.
type MealService struct {
	store  MealStore
	engine config.EngineConfig

	reducer *nutrition.Reducer
	supply  []nutrition.EnergySupply
	special []nutrition.NutrientCode

	mu      sync.Mutex
	entries []*nutrition.FoodEntry
	tracked []nutrition.NutrientCode
	total   *nutrition.MealAggregator
	nbDays  int

	listeners map[int]Listener
	nextID    int
}

// NewMealService creates an empty meal tracking the special and default codes
func NewMealService(store MealStore, engine config.EngineConfig) (*MealService, error) {
	if err := engine.Validate(); err != nil {
		return nil, err
	}
	reducer, err := engine.Reducer()
	if err != nil {
		return nil, err
	}

	special := engine.SpecialCodes()
	return &MealService{
		store:     store,
		engine:    engine,
		reducer:   reducer,
		supply:    engine.Supply(),
		special:   special,
		tracked:   union(special, engine.DefaultTrackedCodes()),
		total:     nutrition.NewMealAggregator(reducer, engine.Precision),
		nbDays:    1,
		listeners: map[int]Listener{},
	}, nil
}

// Subscribe registers l and returns a function removing it
func (s *MealService) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// apply runs fn under the lock and, on success, notifies listeners once the
// lock is released. Errors leave the meal untouched.
func (s *MealService) apply(op string, fn func() ([]Event, error)) error {
	s.mu.Lock()
	events, err := fn()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if err != nil {
		err = classify(op, err)
		if nutrition.IsInternalError(err) {
			logInternal(err)
		}
		return err
	}
	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
	return nil
}

// classify maps any failure onto one of the two error kinds
func classify(op string, err error) error {
	if nutrition.IsUserError(err) || nutrition.IsInternalError(err) {
		return err
	}
	for _, target := range userFacingStoreErrors {
		if errors.Is(err, target) {
			return &nutrition.UserError{Op: op, Err: err}
		}
	}
	return &nutrition.InternalError{Op: op, Err: err}
}

func logInternal(err error) {
	log.Printf("[meal] %v", err)
}

// recompute aggregates entries into a new total line, leaving the meal as is
func (s *MealService) recompute(entries []*nutrition.FoodEntry) (*nutrition.MealAggregator, error) {
	total := nutrition.NewMealAggregator(s.reducer, s.engine.Precision)
	if err := total.Recompute(entries); err != nil {
		return nil, err
	}
	return total, nil
}

func (s *MealService) install(entries []*nutrition.FoodEntry, total *nutrition.MealAggregator) {
	s.entries = entries
	s.total = total
}

// commit recomputes the total over entries and installs them only if that
// succeeds.
func (s *MealService) commit(entries []*nutrition.FoodEntry) error {
	total, err := s.recompute(entries)
	if err != nil {
		return err
	}
	s.install(entries, total)
	return nil
}

func (s *MealService) index(name string) int {
	for i, e := range s.entries {
		if e.Name() == name {
			return i
		}
	}
	return -1
}

func (s *MealService) newEntry(ctx context.Context, name string, quantity float64, codes []nutrition.NutrientCode) (*nutrition.FoodEntry, error) {
	return nutrition.NewFoodEntry(ctx, s.store, name, quantity, codes, s.engine.QuantityEpsilon)
}

func parseQuantity(op, text string) (float64, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || q < 0 || math.IsInf(q, 0) || math.IsNaN(q) {
		return 0, nutrition.UserErrorf(op, "%w: %q", nutrition.ErrInvalidQuantity, text)
	}
	return q, nil
}

// AddFood adds name to the meal or, if present, sets (or with add, increases)
// its quantity
func (s *MealService) AddFood(ctx context.Context, name, quantityText string, add bool) error {
	const op = "add food"
	name = strings.TrimSpace(name)
	return s.apply(op, func() ([]Event, error) {
		if name == "" {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrEmptyFoodName)
		}
		quantity, err := parseQuantity(op, quantityText)
		if err != nil {
			return nil, err
		}

		entries := append([]*nutrition.FoodEntry(nil), s.entries...)
		if i := s.index(name); i >= 0 {
			e := entries[i].Clone()
			e.UpdateQuantity(quantity, add)
			entries[i] = e
		} else {
			e, err := s.newEntry(ctx, name, quantity, s.tracked)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if err := s.commit(entries); err != nil {
			return nil, err
		}
		return []Event{{Kind: FoodSetChanged, Names: []string{name}}}, nil
	})
}

// ChangeTrackedNutrients sets the tracked nutrients to codes plus the special
// codes, which can never be removed
func (s *MealService) ChangeTrackedNutrients(ctx context.Context, codes []nutrition.NutrientCode) error {
	const op = "change nutrients"
	return s.apply(op, func() ([]Event, error) {
		if err := s.changeTracked(ctx, union(s.special, codes)); err != nil {
			return nil, err
		}
		return []Event{{Kind: NutrientSetChanged}}, nil
	})
}

// TrackPathology adds the nutrients watched for a pathology
func (s *MealService) TrackPathology(ctx context.Context, name string) error {
	const op = "track pathology"
	return s.apply(op, func() ([]Event, error) {
		codes, err := s.store.GetPathologyNutrients(ctx, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if err := s.changeTracked(ctx, union(s.tracked, codes)); err != nil {
			return nil, err
		}
		return []Event{{Kind: NutrientSetChanged, Names: []string{name}}}, nil
	})
}

func (s *MealService) changeTracked(ctx context.Context, next []nutrition.NutrientCode) error {
	added := difference(next, s.tracked)
	removed := difference(s.tracked, next)

	entries := make([]*nutrition.FoodEntry, len(s.entries))
	for i, e := range s.entries {
		c := e.Clone()
		c.RemoveTrackedNutrients(removed)
		if err := c.AddTrackedNutrients(ctx, s.store, added); err != nil {
			return err
		}
		entries[i] = c
	}
	if err := s.commit(entries); err != nil {
		return err
	}
	s.tracked = next
	return nil
}

// RemoveFoods drops names from the meal. With alsoDelete the single named
// food is also deleted from the store, once the remaining meal has been
// totalled.
func (s *MealService) RemoveFoods(ctx context.Context, names []string, alsoDelete bool) error {
	const op = "remove foods"
	return s.apply(op, func() ([]Event, error) {
		if len(names) == 0 {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrNotEnoughFoods)
		}
		if alsoDelete && len(names) != 1 {
			return nil, nutrition.InternalErrorf(op, "store deletion needs exactly one food, got %d", len(names))
		}
		drop := map[string]bool{}
		for _, name := range names {
			if s.index(name) < 0 {
				return nil, nutrition.InternalErrorf(op, "%w: %s", nutrition.ErrFoodNotInMeal, name)
			}
			drop[name] = true
		}

		entries := make([]*nutrition.FoodEntry, 0, len(s.entries))
		for _, e := range s.entries {
			if !drop[e.Name()] {
				entries = append(entries, e)
			}
		}
		total, err := s.recompute(entries)
		if err != nil {
			return nil, err
		}
		if alsoDelete {
			if err := s.store.DeleteFood(ctx, names[0]); err != nil {
				return nil, err
			}
		}
		s.install(entries, total)

		events := []Event{{Kind: FoodSetChanged, Names: names}}
		if alsoDelete {
			events = append(events, Event{Kind: FoodDeleted, Names: names})
		}
		return events, nil
	})
}

// GroupFoods freezes the named foods into a new group food stored with a
// per-100g profile over the whole nutrient catalog, and replaces them in the
// meal with one line of the group.
func (s *MealService) GroupFoods(ctx context.Context, family, product string, names []string) error {
	const op = "group foods"
	family = strings.TrimSpace(family)
	product = strings.TrimSpace(product)
	return s.apply(op, func() ([]Event, error) {
		if product == "" {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrEmptyFoodName)
		}
		if family == "" {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrEmptyFamily)
		}
		names = distinct(names)
		if len(names) < 2 {
			return nil, nutrition.UserErrorf(op, "%w: a group needs at least 2 foods", nutrition.ErrNotEnoughFoods)
		}

		selected := map[string]*nutrition.FoodEntry{}
		for _, name := range names {
			i := s.index(name)
			if i < 0 {
				return nil, nutrition.InternalErrorf(op, "%w: %s", nutrition.ErrFoodNotInMeal, name)
			}
			selected[name] = s.entries[i]
		}

		catalog, err := s.store.GetNutrientCatalog(ctx)
		if err != nil {
			return nil, err
		}
		all := make([]nutrition.NutrientCode, len(catalog))
		for i, def := range catalog {
			all[i] = def.Code
		}

		full := make([]*nutrition.FoodEntry, 0, len(names))
		parts := make([]nutrition.Part, 0, len(names))
		for _, name := range names {
			e := selected[name]
			fe, err := s.newEntry(ctx, name, e.Quantity, all)
			if err != nil {
				return nil, err
			}
			full = append(full, fe)
			parts = append(parts, nutrition.Part{Name: name, Quantity: e.Quantity})
		}

		agg := nutrition.NewMealAggregator(s.reducer, s.engine.Precision)
		if err := agg.Recompute(full); err != nil {
			return nil, err
		}
		if agg.Quantity() <= 0 {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrZeroQuantity)
		}
		profile, err := agg.NormalizedTo100g()
		if err != nil {
			return nil, err
		}

		err = s.store.InsertComposite(ctx, nutrition.Composite{
			Name:          product,
			FamilyName:    family,
			TotalQuantity: agg.Quantity(),
			Totals:        profile.Totals(),
			Parts:         parts,
		})
		if err != nil {
			return nil, &nutrition.UserError{Op: op, Err: err}
		}

		entries, total, err := s.withGroup(ctx, product, agg.Quantity(), selected)
		if err != nil {
			// the meal is unchanged, so the stored group must go too
			if derr := s.store.DeleteFood(ctx, product); derr != nil {
				log.Printf("[meal] cannot remove group %q after failed grouping: %v", product, derr)
			}
			return nil, nutrition.InternalErrorf(op, "group %q not added to the meal: %w", product, err)
		}
		s.install(entries, total)
		log.Printf("[meal] grouped %d foods into %q", len(names), product)
		return []Event{{Kind: GroupCreated, Names: append([]string{product}, names...)}}, nil
	})
}

// withGroup builds the meal with the selected entries replaced by one line of
// the stored group product, and its total.
func (s *MealService) withGroup(ctx context.Context, product string, quantity float64,
	selected map[string]*nutrition.FoodEntry) ([]*nutrition.FoodEntry, *nutrition.MealAggregator, error) {
	group, err := s.newEntry(ctx, product, quantity, s.tracked)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]*nutrition.FoodEntry, 0, len(s.entries)-len(selected)+1)
	for _, e := range s.entries {
		if selected[e.Name()] == nil {
			entries = append(entries, e)
		}
	}
	entries = append(entries, group)
	total, err := s.recompute(entries)
	if err != nil {
		return nil, nil, err
	}
	return entries, total, nil
}

// UngroupFood replaces a group line by its parts at the group's quantity.
// Parts already in the meal have their quantity increased.
func (s *MealService) UngroupFood(ctx context.Context, name string) error {
	const op = "ungroup food"
	name = strings.TrimSpace(name)
	return s.apply(op, func() ([]Event, error) {
		if name == "" {
			return nil, nutrition.UserErrorf(op, "%w: select a group", nutrition.ErrNotEnoughFoods)
		}
		i := s.index(name)
		if i < 0 {
			return nil, nutrition.InternalErrorf(op, "%w: %s", nutrition.ErrFoodNotInMeal, name)
		}

		parts, err := s.store.GetCompositeParts(ctx, name, s.entries[i].Quantity)
		if err != nil {
			return nil, err
		}

		entries := make([]*nutrition.FoodEntry, 0, len(s.entries)+len(parts))
		for _, e := range s.entries {
			if e.Name() != name {
				entries = append(entries, e)
			}
		}
		for _, p := range parts {
			merged := false
			for j, e := range entries {
				if e.Name() == p.Name {
					c := e.Clone()
					c.UpdateQuantity(p.Quantity, true)
					entries[j] = c
					merged = true
					break
				}
			}
			if merged {
				continue
			}
			e, err := s.newEntry(ctx, p.Name, p.Quantity, s.tracked)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if err := s.commit(entries); err != nil {
			return nil, err
		}
		return []Event{{Kind: GroupDissolved, Names: []string{name}}}, nil
	})
}

// LoadPortion replaces the meal with a saved portion. Stored values are used
// as they are; tracked codes missing from the portion become Unknown.
func (s *MealService) LoadPortion(ctx context.Context, portionID string) error {
	const op = "load portion"
	return s.apply(op, func() ([]Event, error) {
		snap, err := s.store.GetPortionSnapshot(ctx, portionID)
		if err != nil {
			return nil, err
		}

		type pending struct {
			info     nutrition.FoodInfo
			quantity float64
			values   []nutrition.NutrientValue
		}
		var order []string
		foods := map[string]*pending{}
		var codes []nutrition.NutrientCode
		for _, row := range snap.Rows {
			p, ok := foods[row.FoodName]
			if !ok {
				p = &pending{
					info: nutrition.FoodInfo{
						Code:       row.FoodCode,
						Name:       row.FoodName,
						FamilyName: row.FamilyName,
						Source:     row.Source,
						DateSource: row.DateSource,
						URLSource:  row.URLSource,
					},
					quantity: row.Quantity,
				}
				foods[row.FoodName] = p
				order = append(order, row.FoodName)
			}
			p.values = append(p.values, nutrition.NutrientValue{
				Code:      row.NutrientCode,
				Qualifier: row.Qualifier,
				Quantity:  row.Value,
			})
			codes = append(codes, row.NutrientCode)
		}

		tracked := union(s.tracked, codes)
		entries := make([]*nutrition.FoodEntry, 0, len(order))
		for _, name := range order {
			p := foods[name]
			e := nutrition.NewFoodEntryFromSnapshot(p.info, p.quantity, p.values, s.engine.QuantityEpsilon)
			e.AddMissingNutrients(tracked)
			entries = append(entries, e)
		}

		if err := s.commit(entries); err != nil {
			return nil, err
		}
		s.tracked = tracked
		if snap.NbDays >= 1 {
			s.nbDays = snap.NbDays
		} else {
			s.nbDays = 1
		}
		return []Event{{Kind: PortionLoaded, Names: order}}, nil
	})
}

// SetDays sets the number of days the meal covers
func (s *MealService) SetDays(n int) error {
	const op = "set days"
	return s.apply(op, func() ([]Event, error) {
		if n < 1 {
			return nil, nutrition.UserErrorf(op, "%w: %d", nutrition.ErrInvalidDays, n)
		}
		s.nbDays = n
		return []Event{{Kind: DayCountChanged}}, nil
	})
}

// Clear empties the meal
func (s *MealService) Clear() error {
	return s.apply("clear", func() ([]Event, error) {
		if err := s.commit(nil); err != nil {
			return nil, err
		}
		return []Event{{Kind: FoodSetChanged}}, nil
	})
}

// SavePortion stores the meal with its current values and returns the portion id
func (s *MealService) SavePortion(ctx context.Context, name, patient string, date time.Time) (string, error) {
	const op = "save portion"
	name = strings.TrimSpace(name)
	var id string
	err := s.apply(op, func() ([]Event, error) {
		if name == "" {
			return nil, nutrition.UserErrorf(op, "portion name is required")
		}
		if len(s.entries) == 0 {
			return nil, nutrition.UserErrorf(op, "%w", nutrition.ErrEmptyMeal)
		}

		rec := nutrition.PortionRecord{
			Name:    name,
			Patient: strings.TrimSpace(patient),
			Date:    date,
			NbDays:  s.nbDays,
		}
		for _, e := range s.entries {
			rec.Foods = append(rec.Foods, nutrition.PortionFood{
				Name:     e.Name(),
				Code:     e.Info.Code,
				Quantity: e.Quantity,
				Values:   e.Values(),
			})
		}

		var err error
		id, err = s.store.SavePortion(ctx, rec)
		return nil, err
	})
	return id, err
}

// Names returns the foods of the meal in insertion order
func (s *MealService) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Name()
	}
	return out
}

// Entry returns a copy of the named food line
func (s *MealService) Entry(name string) (*nutrition.FoodEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return nil, false
	}
	return s.entries[i].Clone(), true
}

// Total returns the aggregate of code over the whole meal
func (s *MealService) Total(code nutrition.NutrientCode) (nutrition.Total, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.Total(code)
}

// Quantity is the total weight of the meal in grams
func (s *MealService) Quantity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.Quantity()
}

// Tracked returns the tracked nutrient codes
func (s *MealService) Tracked() []nutrition.NutrientCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nutrition.NutrientCode(nil), s.tracked...)
}

// Days returns the number of days the meal covers
func (s *MealService) Days() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nbDays
}

func union(a, b []nutrition.NutrientCode) []nutrition.NutrientCode {
	seen := make(map[nutrition.NutrientCode]bool, len(a)+len(b))
	out := make([]nutrition.NutrientCode, 0, len(a)+len(b))
	for _, list := range [][]nutrition.NutrientCode{a, b} {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// difference returns the codes of a not in b
func difference(a, b []nutrition.NutrientCode) []nutrition.NutrientCode {
	in := make(map[nutrition.NutrientCode]bool, len(b))
	for _, c := range b {
		in[c] = true
	}
	var out []nutrition.NutrientCode
	for _, c := range a {
		if !in[c] {
			out = append(out, c)
		}
	}
	return out
}

func distinct(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
