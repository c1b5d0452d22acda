package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// SearchResult is the outcome of one submitted search.
type SearchResult struct {
	Seq      uint64                `json:"seq"`
	Criteria []nutrition.Criterion `json:"criteria"`
	Foods    []nutrition.FoodInfo  `json:"foods"`
	Err      error                 `json:"-"`
	Duration time.Duration         `json:"duration"`
}

// SearchService runs food searches in the background. A new search cancels
// the one in flight and results of superseded searches are dropped.
type SearchService struct {
	finder  FoodFinder
	results chan SearchResult

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	latest *SearchResult
	closed bool
	wg     sync.WaitGroup
}

// NewSearchService creates a new SearchService instance
func NewSearchService(finder FoodFinder) *SearchService {
	return &SearchService{
		finder:  finder,
		results: make(chan SearchResult, 1),
	}
}

// Results delivers the result of the latest search. Only the newest
// undelivered result is buffered.
func (s *SearchService) Results() <-chan SearchResult {
	return s.results
}

// Submit starts a search and returns its sequence number
func (s *SearchService) Submit(criteria []nutrition.Criterion) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.seq
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	criteria = append([]nutrition.Criterion(nil), criteria...)
	s.wg.Add(1)
	go s.run(ctx, seq, criteria)
	return seq
}

func (s *SearchService) run(ctx context.Context, seq uint64, criteria []nutrition.Criterion) {
	defer s.wg.Done()
	start := time.Now()
	foods, err := s.finder.FindFoods(ctx, criteria)
	res := SearchResult{Seq: seq, Criteria: criteria, Foods: foods, Err: err, Duration: time.Since(start)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || s.closed {
		log.Printf("[search] dropping stale result %d", seq)
		return
	}
	if err != nil {
		log.Printf("[search] search %d failed: %v", seq, err)
	}
	s.latest = &res

	// keep only the newest result in the buffer
	select {
	case <-s.results:
	default:
	}
	s.results <- res
}

// Latest returns the most recent completed search
func (s *SearchService) Latest() (SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return SearchResult{}, false
	}
	return *s.latest, true
}

// Close cancels the running search and waits for it to finish
func (s *SearchService) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
