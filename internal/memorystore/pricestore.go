package memorystore

import (
	"sync"
)

// PriceStore keeps a bounded, oldest-first series of recent close prices and
// a parallel volume series per instrument. Appends for one instrument are
// serialized by a per-instrument mutex; reads copy so concurrent strategy
// evaluations observe a consistent snapshot.
type PriceStore struct {
	globalMu sync.RWMutex
	window   int
	data     map[string]*instrumentSeries
}

type instrumentSeries struct {
	mu      sync.Mutex
	prices  []float64
	volumes []int64
}

// NewPriceStore creates a store trimming each series to the given window.
func NewPriceStore(window int) *PriceStore {
	if window <= 0 {
		window = 200
	}
	return &PriceStore{
		window: window,
		data:   make(map[string]*instrumentSeries),
	}
}

// Append records the latest tick for an instrument, trimming to the window.
func (s *PriceStore) Append(code string, price float64, volume int64) {
	// Fast path: lock per-instrument series only
	s.globalMu.RLock()
	series, ok := s.data[code]
	s.globalMu.RUnlock()

	if !ok {
		// Need to initialize new instrument series (exclusive lock)
		s.globalMu.Lock()
		if series, ok = s.data[code]; !ok {
			series = &instrumentSeries{}
			s.data[code] = series
		}
		s.globalMu.Unlock()
	}

	series.mu.Lock()
	series.prices = append(series.prices, price)
	series.volumes = append(series.volumes, volume)
	if len(series.prices) > s.window {
		over := len(series.prices) - s.window
		series.prices = series.prices[over:]
		series.volumes = series.volumes[over:]
	}
	series.mu.Unlock()
}

// RecentPrices returns up to n most recent prices, oldest-first.
// n <= 0 returns the whole window.
func (s *PriceStore) RecentPrices(code string, n int) []float64 {
	s.globalMu.RLock()
	series, ok := s.data[code]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	series.mu.Lock()
	defer series.mu.Unlock()

	return copyTail(series.prices, n)
}

// RecentVolumes returns up to n most recent volumes, oldest-first.
func (s *PriceStore) RecentVolumes(code string, n int) []int64 {
	s.globalMu.RLock()
	series, ok := s.data[code]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	series.mu.Lock()
	defer series.mu.Unlock()

	return copyTail(series.volumes, n)
}

// Len reports how many points are stored for an instrument.
func (s *PriceStore) Len(code string) int {
	s.globalMu.RLock()
	series, ok := s.data[code]
	s.globalMu.RUnlock()
	if !ok {
		return 0
	}

	series.mu.Lock()
	defer series.mu.Unlock()
	return len(series.prices)
}

func copyTail[T any](in []T, n int) []T {
	if n <= 0 || n > len(in) {
		n = len(in)
	}
	out := make([]T, n)
	copy(out, in[len(in)-n:])
	return out
}
