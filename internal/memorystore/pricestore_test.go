package memorystore

import (
	"sync"
	"testing"
)

func TestAppendAndTrim(t *testing.T) {
	store := NewPriceStore(3)
	for i := 0; i < 5; i++ {
		store.Append("005930", float64(100+i), int64(10+i))
	}

	prices := store.RecentPrices("005930", 0)
	if len(prices) != 3 {
		t.Fatalf("expected window of 3, got %d", len(prices))
	}
	if prices[0] != 102 || prices[2] != 104 {
		t.Errorf("expected oldest-first [102 103 104], got %v", prices)
	}

	volumes := store.RecentVolumes("005930", 0)
	if len(volumes) != 3 || volumes[2] != 14 {
		t.Errorf("expected parallel volume series, got %v", volumes)
	}
}

func TestRecentPricesLimit(t *testing.T) {
	store := NewPriceStore(10)
	for i := 0; i < 6; i++ {
		store.Append("000660", float64(i), 1)
	}

	got := store.RecentPrices("000660", 2)
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("expected last 2 prices [4 5], got %v", got)
	}
}

func TestUnknownInstrument(t *testing.T) {
	store := NewPriceStore(10)
	if got := store.RecentPrices("035720", 5); got != nil {
		t.Errorf("expected nil for unknown instrument, got %v", got)
	}
	if got := store.Len("035720"); got != 0 {
		t.Errorf("expected zero length, got %d", got)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	store := NewPriceStore(10)
	store.Append("005930", 100, 1)
	store.Append("005930", 101, 1)

	got := store.RecentPrices("005930", 0)
	got[0] = -1

	if again := store.RecentPrices("005930", 0); again[0] != 100 {
		t.Errorf("mutating a read slice must not affect the store, got %v", again)
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := NewPriceStore(1000)
	codes := []string{"005930", "000660", "035720"}

	var wg sync.WaitGroup
	for _, code := range codes {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					store.Append(code, float64(i), int64(i))
				}
			}(code)
		}
	}
	wg.Wait()

	for _, code := range codes {
		if got := store.Len(code); got != 400 {
			t.Errorf("expected 400 points for %s, got %d", code, got)
		}
	}
}
