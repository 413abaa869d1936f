package discovery

import (
	"sync"
	"testing"
)

func TestPriceCache_SetGet(t *testing.T) {
	cache := NewPriceCache()

	if _, ok := cache.Get("MintA"); ok {
		t.Fatal("expected miss for unseen asset")
	}

	cache.Set("MintA", 0.001)
	price, ok := cache.Get("MintA")
	if !ok || price != 0.001 {
		t.Errorf("expected 0.001, got %f ok=%v", price, ok)
	}

	// Latest write wins.
	cache.Set("MintA", 0.002)
	if price, _ := cache.Get("MintA"); price != 0.002 {
		t.Errorf("expected 0.002, got %f", price)
	}
}

func TestPriceCache_IgnoresInvalid(t *testing.T) {
	cache := NewPriceCache()

	cache.Set("", 1)
	cache.Set("MintA", 0)
	cache.Set("MintA", -1)

	if _, ok := cache.Get("MintA"); ok {
		t.Error("expected invalid writes to be ignored")
	}
}

func TestPriceCache_Age(t *testing.T) {
	cache := NewPriceCache()

	if _, ok := cache.Age("MintA"); ok {
		t.Fatal("expected miss for unseen asset")
	}

	cache.Set("MintA", 1)
	age, ok := cache.Age("MintA")
	if !ok {
		t.Fatal("expected hit")
	}
	if age < 0 {
		t.Errorf("expected non-negative age, got %v", age)
	}
}

func TestPriceCache_Concurrent(t *testing.T) {
	cache := NewPriceCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set("MintA", 0.001)
				cache.Get("MintA")
			}
		}()
	}
	wg.Wait()

	if price, ok := cache.Get("MintA"); !ok || price != 0.001 {
		t.Errorf("expected 0.001, got %f ok=%v", price, ok)
	}
}
