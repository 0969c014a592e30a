package sequence

import (
	"sync"
	"testing"
)

func TestAllocator_Next(t *testing.T) {
	a := NewAllocator()

	// Test sequential calls
	id1 := a.Next("s1")
	id2 := a.Next("s1")
	id3 := a.Next("s1")

	if id1 != 1 {
		t.Errorf("Expected first number to be 1, got %d", id1)
	}
	if id2 != 2 {
		t.Errorf("Expected second number to be 2, got %d", id2)
	}
	if id3 != 3 {
		t.Errorf("Expected third number to be 3, got %d", id3)
	}
}

func TestAllocator_SessionsAreIndependent(t *testing.T) {
	a := NewAllocator()

	a.Next("s1")
	a.Next("s1")

	if got := a.Next("s2"); got != 1 {
		t.Errorf("Expected fresh session to start at 1, got %d", got)
	}
	if got := a.Current("s1"); got != 2 {
		t.Errorf("Expected s1 current to be 2, got %d", got)
	}
}

func TestAllocator_Seed(t *testing.T) {
	a := NewAllocator()

	a.Seed("s1", 41)
	if got := a.Next("s1"); got != 42 {
		t.Errorf("Expected first number after seed 41 to be 42, got %d", got)
	}

	// Lower seed must not rewind
	a.Seed("s1", 5)
	if got := a.Next("s1"); got != 43 {
		t.Errorf("Expected seed below current to be ignored, got %d", got)
	}
}

func TestAllocator_ConcurrentSafety(t *testing.T) {
	a := NewAllocator()
	const numGoroutines = 100
	const idsPerGoroutine = 1000

	var wg sync.WaitGroup
	results := make(chan []int64, numGoroutines)

	// Launch multiple goroutines that each get many numbers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, idsPerGoroutine)
			for j := 0; j < idsPerGoroutine; j++ {
				ids[j] = a.Next("s1")
			}
			results <- ids
		}()
	}

	wg.Wait()
	close(results)

	// Collect all numbers and check for uniqueness and completeness
	seen := make(map[int64]bool)
	expectedTotal := numGoroutines * idsPerGoroutine

	for ids := range results {
		for _, id := range ids {
			if seen[id] {
				t.Errorf("Duplicate sequence number: %d", id)
			}
			seen[id] = true
		}
	}

	if len(seen) != expectedTotal {
		t.Errorf("Expected %d unique numbers, got %d", expectedTotal, len(seen))
	}

	// Check that all numbers from 1 to expectedTotal are present
	for i := int64(1); i <= int64(expectedTotal); i++ {
		if !seen[i] {
			t.Errorf("Missing sequence number: %d", i)
		}
	}
}

func BenchmarkAllocator_Next(b *testing.B) {
	a := NewAllocator()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.Next("s1")
		}
	})
}
