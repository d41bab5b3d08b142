package lifo

import (
	"sync"
	"testing"
	"time"
)

func TestTryLendEmpty(t *testing.T) {
	s := New([]int{})
	if _, ok := s.TryLend(); ok {
		t.Fatal("TryLend on empty stack should report ok=false")
	}
}

func TestLendGiveBackCycle(t *testing.T) {
	s := New([]int{1, 2, 3})
	if s.Capacity() != 3 {
		t.Fatalf("Capacity() = %d, want 3", s.Capacity())
	}

	a := s.Lend()
	b := s.Lend()
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	if !s.GiveBack(a) {
		t.Fatal("GiveBack should succeed under capacity")
	}
	if !s.GiveBack(b) {
		t.Fatal("GiveBack should succeed under capacity")
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}

func TestGiveBackAtCapacity(t *testing.T) {
	s := New([]int{1})
	if ok := s.GiveBack(2); ok {
		t.Fatal("GiveBack should refuse when already at capacity")
	}
}

func TestLendBlocksUntilGiveBack(t *testing.T) {
	s := New([]int{0}) // capacity 1, drained below so Lend must block
	s.Lend()

	var wg sync.WaitGroup
	wg.Add(1)

	done := make(chan int, 1)
	go func() {
		defer wg.Done()
		done <- s.Lend()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Lend returned before any value was given back")
	default:
	}

	s.GiveBack(42)
	wg.Wait()

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("Lend() = %d, want 42", v)
		}
	default:
		t.Fatal("Lend did not return after GiveBack")
	}
}
