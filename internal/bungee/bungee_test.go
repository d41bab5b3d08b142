package bungee

import (
	"math/rand"
	"testing"
)

func TestPushEmptyIsNoop(t *testing.T) {
	a := New()
	i1 := a.PushString(0, "a")
	i2 := a.Push(i1, nil)
	if i2 != i1 {
		t.Fatalf("pushing empty payload should return prev unchanged: got %d want %d", i2, i1)
	}
	i3 := a.Push(i1, []byte{})
	if i3 != i1 {
		t.Fatalf("pushing empty slice should return prev unchanged: got %d want %d", i3, i1)
	}
}

func TestReverseReadRoundTrip(t *testing.T) {
	a := New()
	i1 := a.PushString(0, "a")
	payload, prev, _ := a.ReverseRead(i1)
	if string(payload) != "a" || prev != 0 {
		t.Fatalf("reverse read of root push: got payload=%q prev=%d", payload, prev)
	}

	i2 := a.PushString(i1, "bb")
	payload, prev, _ = a.ReverseRead(i2)
	if string(payload) != "bb" || prev != i1 {
		t.Fatalf("reverse read of chained push: got payload=%q prev=%d want prev=%d", payload, prev, i1)
	}
}

func TestPathReconstruction(t *testing.T) {
	a := New()
	i1 := a.PushString(0, "a")
	i2 := a.PushString(i1, "b")
	i3 := a.PushString(i2, "c")

	got := a.PathOf("/", i3)
	if got != "a/b/c" {
		t.Fatalf("PathOf = %q, want %q", got, "a/b/c")
	}
}

func TestPathSharedPrefix(t *testing.T) {
	a := New()
	root := a.PushString(0, "root")
	dirA := a.PushString(root, "a")
	dirB := a.PushString(root, "b")

	fileInA := a.PushString(dirA, "x.txt")
	fileInB := a.PushString(dirB, "y.txt")

	if got := a.PathOf("/", fileInA); got != "root/a/x.txt" {
		t.Fatalf("PathOf(fileInA) = %q", got)
	}
	if got := a.PathOf("/", fileInB); got != "root/b/y.txt" {
		t.Fatalf("PathOf(fileInB) = %q", got)
	}
}

func TestFollowIterTerminates(t *testing.T) {
	a := New()
	var idx Index
	const depth = 50
	for i := 0; i < depth; i++ {
		idx = a.PushString(idx, "x")
	}

	it := a.Follow(idx)
	count := 0
	for {
		_, _, ok := it.Next()
		if !ok {
			break
		}
		count++
		if count > depth {
			t.Fatalf("FollowIter did not terminate within chain depth %d", depth)
		}
	}
	if count != depth {
		t.Fatalf("FollowIter visited %d records, want %d", count, depth)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 127, 128, 129, 16383, 16384, 1 << 20, 1 << 40, ^uint64(0), ^uint64(0) >> 1}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		values = append(values, rng.Uint64())
	}

	for _, v := range values {
		buf := writeVarint(nil, v)
		got, n := readVarint(buf)
		if got != v || n != len(buf) {
			t.Fatalf("readVarint(write(%d)) = (%d, %d), want (%d, %d)", v, got, n, v, len(buf))
		}
		got2, n2 := reverseReadVarint(buf)
		if got2 != v || n2 != len(buf) {
			t.Fatalf("reverseReadVarint(write(%d)) = (%d, %d), want (%d, %d)", v, got2, n2, v, len(buf))
		}
	}
}

func TestVarintEmbeddedInLargerBuffer(t *testing.T) {
	// Simulate decoding a varint that sits in the middle of the arena, as
	// ReverseRead does: prefix bytes before it, then the varint, with the
	// slice passed to reverseReadVarint ending exactly at the varint.
	prefix := []byte{0xAA, 0xBB, 0xCC}
	for _, v := range []uint64{0, 127, 128, 70000} {
		buf := append(append([]byte{}, prefix...), writeVarint(nil, v)...)
		got, n := reverseReadVarint(buf)
		want := writeVarint(nil, v)
		if got != v || n != len(want) {
			t.Fatalf("reverseReadVarint embedded(%d) = (%d, %d), want (%d, %d)", v, got, n, v, len(want))
		}
	}
}
