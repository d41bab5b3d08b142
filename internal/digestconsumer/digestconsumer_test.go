package digestconsumer

import (
	"sync/atomic"
	"testing"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

func TestConsumeNameDeterministic(t *testing.T) {
	c := New(fingerprint.HashSHA256, func(Entry) {}, nil, nil)
	a := c.ConsumeName("a/b/c.txt")
	b := c.ConsumeName("a/b/c.txt")
	if a != b {
		t.Fatal("ConsumeName must be deterministic for the same path")
	}
	other := c.ConsumeName("a/b/d.txt")
	if a == other {
		t.Fatal("different paths must hash differently")
	}
}

func TestFinishConsumeInvokesSinkWithPair(t *testing.T) {
	var got Entry
	called := 0
	c := New(fingerprint.HashSHA256, func(e Entry) { got = e; called++ }, nil, nil)

	name := c.ConsumeName("file.bin")
	state := c.StartFile()
	c.UpdateFile(state, []byte("hello "))
	c.UpdateFile(state, []byte("world"))
	c.FinishConsume(name, state)

	if called != 1 {
		t.Fatalf("sink called %d times, want 1", called)
	}
	if got.NameHash != name {
		t.Fatal("sink entry name hash does not match ConsumeName result")
	}

	want := c.StartFile()
	c.UpdateFile(want, []byte("hello world"))
	var wantEntry Entry
	c2 := &Consumer{hashType: fingerprint.HashSHA256, sink: func(e Entry) { wantEntry = e }, logger: c.logger}
	c2.FinishConsume(name, want)
	if got.ContentHash != wantEntry.ContentHash {
		t.Fatal("content hash does not match hashing the concatenated chunks in one call")
	}
}

func TestUpdateFileAdvancesByteCounter(t *testing.T) {
	var counter atomic.Int64
	c := New(fingerprint.HashSHA256, func(Entry) {}, &counter, nil)
	state := c.StartFile()
	c.UpdateFile(state, make([]byte, 10))
	c.UpdateFile(state, make([]byte, 5))
	if got := counter.Load(); got != 15 {
		t.Fatalf("byte counter = %d, want 15", got)
	}
}

func TestOnErrorDoesNotPanic(t *testing.T) {
	c := New(fingerprint.HashSHA256, func(Entry) {}, nil, nil)
	c.OnError(errTest{}, "some/path")
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
