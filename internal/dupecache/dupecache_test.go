package dupecache

import (
	"testing"
	"time"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

func fp(b byte) fingerprint.Fingerprint {
	var f fingerprint.Fingerprint
	f[0] = b
	return f
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFreshIsFalseForUnknownSumFile(t *testing.T) {
	c := openTestCache(t)
	fresh, err := c.Fresh("/tmp/unknown.sum", time.Unix(100, 0), 42)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Fatal("expected Fresh to be false for a sum file never recorded")
	}
}

func TestRecordThenFreshRoundTrip(t *testing.T) {
	c := openTestCache(t)
	mtime := time.Unix(1700000000, 0)
	entries := []Entry{
		{Path: "a.txt", ContentHash: fp(1)},
		{Path: "b.txt", ContentHash: fp(1)},
	}
	if err := c.Record("/tmp/x.sum", mtime, 128, entries); err != nil {
		t.Fatal(err)
	}

	fresh, err := c.Fresh("/tmp/x.sum", mtime, 128)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Fatal("expected Fresh to be true after recording with matching mtime/size")
	}

	stale, err := c.Fresh("/tmp/x.sum", mtime, 129)
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Fatal("expected Fresh to be false when size differs")
	}
}

func TestRecordReplacesPriorEntries(t *testing.T) {
	c := openTestCache(t)
	mtime := time.Unix(1, 0)
	if err := c.Record("/tmp/x.sum", mtime, 10, []Entry{{Path: "old.txt", ContentHash: fp(1)}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Record("/tmp/x.sum", mtime, 10, []Entry{{Path: "new.txt", ContentHash: fp(1)}}); err != nil {
		t.Fatal(err)
	}

	groups, err := c.Duplicates(1)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range groups {
		for _, p := range g.Paths {
			if p == "old.txt" {
				t.Fatal("expected stale entry from the first Record call to be replaced")
			}
		}
	}
}

func TestDuplicatesGroupsBySharedContentHash(t *testing.T) {
	c := openTestCache(t)
	mtime := time.Unix(1, 0)
	entries := []Entry{
		{Path: "a.txt", ContentHash: fp(1)},
		{Path: "b.txt", ContentHash: fp(1)},
		{Path: "c.txt", ContentHash: fp(1)},
		{Path: "d.txt", ContentHash: fp(2)},
	}
	if err := c.Record("/tmp/x.sum", mtime, 10, entries); err != nil {
		t.Fatal(err)
	}

	groups, err := c.Duplicates(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected exactly one duplicate group, got %d", len(groups))
	}
	if len(groups[0].Paths) != 3 {
		t.Fatalf("expected 3 paths in the duplicate group, got %d", len(groups[0].Paths))
	}
	if groups[0].ContentHash != fp(1) {
		t.Fatalf("unexpected content hash in group: %v", groups[0].ContentHash)
	}
}

func TestDuplicatesOrderedLargestGroupFirst(t *testing.T) {
	c := openTestCache(t)
	mtime := time.Unix(1, 0)
	entries := []Entry{
		{Path: "a.txt", ContentHash: fp(1)},
		{Path: "b.txt", ContentHash: fp(1)},
		{Path: "c.txt", ContentHash: fp(2)},
		{Path: "d.txt", ContentHash: fp(2)},
		{Path: "e.txt", ContentHash: fp(2)},
	}
	if err := c.Record("/tmp/x.sum", mtime, 10, entries); err != nil {
		t.Fatal(err)
	}

	groups, err := c.Duplicates(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Paths) != 3 || len(groups[1].Paths) != 2 {
		t.Fatalf("expected groups ordered largest first, got sizes %d, %d", len(groups[0].Paths), len(groups[1].Paths))
	}
}

func TestBucketCandidatesMatchesTopBits(t *testing.T) {
	c := openTestCache(t)
	mtime := time.Unix(1, 0)
	entries := []Entry{
		{Path: "a.txt", ContentHash: fp(1)},
		{Path: "b.txt", ContentHash: fp(2)},
	}
	if err := c.Record("/tmp/x.sum", mtime, 10, entries); err != nil {
		t.Fatal(err)
	}

	paths, err := c.BucketCandidates(fp(1).TopBits())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "a.txt" {
		t.Fatalf("expected bucket to contain only a.txt, got %v", paths)
	}
}
