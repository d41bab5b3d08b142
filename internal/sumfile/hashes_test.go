package sumfile

import (
	"bytes"
	"testing"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

func mkFingerprint(b byte) fingerprint.Fingerprint {
	var raw [fingerprint.Size]byte
	raw[0] = b
	return fingerprint.Fingerprint(raw)
}

func TestHashesChunkSortAndVerify(t *testing.T) {
	c := &HashesChunk{
		NameHashType: fingerprint.HashSHA256,
		DataHashType: fingerprint.HashSHA256,
		Entries: []Entry{
			{NameHash: mkFingerprint(3), ContentHash: mkFingerprint(1)},
			{NameHash: mkFingerprint(1), ContentHash: mkFingerprint(2)},
			{NameHash: mkFingerprint(2), ContentHash: mkFingerprint(0)},
		},
	}
	if c.VerifySorted() {
		t.Fatal("chunk should not report sorted before Sort")
	}
	c.Sort()
	if c.Order != SortedByName {
		t.Fatalf("Order after Sort = %v, want SortedByName", c.Order)
	}
	if !c.VerifySorted() {
		t.Fatal("VerifySorted should be true after Sort")
	}
	for i := 1; i < len(c.Entries); i++ {
		if c.Entries[i-1].NameHash.Compare(c.Entries[i].NameHash) > 0 {
			t.Fatalf("entries not ordered by NameHash: %v", c.Entries)
		}
	}
}

func TestVerifyUpdateSorted(t *testing.T) {
	c := &HashesChunk{Entries: []Entry{
		{NameHash: mkFingerprint(1)},
		{NameHash: mkFingerprint(2)},
	}}
	if ok := c.VerifyUpdateSorted(); !ok || c.Order != SortedByName {
		t.Fatalf("expected sorted, got ok=%v order=%v", ok, c.Order)
	}

	c2 := &HashesChunk{Entries: []Entry{
		{NameHash: mkFingerprint(2)},
		{NameHash: mkFingerprint(1)},
	}}
	if ok := c2.VerifyUpdateSorted(); ok || c2.Order != Unknown {
		t.Fatalf("expected unknown, got ok=%v order=%v", ok, c2.Order)
	}
}

func TestHashesChunkHeaderBodyRoundTrip(t *testing.T) {
	c := &HashesChunk{
		Order:        SortedByName,
		NameHashType: fingerprint.HashSHA256,
		DataHashType: fingerprint.HashBLAKE3,
		Entries: []Entry{
			{NameHash: mkFingerprint(1), ContentHash: mkFingerprint(9)},
			{NameHash: mkFingerprint(2), ContentHash: mkFingerprint(8)},
		},
	}

	var buf bytes.Buffer
	if err := c.WriteHeader(&buf); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBody(&buf); err != nil {
		t.Fatal(err)
	}

	var header [64]byte
	copy(header[:], buf.Next(64))
	order, count, nameType, dataType, err := ReadHashesHeader(header)
	if err != nil {
		t.Fatal(err)
	}
	if order != SortedByName || count != 2 || nameType != fingerprint.HashSHA256 || dataType != fingerprint.HashBLAKE3 {
		t.Fatalf("header round trip mismatch: order=%v count=%d nameType=%v dataType=%v", order, count, nameType, dataType)
	}

	entries, err := ReadHashesBody(&buf, count, nameType, dataType)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(c.Entries) {
		t.Fatalf("got %d entries, want %d", len(entries), len(c.Entries))
	}
	for i, e := range entries {
		if e != c.Entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, e, c.Entries[i])
		}
	}
}

func TestHashesStreamExactSizeHint(t *testing.T) {
	c := &HashesChunk{
		NameHashType: fingerprint.HashSHA256,
		DataHashType: fingerprint.HashSHA256,
		Entries: []Entry{
			{NameHash: mkFingerprint(1), ContentHash: mkFingerprint(2)},
			{NameHash: mkFingerprint(3), ContentHash: mkFingerprint(4)},
		},
	}
	var buf bytes.Buffer
	if err := c.WriteBody(&buf); err != nil {
		t.Fatal(err)
	}

	s := NewHashesStream(&buf, uint64(len(c.Entries)), fingerprint.HashSHA256, fingerprint.HashSHA256)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	var got []Entry
	for {
		e, ok := s.Next()
		if !ok {
			break
		}
		got = append(got, e)
	}
	if s.Err() != nil {
		t.Fatalf("stream ended with error: %v", s.Err())
	}
	if s.Len() != 0 {
		t.Fatalf("Len() after drain = %d, want 0", s.Len())
	}
	if len(got) != 2 || got[0] != c.Entries[0] || got[1] != c.Entries[1] {
		t.Fatalf("streamed entries = %+v, want %+v", got, c.Entries)
	}
}

func TestFindDuplicatesGroupsByContentHash(t *testing.T) {
	shared := mkFingerprint(7)
	c := &HashesChunk{Entries: []Entry{
		{NameHash: mkFingerprint(1), ContentHash: shared},
		{NameHash: mkFingerprint(2), ContentHash: mkFingerprint(0)},
		{NameHash: mkFingerprint(3), ContentHash: shared},
	}}
	dupes := FindDuplicates(c)
	if len(dupes) != 1 {
		t.Fatalf("got %d duplicate groups, want 1", len(dupes))
	}
	group, ok := dupes[shared]
	if !ok || len(group) != 2 {
		t.Fatalf("duplicate group for shared hash = %v, want 2 members", group)
	}
}
