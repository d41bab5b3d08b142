// Package diffstream implements the streaming single-pass merge over two
// name-sorted entry sequences, producing Added/Removed/Changed/Same
// records without materializing either side in full.
package diffstream

import "github.com/rybkr/sumtree/internal/sumfile"

// Kind identifies which of the four diff outcomes a Record carries.
type Kind int

const (
	Added Kind = iota
	Removed
	Changed
	Same
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	case Same:
		return "same"
	default:
		return "unknown"
	}
}

// Record is one output of the diff merge. Old is populated for Removed,
// Changed, and Same; New is populated for Added, Changed, and Same (Same
// carries either side, since they are equal).
type Record struct {
	Kind Kind
	Old  sumfile.Entry
	New  sumfile.Entry
}

// Source supplies a name-sorted sequence of entries one at a time. It is
// satisfied by *sumfile.HashesStream and by a plain in-memory slice
// wrapper (see NewSliceSource).
type Source interface {
	// Next returns the next entry in ascending NameHash order, or
	// ok=false once exhausted.
	Next() (sumfile.Entry, bool)
	// Len returns the exact number of entries remaining, matching the
	// "exact size hint" requirement when the underlying source supports
	// it.
	Len() uint64
}

// sliceSource adapts a pre-sorted in-memory slice to Source.
type sliceSource struct {
	entries []sumfile.Entry
	i       int
}

// NewSliceSource wraps a slice already sorted by NameHash. The caller is
// responsible for having sorted it (e.g. via HashesChunk.Sort).
func NewSliceSource(entries []sumfile.Entry) Source {
	return &sliceSource{entries: entries}
}

func (s *sliceSource) Next() (sumfile.Entry, bool) {
	if s.i >= len(s.entries) {
		return sumfile.Entry{}, false
	}
	e := s.entries[s.i]
	s.i++
	return e, true
}

func (s *sliceSource) Len() uint64 {
	return uint64(len(s.entries) - s.i)
}

// Diff merges old and new, two name-sorted Sources, into a single ordered
// sequence of Records. It is itself pull-based (Scan/Record, mirroring
// internal/walk's iterator shape) so a caller can stream results without
// buffering the full diff in memory.
type Diff struct {
	old, new     Source
	oldHead      sumfile.Entry
	newHead      sumfile.Entry
	oldOK, newOK bool
	started      bool
	current      Record
}

// New constructs a Diff over old and new.
func New(old, new Source) *Diff {
	return &Diff{old: old, new: new}
}

// SizeHint returns (lo, hi) bounds on the number of remaining records:
// lo is the larger of the two sources' remaining counts (every entry on
// the longer side must produce at least one record), and hi is nil-able
// in spirit but represented here as the sum of both remaining counts,
// which is always a valid (if sometimes loose) upper bound; when both
// sources report exact remaining counts this degenerates to an exact
// range only when one side is exhausted.
func (d *Diff) SizeHint() (lo, hi uint64) {
	oldLen, newLen := d.old.Len(), d.new.Len()
	lo = oldLen
	if newLen > lo {
		lo = newLen
	}
	return lo, oldLen + newLen
}

// Scan advances to the next Record, returning false once both sources are
// exhausted.
func (d *Diff) Scan() bool {
	if !d.started {
		d.oldHead, d.oldOK = d.old.Next()
		d.newHead, d.newOK = d.new.Next()
		d.started = true
	}

	switch {
	case !d.oldOK && !d.newOK:
		return false
	case !d.oldOK:
		d.current = Record{Kind: Added, New: d.newHead}
		d.newHead, d.newOK = d.new.Next()
		return true
	case !d.newOK:
		d.current = Record{Kind: Removed, Old: d.oldHead}
		d.oldHead, d.oldOK = d.old.Next()
		return true
	default:
		switch c := d.oldHead.NameHash.Compare(d.newHead.NameHash); {
		case c == 0 && d.oldHead.ContentHash == d.newHead.ContentHash:
			d.current = Record{Kind: Same, Old: d.oldHead, New: d.newHead}
			d.oldHead, d.oldOK = d.old.Next()
			d.newHead, d.newOK = d.new.Next()
		case c == 0:
			d.current = Record{Kind: Changed, Old: d.oldHead, New: d.newHead}
			d.oldHead, d.oldOK = d.old.Next()
			d.newHead, d.newOK = d.new.Next()
		case c < 0:
			d.current = Record{Kind: Removed, Old: d.oldHead}
			d.oldHead, d.oldOK = d.old.Next()
		default:
			d.current = Record{Kind: Added, New: d.newHead}
			d.newHead, d.newOK = d.new.Next()
		}
		return true
	}
}

// Record returns the result of the most recent successful Scan.
func (d *Diff) Record() Record {
	return d.current
}
