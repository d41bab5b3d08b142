// Package sumfile implements the versioned binary container format that
// sum-file entries are persisted in: a 64-byte main header, a stream of
// typed blocks (Hashes, Names, Info, End), and a small codec registry
// keyed by on-disk version triple.
package sumfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

// SortOrder is the 2-bit tag persisted in a Hashes block's flags field.
// The discriminant values match the Rust source's SortOrder enum exactly,
// since the on-disk format carries them verbatim.
type SortOrder uint8

const (
	Unordered    SortOrder = 0
	SortedByName SortOrder = 1
	Unknown      SortOrder = 2
	SortedByData SortOrder = 3
)

func (o SortOrder) String() string {
	switch o {
	case Unordered:
		return "unordered"
	case SortedByName:
		return "sorted-by-name"
	case Unknown:
		return "unknown"
	case SortedByData:
		return "sorted-by-data"
	default:
		return fmt.Sprintf("SortOrder(%d)", o)
	}
}

// Entry pairs a name hash with a content hash. Entries compare first by
// NameHash, then by ContentHash.
type Entry struct {
	NameHash    fingerprint.Fingerprint
	ContentHash fingerprint.Fingerprint
}

// Compare orders a before b: -1, 0, or 1.
func (a Entry) Compare(b Entry) int {
	if c := a.NameHash.Compare(b.NameHash); c != 0 {
		return c
	}
	return a.ContentHash.Compare(b.ContentHash)
}

// HashesChunk is the in-memory form of a Hashes block: an ordered entry
// vector plus the three tags persisted in its header.
type HashesChunk struct {
	Order        SortOrder
	NameHashType fingerprint.HashType
	DataHashType fingerprint.HashType
	Entries      []Entry
}

// hashesBlockType is this block's type byte within the "hSb"-prefixed
// marker.
const hashesBlockType = 0x02

// hashesHeaderSize is the fixed on-disk header width for a Hashes block.
const hashesHeaderSize = 64

// maxEntryCount is the largest entry count the format allows (2^32 - 1),
// matching the invariant in §3.
const maxEntryCount = 1<<32 - 1

// Sort orders Entries in place by NameHash then ContentHash (unstable,
// since no two entries with equal NameHash and ContentHash are
// distinguishable) and updates Order to SortedByName.
func (c *HashesChunk) Sort() {
	sort.Slice(c.Entries, func(i, j int) bool { return c.Entries[i].Compare(c.Entries[j]) < 0 })
	c.Order = SortedByName
}

// VerifySorted reports whether Entries is currently ordered by NameHash
// (ContentHash is not consulted — only the name_hash <= name_hash
// invariant from §3 is checked).
func (c *HashesChunk) VerifySorted() bool {
	for i := 1; i < len(c.Entries); i++ {
		if c.Entries[i-1].NameHash.Compare(c.Entries[i].NameHash) > 0 {
			return false
		}
	}
	return true
}

// VerifyUpdateSorted scans Entries and sets Order to SortedByName or
// Unknown accordingly, returning the result of the scan.
func (c *HashesChunk) VerifyUpdateSorted() bool {
	if c.VerifySorted() {
		c.Order = SortedByName
		return true
	}
	c.Order = Unknown
	return false
}

// entrySize returns the on-disk width of one entry given this chunk's hash
// types.
func (c *HashesChunk) entrySize() int {
	return c.NameHashType.BytesCount() + c.DataHashType.BytesCount()
}

// WriteHeader serializes the 64-byte Hashes block header (including the
// leading "hSb"+type marker) to w.
func (c *HashesChunk) WriteHeader(w io.Writer) error {
	var buf [hashesHeaderSize]byte
	copy(buf[0:3], blockMagic[:])
	buf[3] = hashesBlockType
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Order))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(c.Entries)))
	copy(buf[16:24], nameTag(c.NameHashType)[:])
	copy(buf[24:32], nameTag(c.DataHashType)[:])
	_, err := w.Write(buf[:])
	return err
}

func nameTag(h fingerprint.HashType) [8]byte {
	return h.Fingerprint()
}

// WriteBody serializes Entries as little-endian packed bytes with no
// padding, in current order (callers that require SortedByName output
// must call Sort first).
func (c *HashesChunk) WriteBody(w io.Writer) error {
	size := c.entrySize()
	buf := make([]byte, size)
	nameSize := c.NameHashType.BytesCount()
	for _, e := range c.Entries {
		copy(buf[:nameSize], e.NameHash.Bytes()[:nameSize])
		copy(buf[nameSize:], e.ContentHash.Bytes()[:size-nameSize])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ReadHashesHeader parses a 64-byte Hashes header previously read from the
// block stream (header[0:4] must already have been validated as the
// "hSb"+type marker by the caller). It fails if the entry count exceeds
// maxEntryCount or either hash fingerprint is unknown.
func ReadHashesHeader(header [hashesHeaderSize]byte) (order SortOrder, count uint64, nameType, dataType fingerprint.HashType, err error) {
	order = SortOrder(binary.LittleEndian.Uint32(header[4:8]) & 0x3)
	count = binary.LittleEndian.Uint64(header[8:16])
	if count > maxEntryCount {
		return 0, 0, 0, 0, fmt.Errorf("sumfile: hashes block entry count %d exceeds maximum %d", count, maxEntryCount)
	}

	var nameTagBytes, dataTagBytes [8]byte
	copy(nameTagBytes[:], header[16:24])
	copy(dataTagBytes[:], header[24:32])

	nameType, ok := fingerprint.HashTypeFromFingerprint(nameTagBytes)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("sumfile: unknown name hash fingerprint %q", nameTagBytes)
	}
	dataType, ok = fingerprint.HashTypeFromFingerprint(dataTagBytes)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("sumfile: unknown data hash fingerprint %q", dataTagBytes)
	}
	return order, count, nameType, dataType, nil
}

// ReadHashesBody reads count entries of the given hash types from r.
func ReadHashesBody(r io.Reader, count uint64, nameType, dataType fingerprint.HashType) ([]Entry, error) {
	nameSize := nameType.BytesCount()
	dataSize := dataType.BytesCount()
	buf := make([]byte, nameSize+dataSize)
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("sumfile: reading hashes entry %d: %w", i, err)
		}
		var nameBytes, dataBytes [fingerprint.Size]byte
		copy(nameBytes[:nameSize], buf[:nameSize])
		copy(dataBytes[:dataSize], buf[nameSize:])
		entries = append(entries, Entry{
			NameHash:    fingerprint.Fingerprint(nameBytes),
			ContentHash: fingerprint.Fingerprint(dataBytes),
		})
	}
	return entries, nil
}

// HashesStream incrementally yields entries from an already-positioned
// reader, mirroring the streaming variant described in §4.I: the header is
// read once by ReadHashesHeader, then Next is called count times. Any read
// error finalizes the iterator (subsequent Next calls report false).
type HashesStream struct {
	r        io.Reader
	count    uint64
	i        uint64
	nameSize int
	dataSize int
	err      error
}

// NewHashesStream begins streaming count entries of the given hash types
// from r.
func NewHashesStream(r io.Reader, count uint64, nameType, dataType fingerprint.HashType) *HashesStream {
	return &HashesStream{r: r, count: count, nameSize: nameType.BytesCount(), dataSize: dataType.BytesCount()}
}

// Len reports the exact number of entries remaining (the stream's size
// hint is always exact, per §4.I).
func (s *HashesStream) Len() uint64 {
	return s.count - s.i
}

// Next advances the stream, returning the next entry, or ok=false once
// exhausted or after a read error (see Err).
func (s *HashesStream) Next() (entry Entry, ok bool) {
	if s.err != nil || s.i >= s.count {
		return Entry{}, false
	}
	buf := make([]byte, s.nameSize+s.dataSize)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		s.err = err
		return Entry{}, false
	}
	var nameBytes, dataBytes [fingerprint.Size]byte
	copy(nameBytes[:s.nameSize], buf[:s.nameSize])
	copy(dataBytes[:s.dataSize], buf[s.nameSize:])
	s.i++
	return Entry{NameHash: fingerprint.Fingerprint(nameBytes), ContentHash: fingerprint.Fingerprint(dataBytes)}, true
}

// Err returns the error that finalized the stream, if any.
func (s *HashesStream) Err() error {
	return s.err
}

// FindDuplicates groups chunk's entries by ContentHash, returning only
// groups with more than one member (as entry indices into chunk.Entries).
// The result is a map, so the groups carry no order. This is the promoted duplicate-content
// discovery feature (supplemented from the original source's file_iter.rs
// test harness; see DESIGN.md).
func FindDuplicates(chunk *HashesChunk) map[fingerprint.Fingerprint][]int {
	byContent := map[fingerprint.Fingerprint][]int{}
	for i, e := range chunk.Entries {
		byContent[e.ContentHash] = append(byContent[e.ContentHash], i)
	}
	dupes := map[fingerprint.Fingerprint][]int{}
	for hash, idxs := range byContent {
		if len(idxs) > 1 {
			dupes[hash] = idxs
		}
	}
	return dupes
}
