// Package bungee implements the append-only byte arena used to store
// directory-tree paths compactly. Each inserted payload is linked to its
// predecessor by a back-reference, so a common path prefix shared by many
// files is stored once and referenced by every path beneath it.
//
// Indices into the arena are opaque, non-zero offsets one past the end of a
// record; index 0 is reserved to mean "no predecessor". The arena never
// shrinks or moves the bytes behind an index already handed out, so an
// Index remains valid for the lifetime of the Arena that produced it.
package bungee

// Index identifies a record previously pushed onto an Arena. The zero value
// means "no predecessor" and is never returned by Push for a non-empty
// payload.
type Index uint64

// Arena is an append-only byte buffer encoding a forest of byte strings via
// linked back-references. It is not safe for concurrent use without
// external synchronization.
type Arena struct {
	data []byte
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// FromRawBytes wraps a previously-serialized arena buffer (e.g. read back
// from a Names block body) without copying it. The caller must not mutate
// raw afterward; ownership transfers to the returned Arena.
func FromRawBytes(raw []byte) *Arena {
	return &Arena{data: raw}
}

// Len returns the number of bytes currently stored in the arena.
func (a *Arena) Len() int {
	return len(a.data)
}

// RawBytes returns the arena's backing bytes. The returned slice aliases
// the Arena's storage and is only stable until the next Push.
func (a *Arena) RawBytes() []byte {
	return a.data
}

// LastIndex returns the index of the most recently pushed record, or false
// if the arena is empty.
func (a *Arena) LastIndex() (Index, bool) {
	if len(a.data) == 0 {
		return 0, false
	}
	return Index(len(a.data)), true
}

// Push appends payload, linked to prev, and returns the index of the new
// record. An empty payload is a no-op that returns prev unchanged — this
// lets callers chain pushes for every directory level without special-
// casing empty names.
//
// Record layout (all integers are reverse-readable varints, see varint.go):
//
//	[varint(current_end - prev_offset)][payload bytes][varint(len(payload))]
//
// where prev_offset is 0 when prev has no predecessor, matching index 0's
// reserved meaning.
func (a *Arena) Push(prev Index, payload []byte) Index {
	if len(payload) == 0 {
		return prev
	}
	pos := len(a.data)
	offset := uint64(pos) - uint64(prev)
	a.data = writeVarint(a.data, offset)
	a.data = append(a.data, payload...)
	a.data = writeVarint(a.data, uint64(len(payload)))
	return Index(len(a.data))
}

// PushString is a convenience wrapper around Push for string payloads.
func (a *Arena) PushString(prev Index, payload string) Index {
	return a.Push(prev, []byte(payload))
}

// ReverseRead decodes the record ending at index at, returning its payload,
// the index of its predecessor (0 if none), and the "skip" index — the
// position immediately before this record's predecessor-offset field, used
// to walk sibling roots without following the predecessor chain.
//
// ReverseRead panics if at is 0 or exceeds the arena's current length;
// those indicate programmer error (an index from a different arena, or one
// predating a Reset) rather than a recoverable condition.
func (a *Arena) ReverseRead(at Index) (payload []byte, prev Index, skip Index) {
	if at == 0 || int(at) > len(a.data) {
		panic("bungee: invalid index")
	}
	slice := a.data[:at]
	payloadLen, lenWidth := reverseReadVarint(slice)
	dataEnd := len(slice) - lenWidth
	dataStart := dataEnd - int(payloadLen)
	payload = slice[dataStart:dataEnd]

	offset, offWidth := reverseReadVarint(slice[:dataStart])
	skipPos := dataStart - offWidth
	prevPos := skipPos - int(offset)

	return payload, Index(prevPos), Index(skipPos)
}

// FollowIter returns a lazily-evaluated sequence of (payload, index) pairs
// walking from at toward the root, following predecessor links. Call Next
// until it returns ok=false.
type FollowIter struct {
	arena *Arena
	at    Index
}

// Follow begins a FollowIter at index at.
func (a *Arena) Follow(at Index) *FollowIter {
	return &FollowIter{arena: a, at: at}
}

// Next advances the iterator, returning the current payload and index, or
// ok=false once the chain is exhausted (the predecessor of the last record
// was 0).
func (it *FollowIter) Next() (payload []byte, idx Index, ok bool) {
	if it.at == 0 {
		return nil, 0, false
	}
	p, prev, _ := it.arena.ReverseRead(it.at)
	idx = it.at
	it.at = prev
	return p, idx, true
}

// PathOf reconstructs the full path ending at index at by walking
// FollowIter and joining the collected segments, in root-to-leaf order,
// with sep. Complexity is O(depth).
func (a *Arena) PathOf(sep string, at Index) string {
	var segments [][]byte
	it := a.Follow(at)
	for {
		payload, _, ok := it.Next()
		if !ok {
			break
		}
		segments = append(segments, payload)
	}

	total := 0
	for i, seg := range segments {
		total += len(seg)
		if i > 0 {
			total += len(sep)
		}
	}
	out := make([]byte, 0, total)
	for i := len(segments) - 1; i >= 0; i-- {
		if i != len(segments)-1 {
			out = append(out, sep...)
		}
		out = append(out, segments[i]...)
	}
	return string(out)
}
