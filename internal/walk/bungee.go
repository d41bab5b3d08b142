package walk

import "github.com/rybkr/sumtree/internal/bungee"

// NameConverter converts a directory entry's raw OS name into the string to
// store in the bungee arena. Returning ok=false skips the entry (and,
// transitively, its descendants) entirely — it is never emitted and no
// arena record is created for it.
type NameConverter func(name string) (s string, ok bool)

// BungeeEntry pairs a visited node with the bungee index of the path
// segment chain ending at that node. Index is 0 (no record) when
// NameConverter rejected this entry or any of its ancestors produced an
// empty name (see bungee.Arena.Push's empty-payload no-op).
type BungeeEntry struct {
	Index bungee.Index
	Entry Entry
}

// SavedWalk drives a Walker while mirroring every visited name into arena,
// linking each directory's children under the bungee index assigned to
// that directory. It is the Go analogue of the Rust source's
// save_to_bungee: the two concerns (walking and path interning) stay
// separable, but run in lockstep so the caller never holds full path
// strings, only arena indices.
type SavedWalk struct {
	w       *Walker
	arena   *bungee.Arena
	convert NameConverter

	// dirIndex[i] is the bungee index for the directory at depth i in the
	// walker's dirStack (dirIndex[0] is the root's own index, 0 if root
	// itself was never pushed).
	dirIndex []bungee.Index
	current  BungeeEntry
}

// NewSavedWalk wraps w, writing every visited name into arena via convert.
func NewSavedWalk(w *Walker, arena *bungee.Arena, convert NameConverter) *SavedWalk {
	return &SavedWalk{w: w, arena: arena, convert: convert, dirIndex: []bungee.Index{0}}
}

// Scan advances the underlying Walker and records the visited name into
// the bungee arena. It returns false once the walk is exhausted; see
// (*Walker).Err for the terminating error, if any.
func (s *SavedWalk) Scan() bool {
	if !s.w.Scan() {
		return false
	}
	entry := s.w.Entry()

	// The walker may have popped exhausted levels before reaching entry,
	// and may have pushed a new frame (when entry is a directory it could
	// descend into). entry.Dirs is the parent's depth, so trim dirIndex
	// back to it before linking.
	s.dirIndex = s.dirIndex[:len(entry.Dirs)+1]

	parent := s.dirIndex[len(s.dirIndex)-1]

	var idx bungee.Index
	if entry.Err == nil {
		name := entry.name()
		if converted, ok := s.convert(name); ok {
			idx = s.arena.PushString(parent, converted)
		}
	}

	if entry.IsDir() && len(s.w.dirStack) > len(entry.Dirs) {
		// The walker descended into this directory; remember its index so
		// its children link against it.
		s.dirIndex = append(s.dirIndex, idx)
	}

	s.current = BungeeEntry{Index: idx, Entry: entry}
	return true
}

// Entry returns the result of the most recent successful Scan.
func (s *SavedWalk) Entry() BungeeEntry {
	return s.current
}

// Err returns the underlying Walker's terminating error, if any.
func (s *SavedWalk) Err() error {
	return s.w.Err()
}
