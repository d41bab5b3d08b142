package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rybkr/sumtree/internal/bungee"
	"github.com/rybkr/sumtree/internal/digestconsumer"
	"github.com/rybkr/sumtree/internal/fingerprint"
	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/sumfile"
	"github.com/rybkr/sumtree/internal/walk"
)

// parseHashType resolves a -hash flag value to a fingerprint.HashType.
func parseHashType(s string) (fingerprint.HashType, error) {
	switch s {
	case "", "sha256", "sha2-256":
		return fingerprint.HashSHA256, nil
	case "blake3":
		return fingerprint.HashBLAKE3, nil
	default:
		return 0, fmt.Errorf("unknown hash type %q (want sha256 or blake3)", s)
	}
}

// scanResult is the product of scanning a directory tree: a sorted
// Hashes chunk plus the Names chunk that resolves each entry back to the
// relative path it was found at.
type scanResult struct {
	Hashes *sumfile.HashesChunk
	Names  *sumfile.NamesChunk
}

// scanTree walks root twice: once cheaply (metadata only, via
// walk.SavedWalk) to intern every relative path into a bungee arena
// keyed by the same name hash the runner will later produce, and once
// for real (via runner.Scan) to read and hash file contents. The two
// passes share one digestconsumer so ConsumeName's hashing logic, and
// thus the join key between them, is never duplicated.
//
// onProgress, if non-nil, is invoked roughly once per second with the
// cumulative bytes read and files completed so far.
func scanTree(ctx context.Context, root string, hashType fingerprint.HashType, cfg runner.Config, onProgress func(bytesRead, filesDone int64)) (*scanResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bytesRead atomic.Int64
	var filesDone atomic.Int64
	var mu sync.Mutex
	var entries []sumfile.Entry

	consumer := digestconsumer.New(hashType, func(e digestconsumer.Entry) {
		mu.Lock()
		entries = append(entries, sumfile.Entry{NameHash: e.NameHash, ContentHash: e.ContentHash})
		mu.Unlock()
		filesDone.Add(1)
	}, &bytesRead, logger)

	arena, byNameHash, err := buildNameIndex(root, consumer)
	if err != nil {
		return nil, fmt.Errorf("indexing names: %w", err)
	}

	cfg.Logger = logger
	r := runner.New(cfg, consumer)

	stop := make(chan struct{})
	var sampleWG sync.WaitGroup
	if onProgress != nil {
		sampleWG.Add(1)
		go sampleProgress(stop, &sampleWG, &bytesRead, &filesDone, onProgress)
	}

	scanErr := r.Scan(ctx, root)
	close(stop)
	sampleWG.Wait()
	if scanErr != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, scanErr)
	}

	chunk := &sumfile.HashesChunk{NameHashType: hashType, DataHashType: hashType, Entries: entries}
	chunk.Sort()

	indices := make([]bungee.Index, len(chunk.Entries))
	for i, e := range chunk.Entries {
		indices[i] = byNameHash[e.NameHash]
	}

	return &scanResult{
		Hashes: chunk,
		Names:  &sumfile.NamesChunk{Arena: arena, Indices: indices},
	}, nil
}

func sampleProgress(stop <-chan struct{}, wg *sync.WaitGroup, bytesRead, filesDone *atomic.Int64, onProgress func(int64, int64)) {
	defer wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			onProgress(bytesRead.Load(), filesDone.Load())
		}
	}
}

// buildNameIndex walks root in deterministic (name-sorted) order, interning
// every regular file's relative path into arena, and returns a map from
// that file's name hash (computed the same way the runner will) to the
// bungee index of its path chain.
func buildNameIndex(root string, consumer *digestconsumer.Consumer) (*bungee.Arena, map[fingerprint.Fingerprint]bungee.Index, error) {
	w, err := walk.New(root, walk.CachedSorted)
	if err != nil {
		return nil, nil, err
	}
	defer w.Close()

	arena := bungee.New()
	sw := walk.NewSavedWalk(w, arena, func(name string) (string, bool) { return name, true })

	index := map[fingerprint.Fingerprint]bungee.Index{}
	for sw.Scan() {
		be := sw.Entry()
		if be.Entry.Err != nil || be.Entry.IsDir() {
			continue
		}
		nameHash := consumer.ConsumeName(be.Entry.Path())
		index[nameHash] = be.Index
	}
	if err := sw.Err(); err != nil {
		return nil, nil, err
	}
	return arena, index, nil
}

// writeSumFile serializes result to a new sum file at path.
func writeSumFile(path string, result *scanResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sum file: %w", err)
	}
	defer f.Close()

	w, err := sumfile.NewWriter(f, sumfile.LatestVersion(), [57]byte{})
	if err != nil {
		return fmt.Errorf("opening sum file writer: %w", err)
	}
	if err := w.WriteHashes(result.Hashes); err != nil {
		return fmt.Errorf("writing hashes chunk: %w", err)
	}
	if err := w.WriteNames(result.Names); err != nil {
		return fmt.Errorf("writing names chunk: %w", err)
	}
	return w.Close()
}

// relPath resolves idx's full path within arena, relative-separated with
// the OS path separator.
func relPath(arena *bungee.Arena, idx bungee.Index) string {
	return arena.PathOf(string(filepath.Separator), idx)
}

// loadSumFile reads path's Hashes and (if present) Names chunks. A sum
// file written without a Names chunk (e.g. by a serve-mode job) yields a
// nil *sumfile.NamesChunk; callers that need paths must handle that.
func loadSumFile(path string) (*sumfile.HashesChunk, *sumfile.NamesChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening sum file: %w", err)
	}
	defer f.Close()

	rd, err := sumfile.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sum file header: %w", err)
	}

	var hashes *sumfile.HashesChunk
	var names *sumfile.NamesChunk
	for {
		block, err := rd.Next()
		done := errors.Is(err, sumfile.ErrEndOfStream)
		if err != nil && !done {
			return nil, nil, fmt.Errorf("reading block: %w", err)
		}
		switch b := block.(type) {
		case *sumfile.HashesChunk:
			hashes = b
		case *sumfile.NamesChunk:
			names = b
		}
		if done {
			break
		}
	}
	if hashes == nil {
		return nil, nil, fmt.Errorf("sum file %s has no hashes chunk", path)
	}
	return hashes, names, nil
}

// pathResolver looks up the relative path for an entry's NameHash, given
// a Names chunk whose Indices line up with the already-sorted Hashes
// chunk it was written alongside.
type pathResolver struct {
	byNameHash map[fingerprint.Fingerprint]string
}

// newPathResolver builds a resolver from a Hashes/Names pair. names may
// be nil, producing a resolver that always reports "" (hash-only sum
// file, no paths recorded).
func newPathResolver(hashes *sumfile.HashesChunk, names *sumfile.NamesChunk) *pathResolver {
	pr := &pathResolver{byNameHash: map[fingerprint.Fingerprint]string{}}
	if names == nil {
		return pr
	}
	for i, e := range hashes.Entries {
		if i >= len(names.Indices) {
			break
		}
		pr.byNameHash[e.NameHash] = relPath(names.Arena, names.Indices[i])
	}
	return pr
}

func (pr *pathResolver) path(nameHash fingerprint.Fingerprint) string {
	return pr.byNameHash[nameHash]
}

// sortIfNeeded sorts chunk by NameHash only if it isn't already, avoiding
// a needless re-sort of a chunk a scan already produced in order.
func sortIfNeeded(chunk *sumfile.HashesChunk) {
	if chunk.Order != sumfile.SortedByName {
		chunk.Sort()
	}
}
