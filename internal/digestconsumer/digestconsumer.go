// Package digestconsumer adapts a streaming hasher into the callback shape
// the scan runner drives: one name digest per path, incremental content
// digestion as file bytes arrive, and a single sink call per completed
// file pairing the two into an entry.
package digestconsumer

import (
	"hash"
	"log/slog"
	"sync/atomic"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

// Entry is the (name_hash, content_hash) pair the runner ultimately writes
// into a Hashes chunk.
type Entry struct {
	NameHash    fingerprint.Fingerprint
	ContentHash fingerprint.Fingerprint
}

// Sink receives one Entry per successfully digested file.
type Sink func(Entry)

// Consumer hashes path names and file contents with the same algorithm,
// reporting bytes absorbed through a shared atomic counter (fed to a
// meter.Meter by the caller) and routing errors to a logger rather than
// aborting the run — per the pipeline's "skip and continue" failure model.
type Consumer struct {
	hashType  fingerprint.HashType
	sink      Sink
	bytesRead *atomic.Int64
	logger    *slog.Logger
}

// New constructs a Consumer. bytesRead, if non-nil, is incremented by
// UpdateFile as bytes are absorbed; pass nil to skip rate accounting.
// logger defaults to slog.Default() when nil.
func New(hashType fingerprint.HashType, sink Sink, bytesRead *atomic.Int64, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{hashType: hashType, sink: sink, bytesRead: bytesRead, logger: logger}
}

// ConsumeName hashes path once, returning its digest for use as the
// entry's name_hash.
func (c *Consumer) ConsumeName(path string) fingerprint.Fingerprint {
	h := c.hashType.NewHasher()
	h.Write([]byte(path))
	return fingerprint.FromBytes(h.Sum(nil))
}

// FileState is the mutable digest-in-progress for a single file.
type FileState struct {
	h hash.Hash
}

// StartFile returns a fresh digester for a new file.
func (c *Consumer) StartFile() *FileState {
	return &FileState{h: c.hashType.NewHasher()}
}

// UpdateFile incrementally absorbs chunk into state and advances the
// shared byte counter, if any.
func (c *Consumer) UpdateFile(state *FileState, chunk []byte) {
	state.h.Write(chunk)
	if c.bytesRead != nil {
		c.bytesRead.Add(int64(len(chunk)))
	}
}

// FinishConsume finalizes state's digest, pairs it with nameHash, and
// invokes the sink.
func (c *Consumer) FinishConsume(nameHash fingerprint.Fingerprint, state *FileState) {
	contentHash := fingerprint.FromBytes(state.h.Sum(nil))
	c.sink(Entry{NameHash: nameHash, ContentHash: contentHash})
}

// OnError records a per-file I/O failure. The pipeline continues with the
// remaining files; no entry is emitted for path.
func (c *Consumer) OnError(err error, path string) {
	c.logger.Warn("digest consumer: file skipped", "path", path, "error", err)
}
