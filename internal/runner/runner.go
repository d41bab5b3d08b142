// Package runner implements the three-stage scan pipeline: a scheduler
// walks the tree and admits files under a permit budget, a reader pool
// fills buffers borrowed from a shared lending stack, and a worker pool
// drains those buffers into a digest consumer. The three stages overlap:
// while one file is being hashed, the next is already being read, and the
// one after that is already queued behind the admission semaphore.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rybkr/sumtree/internal/digestconsumer"
	"github.com/rybkr/sumtree/internal/lifo"
	"github.com/rybkr/sumtree/internal/permits"
	"github.com/rybkr/sumtree/internal/walk"
)

// DriveType selects the reader/worker thread-count heuristic.
type DriveType int

const (
	// SSD sets reader and worker counts both to the number of available
	// cores, since parallel random reads do not starve the device.
	SSD DriveType = iota
	// HDD serializes reads (one reader) while still hashing in parallel
	// (up to 4 workers), since concurrent seeks thrash a spinning disk.
	HDD
	// Custom uses caller-supplied Readers/Workers counts.
	Custom
)

// Config configures a Runner. Zero values are filled by defaults().
type Config struct {
	Drive    DriveType
	Readers  int // only consulted when Drive == Custom
	Workers  int // only consulted when Drive == Custom
	WalkMode walk.Mode

	MaxBuffersPerFile int // default 32
	MaxTotalBuffers   int // default 1024
	ChunkSize         int // default 256 KiB, floor 16 bytes
	MaxConcurrentFiles int // default 128

	// DrainTimeout bounds how long Scan's final drain blocks reacquiring
	// every permit, tolerating permits leaked by a panicking worker.
	// Default 30s.
	DrainTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Readers <= 0 {
		c.Readers = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxBuffersPerFile <= 0 {
		c.MaxBuffersPerFile = 32
	}
	if c.MaxTotalBuffers <= 0 {
		c.MaxTotalBuffers = 1024
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 256 * 1024
	}
	if c.ChunkSize < 16 {
		c.ChunkSize = 16
	}
	if c.MaxConcurrentFiles <= 0 {
		c.MaxConcurrentFiles = 128
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// threadCounts resolves (readers, workers) from the configured drive type,
// warning when a Custom configuration risks worker starvation.
func (c *Config) threadCounts() (readers, workers int) {
	cores := runtime.GOMAXPROCS(0)
	switch c.Drive {
	case SSD:
		return cores, cores
	case HDD:
		return 1, min(cores, 4)
	default:
		if c.Readers > c.Workers {
			c.Logger.Warn("runner: reader count exceeds worker count, workers may starve waiting on buffers held by finished readers",
				"readers", c.Readers, "workers", c.Workers)
		}
		return c.Readers, c.Workers
	}
}

// buffer is a reusable byte slice plus the length actually populated by
// the last read.
type buffer struct {
	data []byte
	n    int
}

// fileJob is the unit of work handed from the scheduler to a reader and a
// worker: a path, the per-file buffer channel linking them, and the slot
// the reader reports its terminal error into.
type fileJob struct {
	path   string
	chunks chan *buffer

	// readErr is set by readFile before it closes chunks, if the read
	// ended in an error rather than a clean EOF. The channel close
	// establishes happens-before visibility to the worker, so no
	// additional synchronization is needed to read it after ranging over
	// chunks completes.
	readErr error
}

// Runner drives the scheduler/reader/worker pipeline described above. A
// Runner is single-use: call Scan once per instance.
type Runner struct {
	cfg      Config
	consumer *digestconsumer.Consumer
	pool     *lifo.Stack[*buffer]
	admit    *permits.Semaphore
	stop     atomic.Bool
}

// New constructs a Runner. consumer receives one Entry per successfully
// digested regular file via its Sink.
func New(cfg Config, consumer *digestconsumer.Consumer) *Runner {
	cfg.defaults()
	initial := make([]*buffer, cfg.MaxTotalBuffers)
	for i := range initial {
		initial[i] = &buffer{data: make([]byte, cfg.ChunkSize)}
	}
	return &Runner{
		cfg:      cfg,
		consumer: consumer,
		pool:     lifo.New(initial),
		admit:    permits.New(cfg.MaxConcurrentFiles),
	}
}

// Stop halts the scheduler before it admits the next file. Already
// admitted files run to completion. Safe to call from any goroutine, any
// number of times.
func (r *Runner) Stop() {
	r.stop.Store(true)
}

// Scan walks root, hashing every regular file it finds, and blocks until
// every admitted file has completed (or ctx is cancelled and the pipeline
// drains). It returns an error only when root itself cannot be opened;
// walk errors and per-file I/O errors never reach the caller — they are
// reported through the consumer's OnError and the scan continues.
func (r *Runner) Scan(ctx context.Context, root string) error {
	readers, workers := r.cfg.threadCounts()

	g, gctx := errgroup.WithContext(ctx)
	readerSem := permits.New(readers)
	workerSem := permits.New(workers)

	w, err := walk.New(root, r.cfg.WalkMode)
	if err != nil {
		return fmt.Errorf("runner: opening scan root: %w", err)
	}
	defer w.Close()

	scheduled := 0
	for w.Scan() {
		if gctx.Err() != nil {
			break
		}
		if r.stop.Load() {
			break
		}

		entry := w.Entry()
		if entry.Err != nil {
			r.consumer.OnError(entry.Err, entry.Path())
			continue
		}
		if entry.IsDir() || entry.Type&(os.ModeSymlink|os.ModeNamedPipe|os.ModeSocket|os.ModeDevice) != 0 {
			continue
		}

		r.admit.Acquire(1)
		path := entry.Path()
		job := &fileJob{path: path, chunks: make(chan *buffer, r.cfg.MaxBuffersPerFile)}
		scheduled++

		g.Go(func() error {
			readerSem.Acquire(1)
			defer readerSem.Release(1)
			r.readFile(job)
			return nil
		})
		g.Go(func() error {
			workerSem.Acquire(1)
			defer workerSem.Release(1)
			r.hashFileRecovered(job)
			return nil
		})
	}
	if walkErr := w.Err(); walkErr != nil {
		r.consumer.OnError(walkErr, root)
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.drain(scheduled)
	return nil
}

// readFile opens path, streams it through buffers borrowed from the shared
// pool, and sends each populated buffer down job.chunks in read order. On
// any read error it sends whatever was read, reports the error, and
// terminates; on EOF it closes the channel normally.
func (r *Runner) readFile(job *fileJob) {
	defer close(job.chunks)

	f, err := os.Open(job.path)
	if err != nil {
		job.readErr = err
		r.consumer.OnError(err, job.path)
		return
	}
	defer f.Close()

	for {
		buf := r.pool.Lend()
		if len(buf.data) < r.cfg.ChunkSize {
			buf.data = make([]byte, r.cfg.ChunkSize)
		}
		// io.ReadFull reports io.ErrUnexpectedEOF when the final read is
		// short, which is the normal way a file's last partial chunk
		// surfaces here — it is not a failure.
		n, err := io.ReadFull(f, buf.data)
		if n > 0 {
			buf.n = n
			job.chunks <- buf
		} else {
			r.pool.GiveBack(buf)
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			job.readErr = err
			r.consumer.OnError(err, job.path)
			return
		}
	}
}

// hashFileRecovered runs hashFile behind a panic handler: a panicking
// worker is logged rather than allowed to crash the process, matching the
// "worker panic does not abort the pipeline" failure model. The admit
// permit for this file is only released on the clean path — a recovered
// panic deliberately leaks it, which is why drain is time-bounded rather
// than an unconditional wait.
func (r *Runner) hashFileRecovered(job *fileJob) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.Error("runner: worker panic recovered, permit leaked", "path", job.path, "panic", rec)
		}
	}()
	r.hashFile(job)
	r.admit.Release(1)
}

// hashFile drains job.chunks, feeding each buffer to a fresh digester and
// returning it to the shared pool, and emits the finalized entry on a
// clean channel close (never on a reader error, per the "partial reads
// are not emitted" rule).
func (r *Runner) hashFile(job *fileJob) {
	nameHash := r.consumer.ConsumeName(job.path)
	state := r.consumer.StartFile()

	for buf := range job.chunks {
		r.consumer.UpdateFile(state, buf.data[:buf.n])
		r.pool.GiveBack(buf)
	}
	// job.readErr is only safe to read here because the channel close
	// that ended the range above happens-after readFile's final write to
	// it. A non-nil readErr means the reader already reported the failure
	// via OnError; no entry is emitted for a partially-read file.
	if job.readErr == nil {
		r.consumer.FinishConsume(nameHash, state)
	}
}

// drain waits up to DrainTimeout for every admitted file to release its
// permit, tolerating permits leaked by a panicking worker goroutine.
func (r *Runner) drain(scheduled int) {
	done := make(chan struct{})
	go func() {
		r.admit.Acquire(r.cfg.MaxConcurrentFiles)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.cfg.DrainTimeout):
		r.cfg.Logger.Warn("runner: drain timed out waiting for permits, some may have leaked",
			"scheduled", scheduled, "timeout", r.cfg.DrainTimeout)
	}
}
