// Package jobmanager handles lifecycle management of scan jobs submitted to
// a running `sumtree serve` process: queuing, bounded concurrency, progress
// subscription, and eviction of stale results. Adapted from the teacher's
// repomanager, which managed cloned Git repositories through the same
// pending/running/ready/error life cycle.
package jobmanager

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rybkr/sumtree/internal/digestconsumer"
	"github.com/rybkr/sumtree/internal/fingerprint"
	"github.com/rybkr/sumtree/internal/meter"
	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/sumfile"
)

// JobState represents the lifecycle state of a submitted scan job.
type JobState int

const (
	// StatePending indicates the job is queued for scanning.
	StatePending JobState = iota
	// StateRunning indicates the job's directory tree is currently being walked and hashed.
	StateRunning
	// StateReady indicates the scan completed and a sum file is available.
	StateReady
	// StateError indicates a failure during the scan.
	StateError
)

// String returns a human-readable representation of the state.
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config holds settings for the Manager.
type Config struct {
	DataDir            string
	MaxConcurrentScans int
	ResultTTL          time.Duration
	ScanTimeout        time.Duration
	MaxJobs            int
	HashType           fingerprint.HashType
	Runner             runner.Config
	Logger             *slog.Logger
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = "/tmp/sumtree-jobs"
	}
	if c.MaxConcurrentScans <= 0 {
		c.MaxConcurrentScans = 3
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 30 * time.Minute
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ScanProgress tracks the current throughput and completion state of a scan.
type ScanProgress struct {
	FilesScanned int64
	BytesPerSec  float64
	Done         bool   // true when the scan has reached a terminal state
	State        string // terminal state: "ready" or "error"
	Error        string // non-empty when State is "error"
}

// ManagedJob tracks a single scan request through its lifecycle.
type ManagedJob struct {
	mu          sync.RWMutex
	ID          string
	Root        string // original, un-normalized root path
	NormRoot    string // canonicalized absolute path
	State       JobState
	Error       string
	Progress    ScanProgress
	SumFilePath string
	CreatedAt   time.Time
	LastAccess  time.Time
	CompletedAt time.Time
}

// JobInfo is a read-only snapshot of a managed job's state, used by List().
type JobInfo struct {
	ID          string
	Root        string
	State       JobState
	Error       string
	SumFilePath string
	CreatedAt   time.Time
	LastAccess  time.Time
	CompletedAt time.Time
}

// Manager manages the lifecycle of submitted scan jobs.
type Manager struct {
	cfg          Config
	logger       *slog.Logger
	mu           sync.RWMutex
	jobs         map[string]*ManagedJob
	progressSubs map[string][]chan ScanProgress
	scanQueue    chan *ManagedJob
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a Manager and ensures the data directory exists.
func New(cfg Config) (*Manager, error) {
	cfg.defaults()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:          cfg,
		logger:       cfg.Logger,
		jobs:         make(map[string]*ManagedJob),
		progressSubs: make(map[string][]chan ScanProgress),
		scanQueue:    make(chan *ManagedJob, cfg.MaxJobs),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches scan workers and the eviction loop.
func (m *Manager) Start() error {
	for range m.cfg.MaxConcurrentScans {
		m.wg.Add(1)
		go m.scanWorker()
	}

	m.wg.Add(1)
	go m.evictionLoop()

	m.logger.Info("job manager started",
		"workers", m.cfg.MaxConcurrentScans,
		"data_dir", m.cfg.DataDir,
	)

	return nil
}

// Close shuts down all goroutines and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("job manager stopped")
}

// Submit normalizes root, deduplicates, and enqueues a scan if needed.
// Returns the job ID (derived from a hash of the normalized path).
func (m *Manager) Submit(root string) (string, error) {
	normRoot, err := normalizeRoot(root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}

	id := hashPath(normRoot)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Deduplication: if this root already has a job, return its ID.
	// Allow re-enqueueing jobs in error state for retry.
	if existing, exists := m.jobs[id]; exists {
		existing.mu.Lock()
		if existing.State == StateError {
			existing.State = StatePending
			existing.Error = ""
			select {
			case m.scanQueue <- existing:
			default:
				existing.State = StateError
				existing.Error = "scan queue full"
			}
			existing.mu.Unlock()
			return id, nil
		}
		existing.mu.Unlock()

		return id, nil
	}

	if len(m.jobs) >= m.cfg.MaxJobs {
		return "", fmt.Errorf("maximum number of jobs (%d) reached", m.cfg.MaxJobs)
	}

	now := time.Now()
	job := &ManagedJob{
		ID:          id,
		Root:        root,
		NormRoot:    normRoot,
		State:       StatePending,
		SumFilePath: filepath.Join(m.cfg.DataDir, id+".sum"),
		CreatedAt:   now,
		LastAccess:  now,
	}

	m.jobs[id] = job

	select {
	case m.scanQueue <- job:
	default:
		job.State = StateError
		job.Error = "scan queue full"
		return id, fmt.Errorf("scan queue full")
	}

	return id, nil
}

// SumFilePath returns the path to the job's sum file, erroring if the job
// is not yet StateReady.
func (m *Manager) SumFilePath(id string) (string, error) {
	m.mu.RLock()
	job, exists := m.jobs[id]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("job not found: %s", id)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	switch job.State {
	case StateReady:
		job.LastAccess = time.Now()
		return job.SumFilePath, nil
	case StatePending, StateRunning:
		return "", fmt.Errorf("job %s is still %s", id, job.State)
	case StateError:
		return "", fmt.Errorf("job %s has error: %s", id, job.Error)
	default:
		return "", fmt.Errorf("job %s is in unknown state", id)
	}
}

// Status returns the current state, error message, and scan progress for a job.
func (m *Manager) Status(id string) (JobState, string, ScanProgress, error) {
	m.mu.RLock()
	job, exists := m.jobs[id]
	m.mu.RUnlock()

	if !exists {
		return 0, "", ScanProgress{}, fmt.Errorf("job not found: %s", id)
	}

	job.mu.RLock()
	defer job.mu.RUnlock()
	return job.State, job.Error, job.Progress, nil
}

// SubscribeProgress registers a channel that receives scan progress updates
// for the given job ID. Returns the channel and an unsubscribe function.
// The channel is buffered (size 1) so slow consumers only miss intermediate
// updates, never the final one.
func (m *Manager) SubscribeProgress(id string) (<-chan ScanProgress, func()) {
	ch := make(chan ScanProgress, 1)

	m.mu.Lock()
	m.progressSubs[id] = append(m.progressSubs[id], ch)
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.progressSubs[id]
		for i, s := range subs {
			if s == ch {
				m.progressSubs[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(m.progressSubs[id]) == 0 {
			delete(m.progressSubs, id)
		}
	}

	return ch, unsubscribe
}

// notifyProgressSubs sends a progress update to all subscribers for the given
// job ID. Uses non-blocking send — if a subscriber's buffer is full, the old
// value is drained and replaced with the new one.
func (m *Manager) notifyProgressSubs(id string, p ScanProgress) {
	m.mu.RLock()
	subs := m.progressSubs[id]
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

// cleanupProgressSubs removes and closes all subscriber channels for a job.
func (m *Manager) cleanupProgressSubs(id string) {
	m.mu.Lock()
	subs := m.progressSubs[id]
	delete(m.progressSubs, id)
	m.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// List returns a snapshot of all managed jobs.
func (m *Manager) List() []JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]JobInfo, 0, len(m.jobs))
	for _, job := range m.jobs {
		job.mu.RLock()
		result = append(result, JobInfo{
			ID:          job.ID,
			Root:        job.Root,
			State:       job.State,
			Error:       job.Error,
			SumFilePath: job.SumFilePath,
			CreatedAt:   job.CreatedAt,
			LastAccess:  job.LastAccess,
			CompletedAt: job.CompletedAt,
		})
		job.mu.RUnlock()
	}
	return result
}

// Remove deletes a job from the registry and its sum file from disk.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	job, exists := m.jobs[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("job not found: %s", id)
	}
	delete(m.jobs, id)
	m.mu.Unlock()

	job.mu.Lock()
	sumPath := job.SumFilePath
	job.mu.Unlock()

	if err := os.Remove(sumPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove job sum file", "id", id, "path", sumPath, "error", err)
	}

	m.logger.Info("job removed", "id", id)
	return nil
}

// scanWorker pulls jobs from the scan queue and processes them.
func (m *Manager) scanWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case job, ok := <-m.scanQueue:
			if !ok {
				return
			}
			m.processScan(job)
		}
	}
}

// processScan runs a full scan-runner pass over the job's root and writes
// the resulting entries to a sum file, reporting throughput as it goes.
func (m *Manager) processScan(job *ManagedJob) {
	job.mu.Lock()
	job.State = StateRunning
	root := job.NormRoot
	sumPath := job.SumFilePath
	job.mu.Unlock()

	m.logger.Info("scanning job", "id", job.ID, "root", root)

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ScanTimeout)
	defer cancel()

	fail := func(err error) {
		job.mu.Lock()
		job.State = StateError
		job.Error = err.Error()
		job.Progress = ScanProgress{}
		job.mu.Unlock()
		m.logger.Error("scan failed", "id", job.ID, "error", err)
		m.notifyProgressSubs(job.ID, ScanProgress{Done: true, State: "error", Error: err.Error()})
		m.cleanupProgressSubs(job.ID)
	}

	out, err := os.Create(sumPath)
	if err != nil {
		fail(fmt.Errorf("creating sum file: %w", err))
		return
	}
	defer out.Close()

	var bytesRead atomic.Int64
	var filesDone atomic.Int64
	var entries []sumfile.Entry
	var mu sync.Mutex

	consumer := digestconsumer.New(m.cfg.HashType, func(e digestconsumer.Entry) {
		mu.Lock()
		entries = append(entries, sumfile.Entry{NameHash: e.NameHash, ContentHash: e.ContentHash})
		mu.Unlock()
		filesDone.Add(1)
	}, &bytesRead, m.logger)

	r := runner.New(m.cfg.Runner, consumer)

	throughput := meter.New(8)
	stopSampling := make(chan struct{})
	var sampleWG sync.WaitGroup
	sampleWG.Add(1)
	go func() {
		defer sampleWG.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var last int64
		for {
			select {
			case <-stopSampling:
				return
			case <-ticker.C:
				total := bytesRead.Load()
				throughput.Append(total - last)
				last = total
				throughput.Sample()
				job.mu.Lock()
				job.Progress = ScanProgress{FilesScanned: filesDone.Load(), BytesPerSec: throughput.Average()}
				progress := job.Progress
				job.mu.Unlock()
				m.notifyProgressSubs(job.ID, progress)
			}
		}
	}()

	scanErr := r.Scan(ctx, root)
	close(stopSampling)
	sampleWG.Wait()

	if scanErr != nil {
		fail(fmt.Errorf("scan: %w", scanErr))
		return
	}

	w, err := sumfile.NewWriter(out, sumfile.LatestVersion(), [57]byte{})
	if err != nil {
		fail(fmt.Errorf("opening sum file writer: %w", err))
		return
	}

	chunk := sumfile.HashesChunk{
		NameHashType: m.cfg.HashType,
		DataHashType: m.cfg.HashType,
		Entries:      entries,
	}
	chunk.Sort()

	if err := w.WriteHashes(&chunk); err != nil {
		fail(fmt.Errorf("writing hashes chunk: %w", err))
		return
	}
	if err := w.Close(); err != nil {
		fail(fmt.Errorf("closing sum file: %w", err))
		return
	}

	now := time.Now()
	job.mu.Lock()
	job.State = StateReady
	job.Error = ""
	job.Progress = ScanProgress{FilesScanned: filesDone.Load(), Done: true, State: "ready"}
	job.CompletedAt = now
	job.LastAccess = now
	job.mu.Unlock()

	m.logger.Info("job ready", "id", job.ID, "files", filesDone.Load())
	m.notifyProgressSubs(job.ID, ScanProgress{FilesScanned: filesDone.Load(), Done: true, State: "ready"})
	m.cleanupProgressSubs(job.ID)
}

// normalizeRoot canonicalizes a scan root for deduplication: it resolves
// to an absolute, cleaned path.
func normalizeRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("empty root path")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// hashPath returns the first 16 characters of the SHA-256 hex digest of
// the normalized path. The result is deterministic and filesystem-safe.
func hashPath(normalizedPath string) string {
	h := sha256.Sum256([]byte(normalizedPath))
	return fmt.Sprintf("%x", h)[:16]
}
