package jobmanager

import (
	"fmt"
	"os"
	"time"
)

// evictionLoop periodically removes completed jobs whose results have not
// been accessed recently, the way the teacher's repomanager evicted
// inactive clones.
func (m *Manager) evictionLoop() {
	defer m.wg.Done()

	interval := max(m.cfg.ResultTTL/10, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

// evictStale removes jobs that have been sitting unaccessed, in a
// terminal state, for longer than ResultTTL.
func (m *Manager) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var toEvict []string

	for id, job := range m.jobs {
		job.mu.RLock()
		state := job.State
		lastAccess := job.LastAccess
		job.mu.RUnlock()

		// Never evict work that's still in flight.
		if state == StatePending || state == StateRunning {
			continue
		}

		if now.Sub(lastAccess) > m.cfg.ResultTTL {
			toEvict = append(toEvict, id)
		}
	}

	for _, id := range toEvict {
		job := m.jobs[id]
		job.mu.RLock()
		sumPath := job.SumFilePath
		lastAccess := job.LastAccess
		job.mu.RUnlock()

		if err := os.Remove(sumPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove evicted job sum file", "id", id, "path", sumPath, "error", err)
		}

		delete(m.jobs, id)
		m.logger.Info("evicted stale job", "id", id,
			"inactive_for", fmt.Sprintf("%s", now.Sub(lastAccess)))
	}
}
