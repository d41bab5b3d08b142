//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rybkr/sumtree/internal/fingerprint"
	"github.com/rybkr/sumtree/internal/httpserver"
	"github.com/rybkr/sumtree/internal/jobmanager"
	"github.com/rybkr/sumtree/internal/live"
)

// TestServerIntegration verifies the sumtree server starts, accepts a scan
// job submission, serves its status and resulting sum file over HTTP, and
// broadcasts live progress over a websocket.
//
// Note: this test cannot run in parallel with others in this package
// because it binds a fixed port for predictability.
func TestServerIntegration(t *testing.T) {
	scanRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(scanRoot, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(scanRoot, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scanRoot, "sub", "b.txt"), []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobs, err := jobmanager.New(jobmanager.Config{
		DataDir:            t.TempDir(),
		MaxConcurrentScans: 2,
		ResultTTL:          time.Hour,
		ScanTimeout:        30 * time.Second,
		MaxJobs:            10,
		HashType:           fingerprint.HashSHA256,
	})
	if err != nil {
		t.Fatalf("failed to create job manager: %v", err)
	}
	if err := jobs.Start(); err != nil {
		t.Fatalf("failed to start job manager: %v", err)
	}
	defer jobs.Close()

	hub := live.NewHub(nil)
	srv := httpserver.New(":18080", jobs, hub, nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Shutdown()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-errCh:
		t.Fatalf("server failed to start: %v", err)
	default:
	}

	baseURL := "http://localhost:18080"
	var jobID string

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/healthz")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health httpserver.HealthStatus
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode health response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("submit scan job", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"root": scanRoot})
		resp, err := http.Post(baseURL+"/api/jobs", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("submit request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status code = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		var sub struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
			t.Fatalf("failed to decode submit response: %v", err)
		}
		if sub.ID == "" {
			t.Fatal("expected non-empty job ID")
		}
		jobID = sub.ID
	})

	t.Run("job reaches ready and sum file downloads", func(t *testing.T) {
		if jobID == "" {
			t.Skip("no job submitted")
		}

		deadline := time.Now().Add(10 * time.Second)
		for {
			resp, err := http.Get(baseURL + "/api/jobs/" + jobID)
			if err != nil {
				t.Fatalf("status request failed: %v", err)
			}
			var status struct {
				State string `json:"state"`
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				t.Fatalf("failed to decode status response: %v", err)
			}
			resp.Body.Close()

			if status.State == "ready" {
				break
			}
			if status.State == "error" {
				t.Fatalf("job entered error state: %s", status.Error)
			}
			if time.Now().After(deadline) {
				t.Fatalf("job did not reach ready state in time, last state: %s", status.State)
			}
			time.Sleep(25 * time.Millisecond)
		}

		resp, err := http.Get(baseURL + "/api/jobs/" + jobID + "/sumfile")
		if err != nil {
			t.Fatalf("sumfile download failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status code = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			t.Fatalf("failed to read sum file body: %v", err)
		}
		if buf.Len() < sumFileMinSize {
			t.Errorf("sum file suspiciously small: %d bytes", buf.Len())
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("HsUm")) {
			t.Errorf("sum file missing magic header, got first 4 bytes: %q", buf.Bytes()[:4])
		}
	})

	t.Run("unknown job returns 404", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/jobs/does-not-exist")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("live progress websocket accepts a connection", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial("ws://localhost:18080/api/live", nil)
		if err != nil {
			t.Fatalf("websocket dial failed: %v (status: %v)", err, resp)
		}
		defer conn.Close()

		hub.Broadcast(live.Progress{FilesDone: 1})

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var p live.Progress
		if err := conn.ReadJSON(&p); err != nil {
			t.Fatalf("failed to read progress frame: %v", err)
		}
		if p.FilesDone != 1 {
			t.Errorf("FilesDone = %d, want 1", p.FilesDone)
		}
	})

	t.Run("malformed job submission is rejected with 400", func(t *testing.T) {
		resp, err := http.Post(baseURL+"/api/jobs", "application/json", bytes.NewReader([]byte("{not json")))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

const sumFileMinSize = 64 // a bare main header with no blocks
