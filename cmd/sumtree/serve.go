package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rybkr/sumtree/internal/fingerprint"
	"github.com/rybkr/sumtree/internal/httpserver"
	"github.com/rybkr/sumtree/internal/jobmanager"
	"github.com/rybkr/sumtree/internal/live"
	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/termcolor"
)

func runServe(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	dataDir := fs.String("data-dir", "", "directory for sum-file results (defaults to an OS temp dir)")
	maxScans := fs.Int("max-scans", 3, "maximum concurrent scans")
	maxJobs := fs.Int("max-jobs", 100, "maximum tracked jobs")
	resultTTL := fs.Duration("result-ttl", 24*time.Hour, "how long a ready/errored job's result is kept")
	hashFlag := fs.String("hash", "sha256", "content hash used for submitted scans: sha256 or blake3")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	hashType, err := parseHashType(*hashFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree serve: %v\n", err)
		return 1
	}

	logger := slog.Default()

	jobs, err := jobmanager.New(jobmanager.Config{
		DataDir:            *dataDir,
		MaxConcurrentScans: *maxScans,
		MaxJobs:            *maxJobs,
		ResultTTL:          *resultTTL,
		HashType:           hashType,
		Runner:             runner.Config{Drive: runner.SSD, Logger: logger},
		Logger:             logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree serve: %v\n", err)
		return 1
	}
	if err := jobs.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "sumtree serve: %v\n", err)
		return 1
	}
	defer jobs.Close()

	hub := live.NewHub(logger)
	srv := httpserver.New(*addr, jobs, hub, logger)

	fmt.Printf("%s listening on %s\n", cw.BoldCyan("sumtree"), *addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		srv.Shutdown()
		<-errCh
		return 0
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "sumtree serve: %v\n", err)
			return 1
		}
		return 0
	}
}
