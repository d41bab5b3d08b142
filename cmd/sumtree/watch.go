package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/termcolor"
	"github.com/rybkr/sumtree/internal/watch"
)

func runWatch(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	out := fs.String("o", "", "output sum file path (required)")
	hashFlag := fs.String("hash", "sha256", "content hash: sha256 or blake3")
	debounce := fs.Duration("debounce", 200*time.Millisecond, "coalesce bursts of changes into one rescan")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: sumtree watch <root> -o <out.sum>")
		return 2
	}
	root := fs.Arg(0)

	hashType, err := parseHashType(*hashFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree watch: %v\n", err)
		return 1
	}

	rescan := func() {
		result, err := scanTree(context.Background(), root, hashType, runner.Config{Drive: runner.SSD}, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", cw.Red("rescan failed:"), err)
			return
		}
		if err := writeSumFile(*out, result); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", cw.Red("write failed:"), err)
			return
		}
		fmt.Printf("%s %d files (%s)\n", cw.Green("rescanned:"), len(result.Hashes.Entries), time.Now().Format(time.Kitchen))
	}

	rescan()

	w, err := watch.New(root, watch.Config{Debounce: *debounce})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree watch: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s watching %s for changes (Ctrl-C to stop)\n", cw.BoldCyan("sumtree"), root)
	w.Run(ctx, rescan)
	return 0
}
