package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/rybkr/sumtree/internal/progress"
	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/termcolor"
)

func runScan(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	out := fs.String("o", "", "output sum file path (required)")
	hashFlag := fs.String("hash", "sha256", "content hash: sha256 or blake3")
	drive := fs.String("drive", "ssd", "drive heuristic: ssd or hdd")
	showProgress := fs.Bool("progress", false, "show a live progress bar on stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: sumtree scan <root> -o <out.sum>")
		return 2
	}
	root := fs.Arg(0)

	hashType, err := parseHashType(*hashFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree scan: %v\n", err)
		return 1
	}

	cfg := runner.Config{Drive: runner.SSD}
	if *drive == "hdd" {
		cfg.Drive = runner.HDD
	}

	var onProgress func(bytesRead, filesDone int64)
	var bar *pterm.ProgressbarPrinter
	var spinner *progress.Spinner

	if *showProgress && termcolor.IsTerminal(os.Stderr.Fd()) {
		b, _ := pterm.DefaultProgressbar.WithTitle("scanning " + root).WithRemoveWhenDone(true).Start()
		bar = b
		onProgress = func(bytesRead, filesDone int64) {
			bar.Title = fmt.Sprintf("scanning %s (%d files, %s)", root, filesDone, humanBytes(bytesRead))
			bar.Add(0)
		}
	} else {
		spinner = progress.New("scanning " + root)
		spinner.Start()
		onProgress = func(bytesRead, filesDone int64) {
			spinner.SetMessage(fmt.Sprintf("scanning %s (%d files, %s)", root, filesDone, humanBytes(bytesRead)))
		}
	}

	result, err := scanTree(context.Background(), root, hashType, cfg, onProgress)

	if bar != nil {
		bar.Stop()
	}
	if spinner != nil {
		spinner.Stop()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree scan: %v\n", err)
		return 1
	}

	if err := writeSumFile(*out, result); err != nil {
		fmt.Fprintf(os.Stderr, "sumtree scan: %v\n", err)
		return 1
	}

	fmt.Printf("%s %d files written to %s\n", cw.Green("done:"), len(result.Hashes.Entries), *out)
	return 0
}

// humanBytes renders n as a compact, human-readable byte count.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for val := n / unit; val >= unit; val /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
