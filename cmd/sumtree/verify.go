package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rybkr/sumtree/internal/diffstream"
	"github.com/rybkr/sumtree/internal/progress"
	"github.com/rybkr/sumtree/internal/report"
	"github.com/rybkr/sumtree/internal/runner"
	"github.com/rybkr/sumtree/internal/termcolor"
)

func runVerify(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	filter := fs.String("filter", "", "only show paths fuzzy-matching this substring")
	hashFlag := fs.String("hash", "sha256", "content hash: sha256 or blake3 (must match the baseline)")
	reportFmt := fs.String("report", "", "write a drift report instead of plain text: markdown or html")
	reportOut := fs.String("out", "", "report output path (required with -report)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: sumtree verify <root> <baseline.sum>")
		return 2
	}
	root, baselinePath := fs.Arg(0), fs.Arg(1)

	hashType, err := parseHashType(*hashFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree verify: %v\n", err)
		return 1
	}

	spinner := progress.New("verifying " + root)
	spinner.Start()
	result, err := scanTree(context.Background(), root, hashType, runner.Config{Drive: runner.SSD}, func(bytesRead, filesDone int64) {
		spinner.SetMessage(fmt.Sprintf("verifying %s (%d files, %s)", root, filesDone, humanBytes(bytesRead)))
	})
	spinner.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree verify: %v\n", err)
		return 1
	}

	baselineHashes, baselineNames, err := loadSumFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree verify: %v\n", err)
		return 1
	}
	currentResolver := newPathResolver(result.Hashes, result.Names)
	baselineResolver := newPathResolver(baselineHashes, baselineNames)
	sortIfNeeded(baselineHashes)

	d := diffstream.New(
		diffstream.NewSliceSource(baselineHashes.Entries),
		diffstream.NewSliceSource(result.Hashes.Entries),
	)

	var rows []report.Row
	var summary report.Summary
	for d.Scan() {
		rec := d.Record()
		path := baselineResolver.path(rec.Old.NameHash)
		if path == "" {
			path = currentResolver.path(rec.New.NameHash)
		}
		if *filter != "" && !fuzzy.MatchFold(*filter, path) {
			continue
		}
		switch rec.Kind {
		case diffstream.Added:
			summary.Added++
		case diffstream.Removed:
			summary.Removed++
		case diffstream.Changed:
			summary.Changed++
		case diffstream.Same:
			summary.Same++
		}
		rows = append(rows, report.Row{Kind: rec.Kind, Path: path, OldHash: rec.Old.ContentHash, NewHash: rec.New.ContentHash})
	}

	if *reportFmt != "" {
		if *reportOut == "" {
			fmt.Fprintln(os.Stderr, "sumtree verify: -out is required with -report")
			return 2
		}
		if err := writeReport(*reportFmt, *reportOut, rows, false); err != nil {
			fmt.Fprintf(os.Stderr, "sumtree verify: %v\n", err)
			return 1
		}
		fmt.Printf("report written to %s\n", *reportOut)
	} else {
		printRows(cw, rows)
	}

	fmt.Printf("%d added, %d removed, %d changed, %d unchanged\n",
		summary.Added, summary.Removed, summary.Changed, summary.Same)

	if summary.Added+summary.Removed+summary.Changed > 0 {
		return 1
	}
	return 0
}
