package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rybkr/sumtree/internal/diffstream"
	"github.com/rybkr/sumtree/internal/report"
	"github.com/rybkr/sumtree/internal/termcolor"
)

func runDiff(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	filter := fs.String("filter", "", "only show paths fuzzy-matching this substring")
	reportFmt := fs.String("report", "", "write a drift report instead of plain text: markdown or html")
	reportOut := fs.String("out", "", "report output path (required with -report)")
	includeSame := fs.Bool("include-same", false, "include unchanged entries in the report")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: sumtree diff <old.sum> <new.sum>")
		return 2
	}

	rows, summary, err := diffSumFiles(fs.Arg(0), fs.Arg(1), *filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree diff: %v\n", err)
		return 1
	}

	if *reportFmt != "" {
		if *reportOut == "" {
			fmt.Fprintln(os.Stderr, "sumtree diff: -out is required with -report")
			return 2
		}
		if err := writeReport(*reportFmt, *reportOut, rows, *includeSame); err != nil {
			fmt.Fprintf(os.Stderr, "sumtree diff: %v\n", err)
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

// diffSumFiles merges oldPath and newPath's Hashes chunks, resolving each
// record's path via their Names chunks (when present) and optionally
// filtering to paths that fuzzy-match filter.
func diffSumFiles(oldPath, newPath, filter string) ([]report.Row, report.Summary, error) {
	oldHashes, oldNames, err := loadSumFile(oldPath)
	if err != nil {
		return nil, report.Summary{}, err
	}
	newHashes, newNames, err := loadSumFile(newPath)
	if err != nil {
		return nil, report.Summary{}, err
	}

	// Resolvers must be built from each chunk's on-disk entry order,
	// since that is the order its Names.Indices lines up against;
	// sorting (needed for the merge below) would break that pairing.
	oldResolver := newPathResolver(oldHashes, oldNames)
	newResolver := newPathResolver(newHashes, newNames)
	sortIfNeeded(oldHashes)
	sortIfNeeded(newHashes)

	d := diffstream.New(
		diffstream.NewSliceSource(oldHashes.Entries),
		diffstream.NewSliceSource(newHashes.Entries),
	)

	var rows []report.Row
	var summary report.Summary
	for d.Scan() {
		rec := d.Record()
		path := oldResolver.path(rec.Old.NameHash)
		if path == "" {
			path = newResolver.path(rec.New.NameHash)
		}
		if filter != "" && !fuzzy.MatchFold(filter, path) {
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
	return rows, summary, nil
}

func printRows(cw *termcolor.Writer, rows []report.Row) {
	for _, r := range rows {
		if r.Kind == diffstream.Same {
			continue
		}
		fmt.Printf("%s %s\n", cw.DiffKind(r.Kind), r.Path)
	}
}

func writeReport(format, out string, rows []report.Row, includeSame bool) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	opts := report.Options{IncludeSame: includeSame, Title: "sumtree drift report"}
	switch format {
	case "markdown", "md":
		_, err = report.WriteMarkdown(f, rows, opts)
	case "html":
		_, err = report.WriteHTML(f, rows, opts)
	default:
		return fmt.Errorf("unknown report format %q (want markdown or html)", format)
	}
	return err
}
