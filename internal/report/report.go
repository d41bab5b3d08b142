// Package report renders a resolved diff as a drift report: a Markdown
// table of Added/Removed/Changed/Same entries, optionally converted to a
// standalone HTML document for archival, mirroring the way gitvista turns
// commit metadata into rendered Markdown for its web UI.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rybkr/sumtree/internal/diffstream"
	"github.com/rybkr/sumtree/internal/fingerprint"
)

// markdownRenderer enables GFM tables so the pipe tables WriteMarkdown
// emits render as <table> elements rather than literal text.
var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.Table))

// Row is one diff record with its path resolved from the Names chunk of
// whichever sum-file side carries it — diffstream.Record only carries
// hashes, so the caller joins a record against the Names chunk(s) before
// handing rows to this package.
type Row struct {
	Kind    diffstream.Kind
	Path    string
	OldHash fingerprint.Fingerprint
	NewHash fingerprint.Fingerprint
}

// Summary tallies rows by kind, computed while rendering so callers don't
// need a second pass over the diff.
type Summary struct {
	Added, Removed, Changed, Same int
}

// Total returns the number of rows counted.
func (s Summary) Total() int {
	return s.Added + s.Removed + s.Changed + s.Same
}

func (s *Summary) add(k diffstream.Kind) {
	switch k {
	case diffstream.Added:
		s.Added++
	case diffstream.Removed:
		s.Removed++
	case diffstream.Changed:
		s.Changed++
	case diffstream.Same:
		s.Same++
	}
}

// Options controls report rendering.
type Options struct {
	// IncludeSame also lists unchanged entries; a drift report is
	// normally about what changed, so this defaults to false.
	IncludeSame bool
	// Title is the report heading. Defaults to "Drift Report".
	Title string
	// GeneratedAt is stamped into the report header. Callers supply it
	// (rather than this package calling time.Now) so report generation
	// stays deterministic and testable.
	GeneratedAt time.Time
}

// WriteMarkdown renders rows as a Markdown document to w and returns the
// tallied Summary.
func WriteMarkdown(w io.Writer, rows []Row, opts Options) (Summary, error) {
	var sum Summary
	title := opts.Title
	if title == "" {
		title = "Drift Report"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&buf, "Generated: %s\n\n", opts.GeneratedAt.UTC().Format(time.RFC3339))
	}

	for _, r := range rows {
		sum.add(r.Kind)
	}
	fmt.Fprintf(&buf, "%d added, %d removed, %d changed, %d unchanged\n\n",
		sum.Added, sum.Removed, sum.Changed, sum.Same)

	buf.WriteString("| Status | Path | Old Content Hash | New Content Hash |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, r := range rows {
		if r.Kind == diffstream.Same && !opts.IncludeSame {
			continue
		}
		fmt.Fprintf(&buf, "| %s | %s | %s | %s |\n",
			r.Kind, escapeCell(r.Path), hashCell(r.Kind, r.OldHash), hashCell(r.Kind, r.NewHash))
	}

	_, err := w.Write(buf.Bytes())
	return sum, err
}

// WriteHTML renders rows to a standalone HTML document by first rendering
// Markdown, then converting it with goldmark — the same rendering path
// gitvista uses for commit message bodies, reused here for archival
// drift reports.
func WriteHTML(w io.Writer, rows []Row, opts Options) (Summary, error) {
	var md bytes.Buffer
	sum, err := WriteMarkdown(&md, rows, opts)
	if err != nil {
		return sum, err
	}

	var body bytes.Buffer
	if err := markdownRenderer.Convert(md.Bytes(), &body); err != nil {
		return sum, fmt.Errorf("report: rendering markdown: %w", err)
	}

	const tmpl = "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s</body></html>\n"
	title := opts.Title
	if title == "" {
		title = "Drift Report"
	}
	_, err = fmt.Fprintf(w, tmpl, title, body.String())
	return sum, err
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// hashCell omits the hash for Added/Removed rows, which only populate one
// side of the pair.
func hashCell(k diffstream.Kind, h fingerprint.Fingerprint) string {
	if (k == diffstream.Added && h == (fingerprint.Fingerprint{})) ||
		(k == diffstream.Removed && h == (fingerprint.Fingerprint{})) {
		return "—"
	}
	return h.Hex()
}
