package report

import (
	"strings"
	"testing"
	"time"

	"github.com/rybkr/sumtree/internal/diffstream"
	"github.com/rybkr/sumtree/internal/fingerprint"
)

func fp(b byte) fingerprint.Fingerprint {
	var f fingerprint.Fingerprint
	f[0] = b
	return f
}

func sampleRows() []Row {
	return []Row{
		{Kind: diffstream.Added, Path: "new.txt", NewHash: fp(1)},
		{Kind: diffstream.Removed, Path: "gone.txt", OldHash: fp(2)},
		{Kind: diffstream.Changed, Path: "edited.txt", OldHash: fp(3), NewHash: fp(4)},
		{Kind: diffstream.Same, Path: "stable.txt", OldHash: fp(5), NewHash: fp(5)},
	}
}

func TestWriteMarkdownSkipsSameByDefault(t *testing.T) {
	var buf strings.Builder
	sum, err := WriteMarkdown(&buf, sampleRows(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sum != (Summary{Added: 1, Removed: 1, Changed: 1, Same: 1}) {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	out := buf.String()
	if strings.Contains(out, "stable.txt") {
		t.Fatal("Same row should be omitted by default")
	}
	if !strings.Contains(out, "new.txt") || !strings.Contains(out, "edited.txt") || !strings.Contains(out, "gone.txt") {
		t.Fatal("expected all non-Same rows present")
	}
}

func TestWriteMarkdownIncludeSame(t *testing.T) {
	var buf strings.Builder
	if _, err := WriteMarkdown(&buf, sampleRows(), Options{IncludeSame: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "stable.txt") {
		t.Fatal("expected Same row present when IncludeSame is set")
	}
}

func TestWriteMarkdownEscapesPipesInPath(t *testing.T) {
	var buf strings.Builder
	rows := []Row{{Kind: diffstream.Added, Path: "weird|name.txt", NewHash: fp(1)}}
	if _, err := WriteMarkdown(&buf, rows, Options{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `weird\|name.txt`) {
		t.Fatalf("expected escaped pipe in path, got: %s", buf.String())
	}
}

func TestWriteHTMLProducesDocument(t *testing.T) {
	var buf strings.Builder
	sum, err := WriteHTML(&buf, sampleRows(), Options{Title: "Nightly Scan", GeneratedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total() != 4 {
		t.Fatalf("expected 4 total rows, got %d", sum.Total())
	}
	out := buf.String()
	if !strings.Contains(out, "<html>") || !strings.Contains(out, "Nightly Scan") {
		t.Fatalf("expected rendered HTML document, got: %s", out)
	}
	if !strings.Contains(out, "<table>") {
		t.Fatalf("expected goldmark to render the markdown table, got: %s", out)
	}
}

func TestHashCellOmittedForOneSidedRows(t *testing.T) {
	var buf strings.Builder
	rows := []Row{{Kind: diffstream.Added, Path: "new.txt", NewHash: fp(9)}}
	if _, err := WriteMarkdown(&buf, rows, Options{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "—") {
		t.Fatal("expected an em-dash placeholder for the absent old hash")
	}
}
