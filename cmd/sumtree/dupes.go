package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rybkr/sumtree/internal/dupecache"
	"github.com/rybkr/sumtree/internal/sumfile"
	"github.com/rybkr/sumtree/internal/termcolor"
)

func runDupes(args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("dupes", flag.ContinueOnError)
	minGroup := fs.Int("min", 2, "minimum group size to report")
	cachePath := fs.String("cache", "", "SQLite cache path; when set, skips re-scanning an unchanged sum file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sumtree dupes <sum-file>")
		return 2
	}
	sumPath := fs.Arg(0)

	if *cachePath != "" {
		return runDupesCached(sumPath, *cachePath, *minGroup, cw)
	}

	hashes, names, err := loadSumFile(sumPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree dupes: %v\n", err)
		return 1
	}
	resolver := newPathResolver(hashes, names)

	groups := sumfile.FindDuplicates(hashes)
	type group struct {
		paths []string
	}
	ordered := make([]group, 0, len(groups))
	for _, idxs := range groups {
		g := group{}
		for _, i := range idxs {
			g.paths = append(g.paths, resolver.path(hashes.Entries[i].NameHash))
		}
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i].paths) > len(ordered[j].paths) })

	shown := 0
	for _, g := range ordered {
		if len(g.paths) < *minGroup {
			continue
		}
		fmt.Printf("%s (%d copies)\n", cw.Bold("duplicate group"), len(g.paths))
		for _, p := range g.paths {
			fmt.Printf("  %s\n", p)
		}
		shown++
	}
	fmt.Printf("%d duplicate groups\n", shown)
	return 0
}

// runDupesCached uses the SQLite-backed cache to skip re-reading sumPath
// when its mtime and size haven't changed since the last run, and records
// fresh entries otherwise.
func runDupesCached(sumPath, cachePath string, minGroup int, cw *termcolor.Writer) int {
	cache, err := dupecache.Open(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree dupes: opening cache: %v\n", err)
		return 1
	}
	defer cache.Close()

	info, err := os.Stat(sumPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree dupes: %v\n", err)
		return 1
	}

	fresh, err := cache.Fresh(sumPath, info.ModTime(), info.Size())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree dupes: %v\n", err)
		return 1
	}

	if !fresh {
		hashes, names, err := loadSumFile(sumPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sumtree dupes: %v\n", err)
			return 1
		}
		resolver := newPathResolver(hashes, names)
		entries := make([]dupecache.Entry, len(hashes.Entries))
		for i, e := range hashes.Entries {
			entries[i] = dupecache.Entry{Path: resolver.path(e.NameHash), ContentHash: e.ContentHash}
		}
		if err := cache.Record(sumPath, info.ModTime(), info.Size(), entries); err != nil {
			fmt.Fprintf(os.Stderr, "sumtree dupes: caching entries: %v\n", err)
			return 1
		}
	}

	groups, err := cache.Duplicates(minGroup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sumtree dupes: %v\n", err)
		return 1
	}
	for _, g := range groups {
		fmt.Printf("%s (%d copies, bucket %d)\n", cw.Bold("duplicate group"), len(g.Paths), g.ContentHash.TopBits())
		for _, p := range g.Paths {
			fmt.Printf("  %s\n", p)
		}
	}
	fmt.Printf("%d duplicate groups (cache: %s, checked at %s)\n", len(groups), cachePath, time.Now().Format(time.Kitchen))
	return 0
}
