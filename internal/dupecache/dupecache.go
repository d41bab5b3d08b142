// Package dupecache persists content-hash to path-list mappings in a
// SQLite database so that repeated duplicate-discovery scans can skip
// re-reading sum files whose mtime and size haven't changed since they
// were last cached.
package dupecache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rybkr/sumtree/internal/fingerprint"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one hashed path recorded against a sum file.
type Entry struct {
	Path        string
	ContentHash fingerprint.Fingerprint
}

// DuplicateGroup is a set of paths that share a content hash, ordered by
// group size descending by Duplicates.
type DuplicateGroup struct {
	ContentHash fingerprint.Fingerprint
	Paths       []string
}

// Cache wraps a SQLite-backed duplicate-content index.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// brings its schema up to date via goose migrations embedded in this
// package. Pass ":memory:" for an ephemeral cache, e.g. in tests.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dupecache: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one connection pool

	migrationsFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dupecache: rooting migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrationsFS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dupecache: creating migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("dupecache: applying migrations: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Fresh reports whether the cache already holds entries for sumFilePath
// stamped with exactly this mtime and size, meaning the sum file can be
// skipped rather than re-read and re-hashed.
func (c *Cache) Fresh(sumFilePath string, mtime time.Time, size int64) (bool, error) {
	var storedMtime, storedSize int64
	err := c.db.QueryRow(
		`SELECT mtime_unix, size_bytes FROM sum_files WHERE path = ?`, sumFilePath,
	).Scan(&storedMtime, &storedSize)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dupecache: checking freshness: %w", err)
	}
	return storedMtime == mtime.Unix() && storedSize == size, nil
}

// Record replaces the cached entries for sumFilePath with entries, and
// stamps the sum file's mtime/size so a future Fresh check can skip it
// unchanged.
func (c *Cache) Record(sumFilePath string, mtime time.Time, size int64, entries []Entry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("dupecache: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sum_files WHERE path = ?`, sumFilePath); err != nil {
		return fmt.Errorf("dupecache: clearing stale entry: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO sum_files (path, mtime_unix, size_bytes) VALUES (?, ?, ?)`,
		sumFilePath, mtime.Unix(), size,
	); err != nil {
		return fmt.Errorf("dupecache: stamping sum file: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO entries (sum_file_path, content_hash, top_bits, path) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("dupecache: preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(sumFilePath, e.ContentHash.Hex(), int64(e.ContentHash.TopBits()), e.Path); err != nil {
			return fmt.Errorf("dupecache: inserting entry for %q: %w", e.Path, err)
		}
	}

	return tx.Commit()
}

// Duplicates returns every content hash shared by at least minGroupSize
// cached entries across all cached sum files, largest group first. A
// minGroupSize below 2 is treated as 2, so single-entry groups are never
// returned.
func (c *Cache) Duplicates(minGroupSize int) ([]DuplicateGroup, error) {
	if minGroupSize < 2 {
		minGroupSize = 2
	}
	rows, err := c.db.Query(
		`SELECT content_hash, path FROM entries WHERE content_hash IN (
		   SELECT content_hash FROM entries GROUP BY content_hash HAVING COUNT(*) >= ?
		 ) ORDER BY content_hash`, minGroupSize,
	)
	if err != nil {
		return nil, fmt.Errorf("dupecache: querying duplicates: %w", err)
	}
	defer rows.Close()

	byHash := make(map[string]*DuplicateGroup)
	var order []string
	for rows.Next() {
		var hashHex, path string
		if err := rows.Scan(&hashHex, &path); err != nil {
			return nil, fmt.Errorf("dupecache: scanning duplicate row: %w", err)
		}
		g, ok := byHash[hashHex]
		if !ok {
			hash, err := fingerprint.ParseHex(hashHex, true)
			if err != nil {
				return nil, fmt.Errorf("dupecache: parsing stored hash %q: %w", hashHex, err)
			}
			g = &DuplicateGroup{ContentHash: hash}
			byHash[hashHex] = g
			order = append(order, hashHex)
		}
		g.Paths = append(g.Paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]DuplicateGroup, 0, len(order))
	for _, h := range order {
		groups = append(groups, *byHash[h])
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Paths) != len(groups[j].Paths) {
			return len(groups[i].Paths) > len(groups[j].Paths)
		}
		return groups[i].ContentHash.Hex() < groups[j].ContentHash.Hex()
	})
	return groups, nil
}

// BucketCandidates returns the paths of every cached entry whose content
// hash shares topBits, a coarse pre-filter used to narrow a full compare
// before reading file contents again.
func (c *Cache) BucketCandidates(topBits uint64) ([]string, error) {
	rows, err := c.db.Query(`SELECT path FROM entries WHERE top_bits = ?`, int64(topBits))
	if err != nil {
		return nil, fmt.Errorf("dupecache: querying bucket: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("dupecache: scanning bucket row: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}
