// Package cache implements PEBBL's content-addressed compiled-chunk cache:
// a sqlite-backed store keyed by the SHA-256 of the source text that
// produced a Chunk, so recompiling unchanged source is a single lookup
// instead of a full compile. The store is durable sqlite rather than an
// in-memory map so the cache survives across process runs.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pebbl-lang/pebbl/internal/serialize"
	"github.com/pebbl-lang/pebbl/pkg/bytecode"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	hash       BLOB PRIMARY KEY,
	cbor       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Cache is a content-addressed Chunk store backed by a sqlite database file.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the chunks table exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the content key for a given source text.
func Hash(source string) [32]byte {
	return sha256.Sum256([]byte(source))
}

// Put serializes chunk canonically and stores it under the content hash of
// source, overwriting any existing entry for that hash. Because
// serialization is canonical, compiling the same source text twice
// produces byte-identical CBOR and therefore a no-op rewrite.
func (c *Cache) Put(source string, chunk *bytecode.Chunk) ([32]byte, error) {
	hash := Hash(source)
	data, err := serialize.MarshalChunk(chunk)
	if err != nil {
		return hash, fmt.Errorf("cache: marshal chunk: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO chunks (hash, cbor, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET cbor = excluded.cbor, created_at = excluded.created_at`,
		hash[:], data, time.Now().Unix(),
	)
	if err != nil {
		return hash, fmt.Errorf("cache: insert: %w", err)
	}
	return hash, nil
}

// Get looks up the Chunk cached for source's content hash. ok is false if
// no entry exists for that hash. alloc allocates a heap String for each
// string constant in the decoded Chunk (see serialize.UnmarshalChunk).
func (c *Cache) Get(source string, alloc func(s string) value.Value) (chunk *bytecode.Chunk, ok bool, err error) {
	hash := Hash(source)
	return c.GetByHash(hash, alloc)
}

// GetByHash looks up a Chunk directly by its content hash, without needing
// the source text that produced it; Get calls it after hashing the source.
func (c *Cache) GetByHash(hash [32]byte, alloc func(s string) value.Value) (chunk *bytecode.Chunk, ok bool, err error) {
	var data []byte
	row := c.db.QueryRow(`SELECT cbor FROM chunks WHERE hash = ?`, hash[:])
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: select: %w", err)
	}
	chunk, err = serialize.UnmarshalChunk(data, alloc)
	if err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal chunk: %w", err)
	}
	return chunk, true, nil
}

// Has reports whether source's content hash has a cached entry, without
// paying the cost of decoding it.
func (c *Cache) Has(source string) (bool, error) {
	hash := Hash(source)
	var exists int
	err := c.db.QueryRow(`SELECT 1 FROM chunks WHERE hash = ?`, hash[:]).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: has: %w", err)
	}
	return true, nil
}
