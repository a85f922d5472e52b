// Package persistence provides SQLite-based storage for generational
// memory snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/calder-games/npcmind/internal/memory"
)

// DB wraps a SQLite connection for memory snapshot persistence. Snapshot
// payloads are stored as zstd-compressed JSON; scalar columns stay queryable.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init decompressor: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.enc.Close()
	db.dec.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		generation INTEGER PRIMARY KEY,
		saved_at TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		cluster_count INTEGER NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveGeneration upserts one generation snapshot.
func (db *DB) SaveGeneration(snap memory.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	payload := db.enc.EncodeAll(raw, nil)

	_, err = db.conn.Exec(`INSERT OR REPLACE INTO generations
		(generation, saved_at, record_count, cluster_count, payload)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Generation, snap.SavedAt.UTC().Format(time.RFC3339Nano),
		len(snap.Records), len(snap.Clusters), payload,
	)
	if err != nil {
		return fmt.Errorf("insert generation %d: %w", snap.Generation, err)
	}
	if err := db.saveIndex(snap); err != nil {
		return fmt.Errorf("save index for generation %d: %w", snap.Generation, err)
	}
	slog.Debug("generation saved",
		"generation", snap.Generation,
		"records", len(snap.Records),
		"compressed_bytes", len(payload))
	return nil
}

// Index keys in memory_meta, refreshed on every generation save.
const (
	MetaCurrentGeneration = "current_generation"
	MetaRecordIDs         = "record_ids"
	MetaClusterIDs        = "cluster_ids"
)

// saveIndex upserts the top-level index: the current generation number
// plus the id sets of its records and clusters.
func (db *DB) saveIndex(snap memory.Snapshot) error {
	if err := db.SaveMeta(MetaCurrentGeneration, strconv.Itoa(snap.Generation)); err != nil {
		return err
	}
	recordIDs := make([]string, 0, len(snap.Records))
	for _, r := range snap.Records {
		recordIDs = append(recordIDs, r.ID)
	}
	clusterIDs := make([]string, 0, len(snap.Clusters))
	for _, c := range snap.Clusters {
		clusterIDs = append(clusterIDs, c.ID)
	}
	rec, err := json.Marshal(recordIDs)
	if err != nil {
		return fmt.Errorf("encode record ids: %w", err)
	}
	if err := db.SaveMeta(MetaRecordIDs, string(rec)); err != nil {
		return err
	}
	clu, err := json.Marshal(clusterIDs)
	if err != nil {
		return fmt.Errorf("encode cluster ids: %w", err)
	}
	return db.SaveMeta(MetaClusterIDs, string(clu))
}

// LoadLatest returns the highest-numbered stored generation. The second
// return is false when the database holds none.
func (db *DB) LoadLatest() (memory.Snapshot, bool, error) {
	var payload []byte
	err := db.conn.Get(&payload,
		"SELECT payload FROM generations ORDER BY generation DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Snapshot{}, false, nil
	}
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("load latest generation: %w", err)
	}

	raw, err := db.dec.DecodeAll(payload, nil)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Generations lists stored generation numbers, ascending.
func (db *DB) Generations() ([]int, error) {
	var gens []int
	err := db.conn.Select(&gens, "SELECT generation FROM generations ORDER BY generation")
	return gens, err
}

// PruneBefore deletes snapshots older than the given generation.
func (db *DB) PruneBefore(generation int) error {
	_, err := db.conn.Exec("DELETE FROM generations WHERE generation < ?", generation)
	return err
}

// SaveMeta stores a key-value pair in memory metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO memory_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value, "" when unset.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM memory_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
