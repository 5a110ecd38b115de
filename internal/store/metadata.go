package store

import (
	"database/sql"
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// GetMetadata reads a global key, returning ("", false, nil) if absent.
func (db *DB) GetMetadata(key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM metadata_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, ierrors.Wrap(ierrors.Internal, "get metadata", err)
	}
	return value, true, nil
}

// SetMetadata upserts a global key.
func (db *DB) SetMetadata(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO metadata_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "set metadata", err)
	}
	return nil
}

// LastIndexAt returns the timestamp of the most recent index mutation, or
// the zero time if no mutation has ever happened (cache then sees every
// completed query as a candidate).
func (db *DB) LastIndexAt() (time.Time, error) {
	v, ok, err := db.GetMetadata(models.MetadataKeyLastIndexAt)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, ierrors.Wrap(ierrors.Internal, "parse last_index_at", err)
	}
	return t, nil
}

// touchLastIndexAt bumps MetadataKV["last_index_at"] to now — called by
// every mutation that changes index state, per spec.md §4.1, so the Query
// Cache invalidates wholesale on the next read.
func (db *DB) touchLastIndexAt() error {
	return db.SetMetadata(models.MetadataKeyLastIndexAt, time.Now().UTC().Format(time.RFC3339Nano))
}
