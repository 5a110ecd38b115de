// Package store implements indiseek's relational store: the single
// embedded database holding repos, symbols, chunks, cross-references,
// summaries, file contents, and query history. It is grounded on the
// teacher's internal/store/sqlite_bm25.go pragma discipline (WAL mode,
// busy_timeout, single-writer pool) and internal/telemetry/store.go's
// database/sql + prepared-statement idioms, adapted from mattn/go-sqlite3
// to the pure-Go modernc.org/sqlite driver.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// DB is the relational store handle. All entity CRUD methods hang off it.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the sqlite database at dbPath, applies
// pragmas matching the teacher's WAL/single-writer discipline, and runs
// all pending migrations.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// Single writer: modernc.org/sqlite serializes through one *os.File
	// handle per connection, and WAL mode only permits one writer at a
	// time anyway — matching the teacher's SetMaxOpenConns(1) posture.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-65536",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// hasColumn reports whether table has a column named col, via catalog
// introspection (PRAGMA table_info) — the idempotency check the
// migration runner needs before issuing ALTER TABLE ADD COLUMN.
func (db *DB) hasColumn(table, col string) (bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == col {
			return true, nil
		}
	}
	return false, rows.Err()
}

// tableExists reports whether table is present in sqlite_master.
func (db *DB) tableExists(table string) (bool, error) {
	var name string
	err := db.conn.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// wrapNotFound converts sql.ErrNoRows into the structured NotFound error;
// other errors pass through wrapped as Internal.
func wrapNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ierrors.NotFoundf("%s not found", what)
	}
	return ierrors.Wrap(ierrors.Internal, what, err)
}
