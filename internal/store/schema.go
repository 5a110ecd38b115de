package store

import "fmt"

// baseline holds the CREATE TABLE IF NOT EXISTS statements for every
// entity in pkg/models. Run unconditionally on every Open — idempotent by
// construction, matching spec's requirement that migrations be safe to
// re-run.
var baseline = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS repos (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		name               TEXT NOT NULL UNIQUE,
		origin_url         TEXT,
		local_path         TEXT NOT NULL,
		created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_indexed_at    TIMESTAMP,
		indexed_commit_sha TEXT,
		current_commit_sha TEXT,
		commits_behind     INTEGER NOT NULL DEFAULT -1,
		status             TEXT NOT NULL DEFAULT 'cloning'
	)`,
	`CREATE TABLE IF NOT EXISTS symbols (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id          INTEGER NOT NULL,
		file_path        TEXT NOT NULL,
		name             TEXT NOT NULL,
		kind             TEXT NOT NULL,
		start_line       INTEGER NOT NULL,
		start_col        INTEGER NOT NULL,
		end_line         INTEGER NOT NULL,
		end_col          INTEGER NOT NULL,
		signature        TEXT,
		parent_symbol_id INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_repo_file ON symbols(repo_id, file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_repo_name ON symbols(repo_id, name)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id        INTEGER NOT NULL,
		file_path      TEXT NOT NULL,
		symbol_name    TEXT,
		chunk_type     TEXT NOT NULL,
		start_line     INTEGER NOT NULL,
		end_line       INTEGER NOT NULL,
		content        TEXT NOT NULL,
		token_estimate INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_repo_file ON chunks(repo_id, file_path)`,
	`CREATE TABLE IF NOT EXISTS xref_symbols (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id       INTEGER NOT NULL,
		symbol_string TEXT NOT NULL,
		documentation TEXT,
		UNIQUE(repo_id, symbol_string)
	)`,
	`CREATE TABLE IF NOT EXISTS occurrences (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		xref_symbol_id INTEGER NOT NULL,
		repo_id        INTEGER NOT NULL,
		file_path      TEXT NOT NULL,
		start_line     INTEGER NOT NULL,
		start_col      INTEGER NOT NULL,
		end_line       INTEGER NOT NULL,
		end_col        INTEGER NOT NULL,
		role           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_xref ON occurrences(xref_symbol_id)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_repo_file ON occurrences(repo_id, file_path)`,
	`CREATE TABLE IF NOT EXISTS xref_relationships (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		xref_symbol_id         INTEGER NOT NULL,
		related_xref_symbol_id INTEGER NOT NULL,
		kind                   TEXT NOT NULL,
		repo_id                INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_xref_rel_symbol ON xref_relationships(xref_symbol_id)`,
	`CREATE TABLE IF NOT EXISTS file_summaries (
		repo_id    INTEGER NOT NULL,
		file_path  TEXT NOT NULL,
		summary    TEXT NOT NULL,
		language   TEXT NOT NULL,
		line_count INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (repo_id, file_path)
	)`,
	`CREATE TABLE IF NOT EXISTS directory_summaries (
		repo_id    INTEGER NOT NULL,
		dir_path   TEXT NOT NULL,
		summary    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (repo_id, dir_path)
	)`,
	`CREATE TABLE IF NOT EXISTS file_contents (
		repo_id    INTEGER NOT NULL,
		file_path  TEXT NOT NULL,
		content    TEXT NOT NULL,
		line_count INTEGER NOT NULL,
		PRIMARY KEY (repo_id, file_path)
	)`,
	`CREATE TABLE IF NOT EXISTS queries (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id           INTEGER NOT NULL,
		prompt            TEXT NOT NULL,
		answer            TEXT,
		evidence_json     TEXT,
		status            TEXT NOT NULL,
		error             TEXT,
		created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at      TIMESTAMP,
		duration_secs     REAL,
		prompt_tokens     INTEGER,
		completion_tokens INTEGER,
		thinking_tokens   INTEGER,
		estimated_cost    REAL,
		source_query_id   INTEGER,
		strategy          TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queries_repo_status ON queries(repo_id, status)`,
	`CREATE TABLE IF NOT EXISTS metadata_kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// migration is one named, idempotent schema change beyond the baseline —
// the shape spec.md §4.1 describes: check catalog state, then ALTER TABLE
// ADD COLUMN with a default for existing rows.
type migration struct {
	version int
	name    string
	apply   func(db *DB) error
}

// migrations lists the changes applied on top of the baseline schema, in
// version order; new entries get appended here as the schema evolves, each
// checking hasColumn before altering so re-running never fails.
var migrations = []migration{
	{
		version: 1,
		name:    "symbols_signature_default",
		apply: func(db *DB) error {
			has, err := db.hasColumn("symbols", "signature")
			if err != nil {
				return err
			}
			if has {
				return nil
			}
			_, err = db.conn.Exec(`ALTER TABLE symbols ADD COLUMN signature TEXT DEFAULT NULL`)
			return err
		},
	},
}

func (db *DB) migrate() error {
	for _, stmt := range baseline {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("store: baseline schema %q: %w", stmt, err)
		}
	}

	for _, m := range migrations {
		var applied int
		err := db.conn.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version=?", m.version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("store: check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("store: apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.conn.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name,
		); err != nil {
			return fmt.Errorf("store: record migration %d: %w", m.version, err)
		}
	}
	return nil
}
