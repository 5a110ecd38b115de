package store

import (
	"database/sql"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// ReplaceFileSymbols clears and reinserts every Symbol for one file —
// symbols are rebuilt fully on every parse of that file, never patched.
// Nesting (method inside class) is derived here from range containment:
// a symbol's parent is the smallest other symbol in the same file whose
// range strictly contains it. Callers hand in a flat, unparented slice;
// ParentSymbolID on the input is ignored and recomputed.
func (db *DB) ReplaceFileSymbols(repoID int64, filePath string, symbols []*models.Symbol) error {
	parentIdx := enclosingIndices(symbols)

	tx, err := db.conn.Begin()
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "replace symbols: begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbols WHERE repo_id = ? AND file_path = ?`, repoID, filePath); err != nil {
		return ierrors.Wrap(ierrors.Internal, "replace symbols: delete", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO symbols (repo_id, file_path, name, kind, start_line, start_col,
		                      end_line, end_col, signature, parent_symbol_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "replace symbols: prepare", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(symbols))
	for i, s := range symbols {
		res, err := stmt.Exec(
			repoID, filePath, s.Name, s.Kind,
			s.Range.StartLine, s.Range.StartCol, s.Range.EndLine, s.Range.EndCol,
			nullableString(s.Signature),
		)
		if err != nil {
			return ierrors.Wrap(ierrors.Internal, "replace symbols: insert", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return ierrors.Wrap(ierrors.Internal, "replace symbols: last insert id", err)
		}
		ids[i] = id
	}

	updateStmt, err := tx.Prepare(`UPDATE symbols SET parent_symbol_id = ? WHERE id = ?`)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "replace symbols: prepare parent update", err)
	}
	defer updateStmt.Close()

	for i, pIdx := range parentIdx {
		if pIdx < 0 {
			continue
		}
		if _, err := updateStmt.Exec(ids[pIdx], ids[i]); err != nil {
			return ierrors.Wrap(ierrors.Internal, "replace symbols: set parent", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ierrors.Wrap(ierrors.Internal, "replace symbols: commit", err)
	}
	return db.touchLastIndexAt()
}

// enclosingIndices returns, for each symbol, the index of the smallest
// other symbol in the slice whose range strictly contains it, or -1.
func enclosingIndices(symbols []*models.Symbol) []int {
	parents := make([]int, len(symbols))
	for i, s := range symbols {
		best := -1
		bestSpan := -1
		for j, other := range symbols {
			if i == j {
				continue
			}
			if !strictlyContains(other.Range, s.Range) {
				continue
			}
			span := other.Range.EndLine - other.Range.StartLine
			if best == -1 || span < bestSpan {
				best = j
				bestSpan = span
			}
		}
		parents[i] = best
	}
	return parents
}

func strictlyContains(outer, inner models.Range) bool {
	if outer.StartLine > inner.StartLine || outer.EndLine < inner.EndLine {
		return false
	}
	if outer.StartLine == inner.StartLine && outer.EndLine == inner.EndLine {
		return false
	}
	return true
}

// SymbolsByName finds every Symbol in repoID with the given name —
// resolve_symbol discloses ambiguity rather than picking one silently, so
// callers always see the full set.
func (db *DB) SymbolsByName(repoID int64, name string) ([]*models.Symbol, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, name, kind, start_line, start_col,
		       end_line, end_col, signature, parent_symbol_id
		FROM symbols WHERE repo_id = ? AND name = ?`, repoID, name)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "symbols by name", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// SymbolEnclosing returns the innermost symbol in filePath whose range
// contains line, or nil if none does (used by resolve_symbol's
// callers action to map an occurrence line to its enclosing function).
func (db *DB) SymbolEnclosing(repoID int64, filePath string, line int) (*models.Symbol, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, name, kind, start_line, start_col,
		       end_line, end_col, signature, parent_symbol_id
		FROM symbols
		WHERE repo_id = ? AND file_path = ? AND start_line <= ? AND end_line >= ?
		ORDER BY (end_line - start_line) ASC
		LIMIT 1`, repoID, filePath, line, line)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "symbol enclosing", err)
	}
	defer rows.Close()

	syms, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, nil
	}
	return syms[0], nil
}

// SymbolsInFile returns every Symbol defined in filePath.
func (db *DB) SymbolsInFile(repoID int64, filePath string) ([]*models.Symbol, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, name, kind, start_line, start_col,
		       end_line, end_col, signature, parent_symbol_id
		FROM symbols WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "symbols in file", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// DeleteFileSymbols removes all symbols for a deleted file.
func (db *DB) DeleteFileSymbols(repoID int64, filePath string) error {
	_, err := db.conn.Exec(`DELETE FROM symbols WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete file symbols", err)
	}
	return nil
}

func scanSymbols(rows *sql.Rows) ([]*models.Symbol, error) {
	var out []*models.Symbol
	for rows.Next() {
		var s models.Symbol
		var signature sql.NullString
		var parentID sql.NullInt64
		err := rows.Scan(
			&s.ID, &s.RepoID, &s.FilePath, &s.Name, &s.Kind,
			&s.Range.StartLine, &s.Range.StartCol, &s.Range.EndLine, &s.Range.EndCol,
			&signature, &parentID,
		)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan symbol", err)
		}
		s.Signature = signature.String
		if parentID.Valid {
			v := parentID.Int64
			s.ParentSymbolID = &v
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt64Ptr(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
