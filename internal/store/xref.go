package store

import (
	"database/sql"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// UpsertXrefSymbol inserts or returns the existing CrossRefSymbol for
// (repoID, symbolString) — unique per repo through the xref_symbols
// UNIQUE(repo_id, symbol_string) constraint; local (file-scoped) symbols
// never reach here (the load-xrefs stage skips them before calling this).
func (db *DB) UpsertXrefSymbol(repoID int64, symbolString, documentation string) (*models.CrossRefSymbol, error) {
	_, err := db.conn.Exec(`
		INSERT INTO xref_symbols (repo_id, symbol_string, documentation)
		VALUES (?, ?, ?)
		ON CONFLICT(repo_id, symbol_string) DO UPDATE SET
			documentation = excluded.documentation`,
		repoID, symbolString, nullableString(documentation),
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "upsert xref symbol", err)
	}

	var sym models.CrossRefSymbol
	var doc sql.NullString
	err = db.conn.QueryRow(`
		SELECT id, repo_id, symbol_string, documentation
		FROM xref_symbols WHERE repo_id = ? AND symbol_string = ?`,
		repoID, symbolString,
	).Scan(&sym.ID, &sym.RepoID, &sym.SymbolString, &doc)
	if err != nil {
		return nil, wrapNotFound(err, "xref symbol")
	}
	sym.Documentation = doc.String
	return &sym, nil
}

// InsertOccurrence records one use site of a cross-reference symbol.
func (db *DB) InsertOccurrence(occ *models.Occurrence) error {
	_, err := db.conn.Exec(`
		INSERT INTO occurrences (xref_symbol_id, repo_id, file_path, start_line,
		                          start_col, end_line, end_col, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.XrefSymbolID, occ.RepoID, occ.FilePath,
		occ.Range.StartLine, occ.Range.StartCol, occ.Range.EndLine, occ.Range.EndCol, occ.Role,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "insert occurrence", err)
	}
	return nil
}

// InsertXrefRelationship records one directed edge between cross-reference
// symbols (implementation, reference, type_definition).
func (db *DB) InsertXrefRelationship(rel *models.XrefRelationship) error {
	_, err := db.conn.Exec(`
		INSERT INTO xref_relationships (xref_symbol_id, related_xref_symbol_id, kind, repo_id)
		VALUES (?, ?, ?, ?)`,
		rel.XrefSymbolID, rel.RelatedXrefSymbolID, rel.Kind, rel.RepoID,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "insert xref relationship", err)
	}
	return nil
}

// XrefSymbolByString looks up a CrossRefSymbol by its exact symbol_string.
func (db *DB) XrefSymbolByString(repoID int64, symbolString string) (*models.CrossRefSymbol, error) {
	var sym models.CrossRefSymbol
	var doc sql.NullString
	err := db.conn.QueryRow(`
		SELECT id, repo_id, symbol_string, documentation
		FROM xref_symbols WHERE repo_id = ? AND symbol_string = ?`,
		repoID, symbolString,
	).Scan(&sym.ID, &sym.RepoID, &sym.SymbolString, &doc)
	if err != nil {
		return nil, wrapNotFound(err, "xref symbol")
	}
	sym.Documentation = doc.String
	return &sym, nil
}

// XrefSymbolByID looks up a CrossRefSymbol by its row id.
func (db *DB) XrefSymbolByID(id int64) (*models.CrossRefSymbol, error) {
	var sym models.CrossRefSymbol
	var doc sql.NullString
	err := db.conn.QueryRow(`
		SELECT id, repo_id, symbol_string, documentation
		FROM xref_symbols WHERE id = ?`, id,
	).Scan(&sym.ID, &sym.RepoID, &sym.SymbolString, &doc)
	if err != nil {
		return nil, wrapNotFound(err, "xref symbol")
	}
	sym.Documentation = doc.String
	return &sym, nil
}

// OccurrencesForSymbol returns every Occurrence of xrefSymbolID, optionally
// filtered to one role (pass "" for all roles).
func (db *DB) OccurrencesForSymbol(xrefSymbolID int64, role models.OccurrenceRole) ([]*models.Occurrence, error) {
	q := `SELECT id, xref_symbol_id, repo_id, file_path, start_line, start_col,
	             end_line, end_col, role
	      FROM occurrences WHERE xref_symbol_id = ?`
	args := []any{xrefSymbolID}
	if role != "" {
		q += " AND role = ?"
		args = append(args, role)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "occurrences for symbol", err)
	}
	defer rows.Close()

	var out []*models.Occurrence
	for rows.Next() {
		var o models.Occurrence
		var roleStr string
		err := rows.Scan(
			&o.ID, &o.XrefSymbolID, &o.RepoID, &o.FilePath,
			&o.Range.StartLine, &o.Range.StartCol, &o.Range.EndLine, &o.Range.EndCol, &roleStr,
		)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan occurrence", err)
		}
		o.Role = models.OccurrenceRole(roleStr)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// OccurrencesInRange returns every reference-role Occurrence in filePath
// whose start line falls within [startLine, endLine] — resolve_symbol's
// callees lookup: every use site textually inside a symbol's own
// definition range is a call it makes.
func (db *DB) OccurrencesInRange(repoID int64, filePath string, startLine, endLine int) ([]*models.Occurrence, error) {
	rows, err := db.conn.Query(`
		SELECT id, xref_symbol_id, repo_id, file_path, start_line, start_col,
		       end_line, end_col, role
		FROM occurrences
		WHERE repo_id = ? AND file_path = ? AND role = ? AND start_line BETWEEN ? AND ?`,
		repoID, filePath, models.RoleReference, startLine, endLine,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "occurrences in range", err)
	}
	defer rows.Close()

	var out []*models.Occurrence
	for rows.Next() {
		var o models.Occurrence
		var roleStr string
		err := rows.Scan(
			&o.ID, &o.XrefSymbolID, &o.RepoID, &o.FilePath,
			&o.Range.StartLine, &o.Range.StartCol, &o.Range.EndLine, &o.Range.EndCol, &roleStr,
		)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan occurrence", err)
		}
		o.Role = models.OccurrenceRole(roleStr)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// RelationshipsFrom returns every XrefRelationship originating at xrefSymbolID.
func (db *DB) RelationshipsFrom(xrefSymbolID int64) ([]*models.XrefRelationship, error) {
	rows, err := db.conn.Query(`
		SELECT id, xref_symbol_id, related_xref_symbol_id, kind, repo_id
		FROM xref_relationships WHERE xref_symbol_id = ?`, xrefSymbolID)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "relationships from", err)
	}
	defer rows.Close()

	var out []*models.XrefRelationship
	for rows.Next() {
		var r models.XrefRelationship
		var kind string
		if err := rows.Scan(&r.ID, &r.XrefSymbolID, &r.RelatedXrefSymbolID, &kind, &r.RepoID); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan relationship", err)
		}
		r.Kind = models.RelationshipKind(kind)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteFileOccurrences removes occurrences recorded at filePath. Sync
// calls it for each deleted file, whether or not a full cross-reference
// reload follows.
func (db *DB) DeleteFileOccurrences(repoID int64, filePath string) error {
	_, err := db.conn.Exec(`DELETE FROM occurrences WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete file occurrences", err)
	}
	return nil
}

// ClearRepoXrefs wipes all cross-reference data for a repo ahead of a full
// reload (load-xrefs stage always does a clean reload, never a merge).
func (db *DB) ClearRepoXrefs(repoID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "clear xrefs: begin", err)
	}
	defer tx.Rollback()

	for _, t := range []string{"xref_relationships", "occurrences", "xref_symbols"} {
		if _, err := tx.Exec("DELETE FROM "+t+" WHERE repo_id = ?", repoID); err != nil {
			return ierrors.Wrap(ierrors.Internal, "clear xrefs: "+t, err)
		}
	}
	return tx.Commit()
}
