package store

import (
	"database/sql"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// ReplaceFileChunks clears and reinserts every Chunk for one file, mirroring
// ReplaceFileSymbols — a file's chunk set is rebuilt fully on every parse.
// Returns the newly assigned chunk ids in insertion order alongside the ids of
// the chunks just displaced, so the caller can remove their stale vectors
// from the per-repo HNSW index — otherwise a re-parsed file's old vectors
// would linger forever under ids the relational store no longer knows.
func (db *DB) ReplaceFileChunks(repoID int64, filePath string, chunks []*models.Chunk) (newIDs, oldIDs []int64, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: begin", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM chunks WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: select old ids", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: scan old id", err)
		}
		oldIDs = append(oldIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: scan old ids", err)
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE repo_id = ? AND file_path = ?`, repoID, filePath); err != nil {
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: delete", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (repo_id, file_path, symbol_name, chunk_type, start_line,
		                     end_line, content, token_estimate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: prepare", err)
	}
	defer stmt.Close()

	newIDs = make([]int64, 0, len(chunks))
	for _, c := range chunks {
		res, err := stmt.Exec(
			repoID, filePath, nullableString(c.SymbolName), c.ChunkType,
			c.StartLine, c.EndLine, c.Content, c.TokenEstimate,
		)
		if err != nil {
			return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: insert", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: last insert id", err)
		}
		newIDs = append(newIDs, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, ierrors.Wrap(ierrors.Internal, "replace chunks: commit", err)
	}
	if err := db.touchLastIndexAt(); err != nil {
		return nil, nil, err
	}
	return newIDs, oldIDs, nil
}

// ChunksByIDs fetches chunks in bulk, e.g. to hydrate retrieval results
// returned by the vector/lexical stores (which only know chunk ids).
func (db *DB) ChunksByIDs(repoID int64, ids []int64) (map[int64]*models.Chunk, error) {
	if len(ids) == 0 {
		return map[int64]*models.Chunk{}, nil
	}
	placeholders := make([]any, 0, len(ids)+1)
	placeholders = append(placeholders, repoID)
	q := `SELECT id, repo_id, file_path, symbol_name, chunk_type, start_line,
	             end_line, content, token_estimate
	      FROM chunks WHERE repo_id = ? AND id IN (`
	for i, id := range ids {
		if i > 0 {
			q += ","
		}
		q += "?"
		placeholders = append(placeholders, id)
	}
	q += ")"

	rows, err := db.conn.Query(q, placeholders...)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "chunks by ids", err)
	}
	defer rows.Close()

	out := make(map[int64]*models.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// ChunksWithoutVector returns every chunk id in repoID not present in
// haveIDs — the embed stage's resumability check, run against the vector
// store's AllChunkIDs result so it never re-embeds already-indexed chunks.
func (db *DB) ChunksWithoutVector(repoID int64, haveIDs map[int64]bool) ([]*models.Chunk, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, symbol_name, chunk_type, start_line,
		       end_line, content, token_estimate
		FROM chunks WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "chunks without vector", err)
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if !haveIDs[c.ID] {
			out = append(out, c)
		}
	}
	return out, rows.Err()
}

// AllChunks returns every chunk for repoID — used by the build-lexical
// stage, which always does a full rebuild.
func (db *DB) AllChunks(repoID int64) ([]*models.Chunk, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, symbol_name, chunk_type, start_line,
		       end_line, content, token_estimate
		FROM chunks WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "all chunks", err)
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunksInFile returns every chunk for one file, ordered by start line —
// the file-detail endpoint's view of a file's retrievable units.
func (db *DB) ChunksInFile(repoID int64, filePath string) ([]*models.Chunk, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, file_path, symbol_name, chunk_type, start_line,
		       end_line, content, token_estimate
		FROM chunks WHERE repo_id = ? AND file_path = ? ORDER BY start_line`, repoID, filePath)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "chunks in file", err)
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteFileChunks removes every chunk row for filePath and returns their
// ids, so the caller can also purge the matching vectors from the
// per-repo HNSW index — those ids would otherwise be orphaned there with
// no relational row to back them.
func (db *DB) DeleteFileChunks(repoID int64, filePath string) ([]int64, error) {
	rows, err := db.conn.Query(`SELECT id FROM chunks WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "delete file chunks: select ids", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, ierrors.Wrap(ierrors.Internal, "delete file chunks: scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, ierrors.Wrap(ierrors.Internal, "delete file chunks: scan ids", err)
	}
	rows.Close()

	if _, err := db.conn.Exec(`DELETE FROM chunks WHERE repo_id = ? AND file_path = ?`, repoID, filePath); err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "delete file chunks", err)
	}
	return ids, nil
}

func scanChunk(rows *sql.Rows) (*models.Chunk, error) {
	var c models.Chunk
	var symbolName sql.NullString
	err := rows.Scan(
		&c.ID, &c.RepoID, &c.FilePath, &symbolName, &c.ChunkType,
		&c.StartLine, &c.EndLine, &c.Content, &c.TokenEstimate,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "scan chunk", err)
	}
	c.SymbolName = symbolName.String
	return &c, nil
}
