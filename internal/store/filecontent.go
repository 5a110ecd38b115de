package store

import (
	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// UpsertFileContent stores the authoritative text of one file — the parse
// stage's write, and read_file's only source (no disk fallback at query
// time, per spec.md §4.7).
func (db *DB) UpsertFileContent(fc *models.FileContent) error {
	_, err := db.conn.Exec(`
		INSERT INTO file_contents (repo_id, file_path, content, line_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_id, file_path) DO UPDATE SET
			content = excluded.content, line_count = excluded.line_count`,
		fc.RepoID, fc.FilePath, fc.Content, fc.LineCount,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "upsert file content", err)
	}
	return nil
}

// GetFileContent fetches a file's authoritative content. Fails NotFound if
// the file is not indexed.
func (db *DB) GetFileContent(repoID int64, filePath string) (*models.FileContent, error) {
	var fc models.FileContent
	fc.RepoID = repoID
	fc.FilePath = filePath
	err := db.conn.QueryRow(
		`SELECT content, line_count FROM file_contents WHERE repo_id = ? AND file_path = ?`,
		repoID, filePath,
	).Scan(&fc.Content, &fc.LineCount)
	if err != nil {
		return nil, wrapNotFound(err, "file content")
	}
	return &fc, nil
}

// DeleteFileContent removes a deleted file's stored content.
func (db *DB) DeleteFileContent(repoID int64, filePath string) error {
	_, err := db.conn.Exec(`DELETE FROM file_contents WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete file content", err)
	}
	return nil
}
