package store

import (
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// UpsertFileSummary records (or replaces) the one-sentence summary for a
// file, stamping updated_at so the directory-summarize stage can tell
// whether a directory's summary is stale relative to its children.
func (db *DB) UpsertFileSummary(s *models.FileSummary) error {
	_, err := db.conn.Exec(`
		INSERT INTO file_summaries (repo_id, file_path, summary, language, line_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, file_path) DO UPDATE SET
			summary = excluded.summary, language = excluded.language,
			line_count = excluded.line_count, updated_at = excluded.updated_at`,
		s.RepoID, s.FilePath, s.Summary, s.Language, s.LineCount, time.Now().UTC(),
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "upsert file summary", err)
	}
	return db.touchLastIndexAt()
}

// FileSummaryExists reports whether filePath already has a summary — the
// file-summarize stage's resumability check.
func (db *DB) FileSummaryExists(repoID int64, filePath string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM file_summaries WHERE repo_id = ? AND file_path = ?`,
		repoID, filePath,
	).Scan(&n)
	if err != nil {
		return false, ierrors.Wrap(ierrors.Internal, "file summary exists", err)
	}
	return n > 0, nil
}

// GetFileSummary fetches one file's summary.
func (db *DB) GetFileSummary(repoID int64, filePath string) (*models.FileSummary, error) {
	var s models.FileSummary
	s.RepoID = repoID
	s.FilePath = filePath
	err := db.conn.QueryRow(
		`SELECT summary, language, line_count, updated_at FROM file_summaries WHERE repo_id = ? AND file_path = ?`,
		repoID, filePath,
	).Scan(&s.Summary, &s.Language, &s.LineCount, &s.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "file summary")
	}
	return &s, nil
}

// FileSummariesInDir returns the direct-child file summaries of dirPath
// (non-recursive — the directory-summarize stage combines this with
// DirectorySummariesInDir to build one level at a time, bottom-up).
func (db *DB) FileSummariesInDir(repoID int64, dirPath string) ([]*models.FileSummary, error) {
	rows, err := db.conn.Query(
		`SELECT file_path, summary, language, line_count, updated_at FROM file_summaries WHERE repo_id = ?`,
		repoID,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "file summaries in dir", err)
	}
	defer rows.Close()

	var out []*models.FileSummary
	for rows.Next() {
		var s models.FileSummary
		s.RepoID = repoID
		if err := rows.Scan(&s.FilePath, &s.Summary, &s.Language, &s.LineCount, &s.UpdatedAt); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan file summary", err)
		}
		if parentDir(s.FilePath) == dirPath {
			out = append(out, &s)
		}
	}
	return out, rows.Err()
}

// UpsertDirectorySummary records (or replaces) a directory's bottom-up
// summary, stamping updated_at so a later sync can tell whether this
// summary is still fresh relative to its children.
func (db *DB) UpsertDirectorySummary(s *models.DirectorySummary) error {
	_, err := db.conn.Exec(`
		INSERT INTO directory_summaries (repo_id, dir_path, summary, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_id, dir_path) DO UPDATE SET
			summary = excluded.summary, updated_at = excluded.updated_at`,
		s.RepoID, s.DirPath, s.Summary, time.Now().UTC(),
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "upsert directory summary", err)
	}
	return db.touchLastIndexAt()
}

// GetDirectorySummary fetches one directory's existing summary, if any —
// the directory-summarize stage's skip-existing check compares its
// UpdatedAt against the directory's children.
func (db *DB) GetDirectorySummary(repoID int64, dirPath string) (*models.DirectorySummary, error) {
	var s models.DirectorySummary
	s.RepoID = repoID
	s.DirPath = dirPath
	err := db.conn.QueryRow(
		`SELECT summary, updated_at FROM directory_summaries WHERE repo_id = ? AND dir_path = ?`,
		repoID, dirPath,
	).Scan(&s.Summary, &s.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "directory summary")
	}
	return &s, nil
}

// DirectorySummariesInDir returns the direct-child directory summaries of
// dirPath.
func (db *DB) DirectorySummariesInDir(repoID int64, dirPath string) ([]*models.DirectorySummary, error) {
	rows, err := db.conn.Query(
		`SELECT dir_path, summary, updated_at FROM directory_summaries WHERE repo_id = ?`, repoID,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "directory summaries in dir", err)
	}
	defer rows.Close()

	var out []*models.DirectorySummary
	for rows.Next() {
		var s models.DirectorySummary
		s.RepoID = repoID
		if err := rows.Scan(&s.DirPath, &s.Summary, &s.UpdatedAt); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan directory summary", err)
		}
		if parentDir(s.DirPath) == dirPath {
			out = append(out, &s)
		}
	}
	return out, rows.Err()
}

// AllSummarizedDirs returns the distinct set of directories that contain at
// least one summarized file, for the directory-summarize stage's
// deepest-first walk.
func (db *DB) AllSummarizedDirs(repoID int64) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT file_path FROM file_summaries WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "all summarized dirs", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var dirs []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan file path", err)
		}
		for d := parentDir(fp); d != "" && !seen[d]; d = parentDir(d) {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs, rows.Err()
}

// FilesNeedingSummary returns the distinct files that have at least one
// chunk but no file summary yet — the file-summarize stage's
// resumability check (spec.md §4.4: "every file that has chunks but no
// summary").
func (db *DB) FilesNeedingSummary(repoID int64) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT c.file_path
		FROM chunks c
		LEFT JOIN file_summaries fs ON fs.repo_id = c.repo_id AND fs.file_path = c.file_path
		WHERE c.repo_id = ? AND fs.file_path IS NULL`, repoID)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "files needing summary", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan file path", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// DeleteFileSummary removes a file's summary (file deleted from the repo).
func (db *DB) DeleteFileSummary(repoID int64, filePath string) error {
	_, err := db.conn.Exec(`DELETE FROM file_summaries WHERE repo_id = ? AND file_path = ?`, repoID, filePath)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete file summary", err)
	}
	return nil
}

// parentDir returns the parent of a "/"-separated relative path, or "" for
// a top-level entry.
func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
