package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// CreateRepo inserts a new repo row in status=cloning. Fails with Conflict
// if name is already taken.
func (db *DB) CreateRepo(name, originURL, localPath string) (*models.Repo, error) {
	res, err := db.conn.Exec(
		`INSERT INTO repos (name, origin_url, local_path, commits_behind, status)
		 VALUES (?, ?, ?, -1, ?)`,
		name, originURL, localPath, models.RepoStatusCloning,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ierrors.Conflictf("repo %q already exists", name)
		}
		return nil, ierrors.Wrap(ierrors.Internal, "create repo", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "create repo: last insert id", err)
	}
	return db.GetRepo(id)
}

// GetRepo fetches a repo by id.
func (db *DB) GetRepo(id int64) (*models.Repo, error) {
	row := db.conn.QueryRow(`
		SELECT id, name, origin_url, local_path, created_at, last_indexed_at,
		       indexed_commit_sha, current_commit_sha, commits_behind, status
		FROM repos WHERE id = ?`, id)
	repo, err := scanRepo(row)
	if err != nil {
		return nil, wrapNotFound(err, "repo")
	}
	return repo, nil
}

// ListRepos returns all repos ordered by id, excluding deleted ones unless
// includeDeleted is set.
func (db *DB) ListRepos(includeDeleted bool) ([]*models.Repo, error) {
	q := `SELECT id, name, origin_url, local_path, created_at, last_indexed_at,
	             indexed_commit_sha, current_commit_sha, commits_behind, status
	      FROM repos`
	if !includeDeleted {
		q += ` WHERE status != 'deleted'`
	}
	q += ` ORDER BY id`

	rows, err := db.conn.Query(q)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "list repos", err)
	}
	defer rows.Close()

	var out []*models.Repo
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan repo", err)
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// SetRepoStatus transitions a repo's lifecycle status.
func (db *DB) SetRepoStatus(repoID int64, status models.RepoStatus) error {
	res, err := db.conn.Exec(`UPDATE repos SET status = ? WHERE id = ?`, status, repoID)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "set repo status", err)
	}
	return requireAffected(res, "repo")
}

// UpdateRepoLocalPath rewrites a repo's on-disk clone location. Used once,
// right after CreateRepo, to stamp in the REPOS_DIR/{id} path that can
// only be computed once the row's id is known.
func (db *DB) UpdateRepoLocalPath(repoID int64, localPath string) error {
	res, err := db.conn.Exec(`UPDATE repos SET local_path = ? WHERE id = ?`, localPath, repoID)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "update repo local path", err)
	}
	return requireAffected(res, "repo")
}

// UpdateRepoCommitState updates the tracked commit SHAs and drift count,
// as produced by a freshness check or completed sync.
func (db *DB) UpdateRepoCommitState(repoID int64, currentSHA string, commitsBehind int) error {
	res, err := db.conn.Exec(
		`UPDATE repos SET current_commit_sha = ?, commits_behind = ? WHERE id = ?`,
		currentSHA, commitsBehind, repoID,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "update repo commit state", err)
	}
	return requireAffected(res, "repo")
}

// MarkRepoIndexed records a completed index/sync: indexed and current SHA
// converge, drift resets to 0, last_indexed_at advances to now.
func (db *DB) MarkRepoIndexed(repoID int64, sha string) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		UPDATE repos
		SET indexed_commit_sha = ?, current_commit_sha = ?, commits_behind = 0,
		    last_indexed_at = ?, status = ?
		WHERE id = ?`,
		sha, sha, now, models.RepoStatusActive, repoID,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "mark repo indexed", err)
	}
	if err := requireAffected(res, "repo"); err != nil {
		return err
	}
	return db.touchLastIndexAt()
}

// DeleteRepoCascade removes all relational rows scoped to repoID and marks
// the repo deleted. Vector/lexical store teardown is the caller's
// responsibility (internal/repolife orchestrates both).
func (db *DB) DeleteRepoCascade(repoID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete repo: begin tx", err)
	}
	defer tx.Rollback()

	tables := []string{
		"symbols", "chunks", "xref_symbols", "occurrences", "xref_relationships",
		"file_summaries", "directory_summaries", "file_contents", "queries",
	}
	for _, t := range tables {
		if _, err := tx.Exec("DELETE FROM "+t+" WHERE repo_id = ?", repoID); err != nil {
			return ierrors.Wrap(ierrors.Internal, "delete repo cascade: "+t, err)
		}
	}
	if _, err := tx.Exec(`UPDATE repos SET status = ? WHERE id = ?`, models.RepoStatusDeleted, repoID); err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete repo: mark deleted", err)
	}
	if err := tx.Commit(); err != nil {
		return ierrors.Wrap(ierrors.Internal, "delete repo: commit", err)
	}
	return db.touchLastIndexAt()
}

// EnsureLegacyRepo implements spec.md §4.1's startup auto-migration: if the
// repos table is empty but orphaned symbols already exist (pre-multi-repo
// data), synthesize a repo row with id=1 pointing at legacyPath so those
// rows remain addressable.
func (db *DB) EnsureLegacyRepo(legacyPath string) error {
	if legacyPath == "" {
		return nil
	}
	var repoCount int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM repos`).Scan(&repoCount); err != nil {
		return ierrors.Wrap(ierrors.Internal, "legacy migration: count repos", err)
	}
	if repoCount > 0 {
		return nil
	}
	var symbolCount int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&symbolCount); err != nil {
		return ierrors.Wrap(ierrors.Internal, "legacy migration: count symbols", err)
	}
	if symbolCount == 0 {
		return nil
	}
	_, err := db.conn.Exec(`
		INSERT INTO repos (id, name, local_path, commits_behind, status)
		VALUES (1, 'legacy', ?, -1, ?)`,
		legacyPath, models.RepoStatusActive,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "legacy migration: insert repo", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepo(r rowScanner) (*models.Repo, error) {
	var repo models.Repo
	var originURL, indexedSHA, currentSHA sql.NullString
	var lastIndexedAt sql.NullTime
	var status string

	err := r.Scan(
		&repo.ID, &repo.Name, &originURL, &repo.LocalPath, &repo.CreatedAt,
		&lastIndexedAt, &indexedSHA, &currentSHA, &repo.CommitsBehind, &status,
	)
	if err != nil {
		return nil, err
	}
	repo.OriginURL = originURL.String
	repo.IndexedCommitSHA = indexedSHA.String
	repo.CurrentCommitSHA = currentSHA.String
	repo.Status = models.RepoStatus(status)
	if lastIndexedAt.Valid {
		t := lastIndexedAt.Time
		repo.LastIndexedAt = &t
	}
	return &repo, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "rows affected", err)
	}
	if n == 0 {
		return ierrors.NotFoundf("%s not found", what)
	}
	return nil
}

// isUniqueViolation detects sqlite's unique-constraint error by substring,
// since modernc.org/sqlite surfaces it as a plain *sqlite.Error without a
// typed sentinel exported for this case.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "constraint failed: UNIQUE")
}
