package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// CreateRunningQuery inserts a new Query row in status=running, returning
// its id so the caller (Task Manager / agent loop) can finalize it later.
func (db *DB) CreateRunningQuery(repoID int64, prompt, strategy string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO queries (repo_id, prompt, status, strategy)
		VALUES (?, ?, ?, ?)`,
		repoID, prompt, models.QueryRunning, strategy,
	)
	if err != nil {
		return 0, ierrors.Wrap(ierrors.Internal, "create running query", err)
	}
	return res.LastInsertId()
}

// CompleteQuery finalizes a running Query with its answer, evidence, and
// usage accounting. Queries are immutable once completed, per spec.md §3.
func (db *DB) CompleteQuery(id int64, answer string, evidence []models.EvidenceStep, durationSecs float64, promptTokens, completionTokens, thinkingTokens int, estimatedCost float64) error {
	evJSON, err := json.Marshal(evidence)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "marshal evidence", err)
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		UPDATE queries
		SET answer = ?, evidence_json = ?, status = ?, completed_at = ?,
		    duration_secs = ?, prompt_tokens = ?, completion_tokens = ?,
		    thinking_tokens = ?, estimated_cost = ?
		WHERE id = ? AND status = 'running'`,
		answer, string(evJSON), models.QueryCompleted, now,
		durationSecs, promptTokens, completionTokens, thinkingTokens, estimatedCost,
		id,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "complete query", err)
	}
	return requireAffected(res, "running query")
}

// FailQuery finalizes a running Query with an error.
func (db *DB) FailQuery(id int64, errMsg string) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		UPDATE queries SET status = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = 'running'`,
		models.QueryFailed, errMsg, now, id,
	)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "fail query", err)
	}
	return requireAffected(res, "running query")
}

// InsertCachedQuery copies a completed query's answer into a new cached
// row, per the Query Cache's hit path (spec.md §4.9 step 3).
func (db *DB) InsertCachedQuery(repoID int64, prompt string, source *models.Query) (int64, error) {
	evJSON, err := json.Marshal(source.Evidence)
	if err != nil {
		return 0, ierrors.Wrap(ierrors.Internal, "marshal cached evidence", err)
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO queries (repo_id, prompt, answer, evidence_json, status,
		                      created_at, completed_at, duration_secs,
		                      source_query_id, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		repoID, prompt, source.Answer, string(evJSON), models.QueryCached,
		now, now, source.ID, source.Strategy,
	)
	if err != nil {
		return 0, ierrors.Wrap(ierrors.Internal, "insert cached query", err)
	}
	return res.LastInsertId()
}

// ListQueries returns repoID's query history, most recent first.
func (db *DB) ListQueries(repoID int64, limit int) ([]*models.Query, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, prompt, answer, evidence_json, status, error,
		       created_at, completed_at, duration_secs, prompt_tokens,
		       completion_tokens, thinking_tokens, estimated_cost,
		       source_query_id, strategy
		FROM queries WHERE repo_id = ? ORDER BY created_at DESC LIMIT ?`,
		repoID, limit,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "list queries", err)
	}
	defer rows.Close()

	var out []*models.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan query", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetQuery fetches one Query by id.
func (db *DB) GetQuery(id int64) (*models.Query, error) {
	row := db.conn.QueryRow(`
		SELECT id, repo_id, prompt, answer, evidence_json, status, error,
		       created_at, completed_at, duration_secs, prompt_tokens,
		       completion_tokens, thinking_tokens, estimated_cost,
		       source_query_id, strategy
		FROM queries WHERE id = ?`, id)
	q, err := scanQuery(row)
	if err != nil {
		return nil, wrapNotFound(err, "query")
	}
	return q, nil
}

// CompletedQueriesSince returns every completed Query for repoID with
// completed_at after cutoff — the Query Cache's candidate pool (spec.md
// §4.9 step 1).
func (db *DB) CompletedQueriesSince(repoID int64, cutoff time.Time) ([]*models.Query, error) {
	rows, err := db.conn.Query(`
		SELECT id, repo_id, prompt, answer, evidence_json, status, error,
		       created_at, completed_at, duration_secs, prompt_tokens,
		       completion_tokens, thinking_tokens, estimated_cost,
		       source_query_id, strategy
		FROM queries
		WHERE repo_id = ? AND status = 'completed' AND completed_at > ?
		ORDER BY completed_at ASC`,
		repoID, cutoff,
	)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "completed queries since", err)
	}
	defer rows.Close()

	var out []*models.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "scan query", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuery(r rowScanner) (*models.Query, error) {
	var q models.Query
	var answer, evJSON, errMsg, sourceQueryStrategy sql.NullString
	var completedAt sql.NullTime
	var durationSecs sql.NullFloat64
	var promptTokens, completionTokens, thinkingTokens sql.NullInt64
	var estimatedCost sql.NullFloat64
	var sourceQueryID sql.NullInt64
	var status string

	err := r.Scan(
		&q.ID, &q.RepoID, &q.Prompt, &answer, &evJSON, &status, &errMsg,
		&q.CreatedAt, &completedAt, &durationSecs, &promptTokens,
		&completionTokens, &thinkingTokens, &estimatedCost,
		&sourceQueryID, &sourceQueryStrategy,
	)
	if err != nil {
		return nil, err
	}

	q.Answer = answer.String
	q.Status = models.QueryStatus(status)
	q.Error = errMsg.String
	q.Strategy = sourceQueryStrategy.String
	if completedAt.Valid {
		t := completedAt.Time
		q.CompletedAt = &t
	}
	q.DurationSecs = durationSecs.Float64
	q.PromptTokens = int(promptTokens.Int64)
	q.CompletionTokens = int(completionTokens.Int64)
	q.ThinkingTokens = int(thinkingTokens.Int64)
	q.EstimatedCost = estimatedCost.Float64
	if sourceQueryID.Valid {
		v := sourceQueryID.Int64
		q.SourceQueryID = &v
	}
	if evJSON.Valid && evJSON.String != "" {
		if err := json.Unmarshal([]byte(evJSON.String), &q.Evidence); err != nil {
			return nil, err
		}
	}
	return &q, nil
}
