package store

import "github.com/breeze4/indiseek/internal/ierrors"

// Stats is the aggregate row count across the relational store's
// repo-scoped tables, used by GET /api/stats (spec.md §6).
type Stats struct {
	Symbols            int `json:"symbols"`
	Chunks             int `json:"chunks"`
	FileSummaries      int `json:"file_summaries"`
	DirectorySummaries int `json:"directory_summaries"`
	FileContents       int `json:"file_contents"`
	XrefSymbols        int `json:"xref_symbols"`
	Occurrences        int `json:"occurrences"`
	Queries            int `json:"queries"`
}

// Stats counts rows in every repo-scoped table for repoID, one COUNT(*)
// per table — cheap at indiseek's scale and simpler than maintaining a
// running tally alongside every write path.
func (db *DB) Stats(repoID int64) (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"symbols", &s.Symbols},
		{"chunks", &s.Chunks},
		{"file_summaries", &s.FileSummaries},
		{"directory_summaries", &s.DirectorySummaries},
		{"file_contents", &s.FileContents},
		{"xref_symbols", &s.XrefSymbols},
		{"occurrences", &s.Occurrences},
		{"queries", &s.Queries},
	}
	for _, c := range counts {
		row := db.conn.QueryRow("SELECT COUNT(*) FROM "+c.table+" WHERE repo_id = ?", repoID)
		if err := row.Scan(c.dest); err != nil {
			return nil, ierrors.Wrap(ierrors.Internal, "stats: count "+c.table, err)
		}
	}
	return s, nil
}
