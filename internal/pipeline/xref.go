package pipeline

import (
	"context"
	"io"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/xref"
)

// LoadXrefs is stage 2: decode the cross-reference stream r and replace
// env.RepoID's cross-reference data set entirely. Unlike the
// other stages it takes its input stream explicitly rather than scanning
// the repo tree, since the cross-reference file is produced by an
// external tool the caller points at.
func LoadXrefs(ctx context.Context, env *Env, r io.Reader, progress ProgressFunc) (Counts, error) {
	stats, err := xref.Load(r, env.RepoID, env.DB, func(current, total int, subject string) {
		emit(progress, "load_xrefs", current, total, subject)
	})
	if err != nil {
		return Counts{}, ierrors.Wrap(ierrors.PipelineErr, "load_xrefs: decode stream", err)
	}

	return Counts{
		"documents":   stats.Documents,
		"symbols":     stats.Symbols,
		"occurrences": stats.Occurrences,
		"skipped":     stats.Skipped,
	}, nil
}
