package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/pkg/models"
)

const (
	summarizeMaxChars      = 8000
	summarizeMaxConsecFail = 5
	summarizeCallDelay     = 500 * time.Millisecond
)

// SummarizeFiles is stage 4a: for every file that has chunks but no
// summary yet, ask the generation provider for a one-sentence summary
// and store it. Resumable — a rerun only visits files FilesNeedingSummary
// still returns. Calls run sequentially with a fixed delay between them,
// unlike the embed stage's concurrent batches, since summarize is one
// call per file rather than one call per batch of many chunks.
func SummarizeFiles(ctx context.Context, env *Env, opts StageOptions, progress ProgressFunc) (Counts, error) {
	counts := Counts{}

	files, err := env.DB.FilesNeedingSummary(env.RepoID)
	if err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_files: list pending files", err)
	}
	if opts.PathFilter != "" {
		files = filterPathsByPrefix(files, opts.PathFilter)
	}
	counts["pending"] = len(files)

	var consecFailures int
	for i, filePath := range files {
		select {
		case <-ctx.Done():
			return counts, ctx.Err()
		default:
		}

		fc, err := env.DB.GetFileContent(env.RepoID, filePath)
		if err != nil {
			counts["errors"]++
			emit(progress, "summarize_files", i+1, len(files), filePath+" (content missing)")
			continue
		}

		summary, err := summarizeText(ctx, env.Generator, fmt.Sprintf("file %s", filePath), fc.Content)
		if err != nil {
			if ierrors.OfKind(err, ierrors.ProviderAuthError) {
				return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_files: provider auth error", err)
			}
			counts["errors"]++
			consecFailures++
			if consecFailures >= summarizeMaxConsecFail {
				return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_files: too many consecutive failures", err)
			}
			emit(progress, "summarize_files", i+1, len(files), filePath+" (summarize failed)")
			continue
		}
		consecFailures = 0

		if err := env.DB.UpsertFileSummary(&models.FileSummary{
			RepoID:    env.RepoID,
			FilePath:  filePath,
			Summary:   summary,
			Language:  parse.LanguageForPath(filePath),
			LineCount: fc.LineCount,
		}); err != nil {
			return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_files: upsert summary", err)
		}
		counts["summarized"]++
		emit(progress, "summarize_files", i+1, len(files), filePath)

		if i < len(files)-1 {
			select {
			case <-ctx.Done():
				return counts, ctx.Err()
			case <-time.After(summarizeCallDelay):
			}
		}
	}

	return counts, nil
}

// SummarizeDirectories is stage 4b: walk every directory that contains a
// summarized file, deepest first, and ask the generation provider to
// summarize the directory's role from its direct children's summaries.
// Deepest-first ordering guarantees a directory's child directory
// summaries already exist by the time the parent is visited (spec.md
// §8's bottom-up example).
func SummarizeDirectories(ctx context.Context, env *Env, opts StageOptions, progress ProgressFunc) (Counts, error) {
	counts := Counts{}

	dirs, err := env.DB.AllSummarizedDirs(env.RepoID)
	if err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: list dirs", err)
	}
	if opts.PathFilter != "" {
		dirs = filterPathsByPrefix(dirs, opts.PathFilter)
	}
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], "/") > strings.Count(dirs[j], "/")
	})
	counts["pending"] = len(dirs)

	var consecFailures int
	for i, dirPath := range dirs {
		select {
		case <-ctx.Done():
			return counts, ctx.Err()
		default:
		}

		files, err := env.DB.FileSummariesInDir(env.RepoID, dirPath)
		if err != nil {
			return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: list file summaries", err)
		}
		subdirs, err := env.DB.DirectorySummariesInDir(env.RepoID, dirPath)
		if err != nil {
			return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: list subdir summaries", err)
		}
		if len(files) == 0 && len(subdirs) == 0 {
			continue
		}

		existing, err := env.DB.GetDirectorySummary(env.RepoID, dirPath)
		if err != nil && !ierrors.OfKind(err, ierrors.NotFound) {
			return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: get existing summary", err)
		}
		if existing != nil && !childrenChangedSince(existing.UpdatedAt, files, subdirs) {
			counts["skipped"]++
			continue
		}

		contextText := directorySummaryContext(dirPath, files, subdirs)
		summary, err := summarizeText(ctx, env.Generator, fmt.Sprintf("directory %s", dirPath), contextText)
		if err != nil {
			if ierrors.OfKind(err, ierrors.ProviderAuthError) {
				return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: provider auth error", err)
			}
			counts["errors"]++
			consecFailures++
			if consecFailures >= summarizeMaxConsecFail {
				return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: too many consecutive failures", err)
			}
			emit(progress, "summarize_directories", i+1, len(dirs), dirPath+" (summarize failed)")
			continue
		}
		consecFailures = 0

		if err := env.DB.UpsertDirectorySummary(&models.DirectorySummary{
			RepoID:  env.RepoID,
			DirPath: dirPath,
			Summary: summary,
		}); err != nil {
			return counts, ierrors.Wrap(ierrors.PipelineErr, "summarize_directories: upsert summary", err)
		}
		counts["summarized"]++
		emit(progress, "summarize_directories", i+1, len(dirs), dirPath)

		if i < len(dirs)-1 {
			select {
			case <-ctx.Done():
				return counts, ctx.Err()
			case <-time.After(summarizeCallDelay):
			}
		}
	}

	return counts, nil
}

// summarizeText asks the generation provider for a one-sentence summary
// of subject's content, truncating to summarizeMaxChars first.
func summarizeText(ctx context.Context, gen provider.ChatProvider, subject, content string) (string, error) {
	if len(content) > summarizeMaxChars {
		content = content[:summarizeMaxChars]
	}
	resp, err := gen.Chat(ctx, provider.ChatRequest{
		Messages: []provider.Message{
			{Role: "system", Content: "Summarize the given source in exactly one sentence describing its role in the codebase. Reply with only the sentence."},
			{Role: "user", Content: fmt.Sprintf("%s:\n\n%s", subject, content)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// directorySummaryContext assembles a directory's child summaries into
// one block of text for the generation provider's prompt.
func directorySummaryContext(dirPath string, files []*models.FileSummary, subdirs []*models.DirectorySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "directory %s contains:\n", dirPath)
	for _, f := range files {
		fmt.Fprintf(&b, "- file %s: %s\n", f.FilePath, f.Summary)
	}
	for _, d := range subdirs {
		fmt.Fprintf(&b, "- subdirectory %s: %s\n", d.DirPath, d.Summary)
	}
	return b.String()
}

// childrenChangedSince reports whether any child file or subdirectory
// summary was written after since — the directory-summarize stage's
// skip-existing check, mirroring SummarizeFiles's FilesNeedingSummary
// resumability pattern one level up.
func childrenChangedSince(since time.Time, files []*models.FileSummary, subdirs []*models.DirectorySummary) bool {
	for _, f := range files {
		if f.UpdatedAt.After(since) {
			return true
		}
	}
	for _, d := range subdirs {
		if d.UpdatedAt.After(since) {
			return true
		}
	}
	return false
}

func filterPathsByPrefix(paths []string, pathFilter string) []string {
	prefix := strings.TrimSuffix(pathFilter, "/") + "/"
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == pathFilter || strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}
