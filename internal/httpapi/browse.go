package httpapi

import (
	"net/http"
	"path"
	"sort"
	"strconv"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/retrieval"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	stats, err := s.DB.Stats(repoID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

type treeEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	Summary  string `json:"summary,omitempty"`
	Embedded bool   `json:"embedded,omitempty"`
	Indexed  bool   `json:"indexed,omitempty"`
}

// handleTree returns the one-level children of path (default repo root),
// each annotated with its stored summary and coverage flags — the
// structured counterpart to retrieval.ReadMap's plain-text outline.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	dirPath := r.URL.Query().Get("path")

	dirs, err := s.DB.DirectorySummariesInDir(repoID, dirPath)
	if err != nil {
		return err
	}
	files, err := s.DB.FileSummariesInDir(repoID, dirPath)
	if err != nil {
		return err
	}

	vectorIDs, err := s.Vectors.AllChunkIDs(repoID)
	if err != nil {
		return err
	}
	hasVector := toBoolSet(vectorIDs)

	entries := make([]treeEntry, 0, len(dirs)+len(files))
	for _, d := range dirs {
		entries = append(entries, treeEntry{
			Name:    path.Base(d.DirPath),
			Path:    d.DirPath,
			IsDir:   true,
			Summary: d.Summary,
		})
	}
	for _, f := range files {
		chunks, err := s.DB.ChunksInFile(repoID, f.FilePath)
		if err != nil {
			return err
		}
		embedded := false
		for _, c := range chunks {
			if hasVector[c.ID] {
				embedded = true
				break
			}
		}
		entries = append(entries, treeEntry{
			Name:     path.Base(f.FilePath),
			Path:     f.FilePath,
			IsDir:    false,
			Summary:  f.Summary,
			Embedded: embedded,
			Indexed:  len(chunks) > 0,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	writeJSON(w, http.StatusOK, map[string]any{"path": dirPath, "entries": entries})
	return nil
}

// handleFile returns one file's summary, chunks, and coverage flags.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	filePath := r.PathValue("path")
	if filePath == "" {
		return ierrors.BadRequestf("path is required")
	}

	content, err := s.DB.GetFileContent(repoID, filePath)
	if err != nil {
		return err
	}
	chunks, err := s.DB.ChunksInFile(repoID, filePath)
	if err != nil {
		return err
	}
	vectorIDs, err := s.Vectors.AllChunkIDs(repoID)
	if err != nil {
		return err
	}
	hasVector := toBoolSet(vectorIDs)

	embeddedCount := 0
	for _, c := range chunks {
		if hasVector[c.ID] {
			embeddedCount++
		}
	}

	summary, err := s.DB.GetFileSummary(repoID, filePath)
	var summaryText string
	if err == nil {
		summaryText = summary.Summary
	} else if !ierrors.OfKind(err, ierrors.NotFound) {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_path":       filePath,
		"summary":         summaryText,
		"line_count":      content.LineCount,
		"chunks":          chunks,
		"chunk_count":     len(chunks),
		"embedded_chunks": embeddedCount,
		"lexical_indexed": len(chunks) > 0,
	})
	return nil
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return ierrors.BadRequestf("invalid chunk id")
	}
	chunks, err := s.DB.ChunksByIDs(repoID, []int64{id})
	if err != nil {
		return err
	}
	chunk, ok := chunks[id]
	if !ok {
		return ierrors.NotFoundf("chunk %d not found", id)
	}
	writeJSON(w, http.StatusOK, chunk)
	return nil
}

// handleSearch runs search_code directly, bypassing the agent loop — the
// dashboard's ad-hoc search box.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		return ierrors.BadRequestf("q is required")
	}
	mode := retrieval.SearchMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = retrieval.ModeHybrid
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ierrors.BadRequestf("invalid limit %q", v)
		}
		limit = n
	}

	hits, err := s.Tools.SearchCode(r.Context(), repoID, s.Embedder, q, mode, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
	return nil
}

func toBoolSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
