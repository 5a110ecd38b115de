package httpapi

import (
	"net/http"
	"strconv"

	"github.com/breeze4/indiseek/internal/ierrors"
)

const defaultQueryHistoryLimit = 50

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	limit := defaultQueryHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ierrors.BadRequestf("invalid limit %q", v)
		}
		limit = n
	}
	queries, err := s.DB.ListQueries(repoID, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, queries)
	return nil
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return ierrors.BadRequestf("invalid query id")
	}
	query, err := s.DB.GetQuery(id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, query)
	return nil
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": s.Strategies.Names()})
	return nil
}
