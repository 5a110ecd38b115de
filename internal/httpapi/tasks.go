package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/task"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.Tasks.ListTasks())
	return nil
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) error {
	record, err := s.Tasks.GetTask(r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

// handleStreamTask serves a task's progress as server-sent events —
// "progress", "done", and "error" messages, one JSON object per line per
// spec.md §6. A slow client never blocks the task: its subscriber channel
// is bounded and gets dropped rather than backing up the publisher.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) error {
	taskID := r.PathValue("id")
	if _, err := s.Tasks.GetTask(taskID); err != nil {
		return err
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return ierrors.New(ierrors.Internal, "streaming not supported")
	}

	subID := uuid.NewString()
	ch := s.Tasks.Subscribe(taskID, subID)
	if ch == nil {
		return ierrors.NotFoundf("task %q not found", taskID)
	}
	defer s.Tasks.Unsubscribe(taskID, subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeSSEEvent(w, ev); err != nil {
				return nil
			}
			flusher.Flush()
			if ev.Done {
				return nil
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev task.Event) error {
	var payload map[string]any
	switch {
	case ev.Done && ev.Error != "":
		payload = map[string]any{"type": "error", "error": ev.Error}
	case ev.Done:
		payload = map[string]any{"type": "done", "result": ev.Result}
	default:
		payload = map[string]any{"type": "progress", "stage": ev.Progress.Stage,
			"current": ev.Progress.Current, "total": ev.Progress.Total, "subject": ev.Progress.Subject}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", body)
	return err
}
