package server

import (
	"net/http"

	"docpilot/internal/store"
)

// GET /api/history?action=&limit=&offset=
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	action := store.HistoryAction(r.URL.Query().Get("action"))
	limit, offset := paging(r, 50)

	entries, err := s.store.ListHistory(r.Context(), action, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/history/{id}
func (s *Server) getHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetHistoryEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toHistoryResponse(*entry))
}

// GET /api/history/document/{id}?limit=
func (s *Server) listDocumentHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	limit, _ := paging(r, 50)

	entries, err := s.store.ListDocumentHistory(r.Context(), id, limit)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/history/section/{id}
func (s *Server) listSectionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSection(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	entries, err := s.store.ListSectionHistory(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/history/stats
func (s *Server) historyStats(w http.ResponseWriter, r *http.Request) {
	byAction, recent, err := s.store.HistoryStats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"by_action":   byAction,
		"last_7_days": recent,
	})
}

// revertHistory restores the content a history entry replaced and records the
// revert as a new entry.
// POST /api/history/{id}/revert
func (s *Server) revertHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.review.Revert(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toHistoryResponse(*entry))
}
