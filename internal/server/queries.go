package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docpilot/internal/agent"
	"docpilot/internal/store"
)

type submitQueryRequest struct {
	QueryText string `json:"query_text"`
}

// submitQuery creates a query row and launches an agent run for it in the
// background. The caller follows progress on the events endpoint.
// POST /api/queries
func (s *Server) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		respondError(w, http.StatusBadRequest, "query_text must not be empty")
		return
	}

	q, err := s.store.CreateQuery(r.Context(), req.QueryText)
	if err != nil {
		handleError(w, err)
		return
	}

	// The run outlives this request; it carries its own context.
	s.runs.Start(context.Background(), q.ID, q.QueryText)

	s.logger.Info("query submitted", "query_id", q.ID)
	respondJSON(w, http.StatusAccepted, toQueryResponse(*q))
}

// GET /api/queries?status=&limit=&offset=
func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	status := store.QueryStatus(r.URL.Query().Get("status"))
	limit, offset := paging(r, 50)

	queries, err := s.store.ListQueries(r.Context(), status, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]queryResponse, 0, len(queries))
	for _, q := range queries {
		out = append(out, toQueryResponse(q))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/queries/{id}
func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuery(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toQueryResponse(*q))
}

// streamQueryEvents streams the run's progress events over SSE. For a query
// whose run already finished, one synthetic terminal event is sent so late
// subscribers still learn the outcome.
// GET /api/queries/{id}/events
func (s *Server) streamQueryEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := s.store.GetQuery(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	events := s.runs.Subscribe(id)
	if events == nil {
		snapshot, err := s.terminalSnapshot(r.Context(), q)
		if err != nil {
			handleError(w, err)
			return
		}
		s.streamEvents(w, r, snapshot)
		return
	}

	defer s.runs.Reap(id)
	s.streamEvents(w, r, events)
}

// terminalSnapshot synthesizes a single event describing a query whose run is
// no longer streaming.
func (s *Server) terminalSnapshot(ctx context.Context, q *store.Query) (<-chan agent.Event, error) {
	ch := make(chan agent.Event, 1)

	switch q.Status {
	case store.QueryCompleted:
		count, err := s.store.CountSuggestionsByQuery(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		ch <- agent.Event{
			Type:      agent.EventCompleted,
			QueryID:   q.ID,
			Timestamp: time.Now().UTC(),
			Data:      map[string]any{"query_id": q.ID, "total_suggestions": count},
		}
	case store.QueryFailed:
		ch <- agent.Event{
			Type:      agent.EventError,
			QueryID:   q.ID,
			Timestamp: time.Now().UTC(),
			Data:      map[string]any{"error": q.ErrorMessage},
		}
	default:
		ch <- agent.Event{
			Type:      agent.EventStatus,
			QueryID:   q.ID,
			Timestamp: time.Now().UTC(),
			Data:      map[string]any{"message": string(q.Status)},
		}
	}

	close(ch)
	return ch, nil
}

// GET /api/queries/{id}/suggestions
func (s *Server) listQuerySuggestions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetQuery(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	suggestions, err := s.store.ListSuggestionsByQuery(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]suggestionResponse, 0, len(suggestions))
	for _, sug := range suggestions {
		out = append(out, toSuggestionResponse(sug))
	}
	respondJSON(w, http.StatusOK, out)
}

func paging(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
