// Package server exposes the documentation agent over HTTP: document and
// section reads, query submission with an SSE progress stream, suggestion
// review, and the edit history.
package server

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"docpilot/internal/ingest"
	"docpilot/internal/review"
	"docpilot/internal/search"
	"docpilot/internal/store"
)

// Server wires the HTTP handlers to their collaborators.
type Server struct {
	store    *store.Store
	index    *search.Index
	ingester *ingest.Ingester
	review   *review.Service
	runs     *RunManager
	logger   *slog.Logger
}

func New(st *store.Store, idx *search.Index, ing *ingest.Ingester, rev *review.Service, runs *RunManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    st,
		index:    idx,
		ingester: ing,
		review:   rev,
		runs:     runs,
		logger:   logger,
	}
}

// Handler returns the full route tree with CORS applied.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Documents
	mux.HandleFunc("POST /api/documents/ingest", s.triggerIngest)
	mux.HandleFunc("GET /api/documents", s.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.getDocument)
	mux.HandleFunc("GET /api/documents/{id}/structure", s.getDocumentStructure)
	mux.HandleFunc("GET /api/sections/{id}", s.getSection)
	mux.HandleFunc("GET /api/sections/{id}/dependencies", s.getSectionDependencies)
	mux.HandleFunc("GET /api/search", s.searchSections)

	// Queries and the agent run stream
	mux.HandleFunc("POST /api/queries", s.submitQuery)
	mux.HandleFunc("GET /api/queries", s.listQueries)
	mux.HandleFunc("GET /api/queries/{id}", s.getQuery)
	mux.HandleFunc("GET /api/queries/{id}/events", s.streamQueryEvents)
	mux.HandleFunc("GET /api/queries/{id}/suggestions", s.listQuerySuggestions)

	// Suggestion review
	mux.HandleFunc("GET /api/suggestions/{id}", s.getSuggestion)
	mux.HandleFunc("POST /api/suggestions/{id}/accept", s.acceptSuggestion)
	mux.HandleFunc("POST /api/suggestions/{id}/reject", s.rejectSuggestion)
	mux.HandleFunc("POST /api/suggestions/{id}/edit", s.editSuggestion)

	// History
	mux.HandleFunc("GET /api/history", s.listHistory)
	mux.HandleFunc("GET /api/history/stats", s.historyStats)
	mux.HandleFunc("GET /api/history/{id}", s.getHistoryEntry)
	mux.HandleFunc("GET /api/history/document/{id}", s.listDocumentHistory)
	mux.HandleFunc("GET /api/history/section/{id}", s.listSectionHistory)
	mux.HandleFunc("POST /api/history/{id}/revert", s.revertHistory)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
