package server

import (
	"net/http"
	"strconv"

	"docpilot/internal/store"
)

// triggerIngest re-scans the documentation root and ingests changed files.
// POST /api/documents/ingest
func (s *Server) triggerIngest(w http.ResponseWriter, r *http.Request) {
	count, err := s.ingester.IngestAll(r.Context())
	if err != nil {
		s.logger.Error("ingest failed", "error", err)
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents_ingested": count})
}

// GET /api/documents
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/documents/{id}
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponse(*doc))
}

// GET /api/documents/{id}/structure
func (s *Server) getDocumentStructure(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	sections, err := s.store.ListSections(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]sectionResponse, 0, len(sections))
	for _, sec := range sections {
		out = append(out, toSectionResponse(sec, false))
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/sections/{id}
func (s *Server) getSection(w http.ResponseWriter, r *http.Request) {
	sec, err := s.store.GetSection(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSectionResponse(*sec, true))
}

// GET /api/sections/{id}/dependencies
func (s *Server) getSectionDependencies(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSection(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	outgoing, err := s.store.OutgoingDependencies(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	incoming, err := s.store.IncomingDependencies(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"outgoing": dependencyTargets(outgoing, false),
		"incoming": dependencyTargets(incoming, true),
	})
}

func dependencyTargets(deps []store.Dependency, incoming bool) []map[string]string {
	out := make([]map[string]string, 0, len(deps))
	for _, d := range deps {
		id := d.TargetSectionID
		if incoming {
			id = d.SourceSectionID
		}
		out = append(out, map[string]string{"section_id": id, "kind": d.Kind})
	}
	return out
}

// GET /api/search?q=...&top_k=...
func (s *Server) searchSections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	topK := 10
	if v := r.URL.Query().Get("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}
	if topK > 20 {
		topK = 20
	}

	results, err := s.index.Search(q, topK)
	if err != nil {
		s.logger.Error("search failed", "query", q, "error", err)
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}
