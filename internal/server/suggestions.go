package server

import (
	"net/http"
)

// GET /api/suggestions/{id}
func (s *Server) getSuggestion(w http.ResponseWriter, r *http.Request) {
	sug, err := s.store.GetSuggestion(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSuggestionResponse(*sug))
}

// acceptSuggestion applies a pending suggestion to its section. Returns 409
// when the section content has drifted since the suggestion was proposed.
// POST /api/suggestions/{id}/accept
func (s *Server) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	sug, err := s.review.Accept(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSuggestionResponse(*sug))
}

// POST /api/suggestions/{id}/reject
func (s *Server) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	sug, err := s.review.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSuggestionResponse(*sug))
}

type editSuggestionRequest struct {
	EditedText string `json:"edited_text"`
}

// editSuggestion applies user-modified text in place of the suggested text.
// POST /api/suggestions/{id}/edit
func (s *Server) editSuggestion(w http.ResponseWriter, r *http.Request) {
	var req editSuggestionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EditedText == "" {
		respondError(w, http.StatusBadRequest, "edited_text must not be empty")
		return
	}

	sug, err := s.review.Edit(r.Context(), r.PathValue("id"), req.EditedText)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSuggestionResponse(*sug))
}
