package server

import (
	"time"

	"docpilot/internal/store"
)

type documentResponse struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sectionResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Order      int    `json:"order"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

type queryResponse struct {
	ID            string     `json:"id"`
	QueryText     string     `json:"query_text"`
	Status        string     `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type suggestionResponse struct {
	ID            string    `json:"id"`
	QueryID       string    `json:"query_id"`
	SectionID     string    `json:"section_id"`
	DocumentID    string    `json:"document_id"`
	OriginalText  string    `json:"original_text"`
	SuggestedText string    `json:"suggested_text"`
	EditedText    string    `json:"edited_text,omitempty"`
	Reasoning     string    `json:"reasoning"`
	Confidence    float64   `json:"confidence"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type historyResponse struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id,omitempty"`
	SectionID    string    `json:"section_id,omitempty"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
	OldContent   string    `json:"old_content"`
	NewContent   string    `json:"new_content"`
	Action       string    `json:"action"`
	QueryText    string    `json:"query_text,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	SectionTitle string    `json:"section_title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toDocumentResponse(d store.Document) documentResponse {
	return documentResponse{
		ID:        d.ID,
		FilePath:  d.FilePath,
		Title:     d.Title,
		Checksum:  d.Checksum,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toSectionResponse(sec store.Section, withContent bool) sectionResponse {
	resp := sectionResponse{
		ID:         sec.ID,
		DocumentID: sec.DocumentID,
		Title:      sec.Title,
		Order:      sec.Order,
		StartLine:  sec.StartLine,
		EndLine:    sec.EndLine,
	}
	if withContent {
		resp.Content = sec.Content
	}
	return resp
}

func toQueryResponse(q store.Query) queryResponse {
	resp := queryResponse{
		ID:            q.ID,
		QueryText:     q.QueryText,
		Status:        string(q.Status),
		StatusMessage: q.StatusMessage,
		ErrorMessage:  q.ErrorMessage,
		CreatedAt:     q.CreatedAt,
	}
	if !q.CompletedAt.IsZero() {
		t := q.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

func toSuggestionResponse(sug store.Suggestion) suggestionResponse {
	return suggestionResponse{
		ID:            sug.ID,
		QueryID:       sug.QueryID,
		SectionID:     sug.SectionID,
		DocumentID:    sug.DocumentID,
		OriginalText:  sug.OriginalText,
		SuggestedText: sug.SuggestedText,
		EditedText:    sug.EditedText,
		Reasoning:     sug.Reasoning,
		Confidence:    sug.Confidence,
		Status:        string(sug.Status),
		CreatedAt:     sug.CreatedAt,
	}
}

func toHistoryResponse(e store.HistoryEntry) historyResponse {
	return historyResponse{
		ID:           e.ID,
		DocumentID:   e.DocumentID,
		SectionID:    e.SectionID,
		SuggestionID: e.SuggestionID,
		OldContent:   e.OldContent,
		NewContent:   e.NewContent,
		Action:       string(e.Action),
		QueryText:    e.QueryText,
		FilePath:     e.FilePath,
		SectionTitle: e.SectionTitle,
		CreatedAt:    e.CreatedAt,
	}
}
