package store

import "time"

// QueryStatus represents the processing state of a query.
type QueryStatus string

const (
	QueryPending    QueryStatus = "pending"    // Created, not yet processed
	QueryProcessing QueryStatus = "processing" // Agent run in progress
	QueryCompleted  QueryStatus = "completed"  // Terminal success
	QueryFailed     QueryStatus = "failed"     // Terminal failure
)

// IsTerminal reports whether the status is final. Terminal queries are never
// resumed in place; retrying requires a new query.
func (s QueryStatus) IsTerminal() bool {
	return s == QueryCompleted || s == QueryFailed
}

// SuggestionStatus represents the review disposition of a suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
	SuggestionEdited   SuggestionStatus = "edited"
)

// HistoryAction is the user action recorded by a history entry.
type HistoryAction string

const (
	ActionAccepted HistoryAction = "accepted"
	ActionRejected HistoryAction = "rejected"
	ActionEdited   HistoryAction = "edited"
	ActionReverted HistoryAction = "reverted"
)

// Document is an ingested documentation file.
type Document struct {
	ID        string
	FilePath  string
	Title     string
	Content   string
	Checksum  string // SHA-256 of Content, used for drift detection
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section is a titled, ordered span of a document. Content changes only
// through an accepted suggestion or a history revert.
type Section struct {
	ID         string
	DocumentID string
	Title      string
	Content    string
	Order      int
	StartLine  int
	EndLine    int
}

// Query is a user's natural-language documentation update request.
type Query struct {
	ID            string
	QueryText     string
	Status        QueryStatus
	StatusMessage string
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   time.Time // zero until terminal
}

// Suggestion is a proposed replacement for a section's content, awaiting
// human disposition. OriginalText snapshots the section content at proposal
// time; the accept path compares it against the live section.
type Suggestion struct {
	ID            string
	QueryID       string
	SectionID     string
	DocumentID    string
	OriginalText  string
	SuggestedText string
	EditedText    string // user override, applied instead of SuggestedText when set
	Reasoning     string
	Confidence    float64
	Status        SuggestionStatus
	CreatedAt     time.Time
}

// HistoryEntry is one append-only audit row per terminal user action on a
// suggestion (or a revert). File path and section title are denormalized so
// history survives document deletion.
type HistoryEntry struct {
	ID           string
	DocumentID   string
	SectionID    string
	SuggestionID string
	OldContent   string
	NewContent   string
	Action       HistoryAction
	QueryText    string
	FilePath     string
	SectionTitle string
	CreatedAt    time.Time
}

// Dependency is a directed cross-reference edge between two sections.
type Dependency struct {
	ID              string
	SourceSectionID string
	TargetSectionID string
	Kind            string // "link", "reference", "code"
}
