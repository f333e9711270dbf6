package models

import "time"

// MatchStatus describes the result of a similarity lookup. Both rejection
// states are non-fatal: the agent falls back to generated troubleshooting
// steps for either one.
type MatchStatus int

const (
	// MatchFound means a candidate passed the distance threshold.
	MatchFound MatchStatus = iota
	// MatchNone means the index returned zero candidates.
	MatchNone
	// MatchBelowThreshold means the best candidate's distance exceeded the
	// acceptance threshold.
	MatchBelowThreshold
)

// MatchResult is the transient outcome of one similarity query. Metadata
// includes the similarity_score key when Status is MatchFound.
type MatchResult struct {
	Status   MatchStatus
	Metadata map[string]interface{}
	Distance float64
}

// GuideDetails holds the fields extracted from a repair guide record that
// are relevant for the final walkthrough.
type GuideDetails struct {
	Title      string      `json:"title,omitempty"`
	Tools      interface{} `json:"tools,omitempty"`
	Steps      interface{} `json:"steps,omitempty"`
	EmbedCode  interface{} `json:"embed_code,omitempty"`
	EmbedGuide interface{} `json:"embed_guide,omitempty"`
}

// Chat roles stored in the conversation history.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ChatTurn is a single entry in a user's conversation history. Ordering is
// insertion order; turns are never mutated or deleted.
type ChatTurn struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestReport summarizes one ingestion pass over the guides directory.
type IngestReport struct {
	GuidesIndexed int    `json:"guides_indexed"`
	ManualChunks  int    `json:"manual_chunks_indexed"`
	FilesSkipped  int    `json:"files_skipped"`
	Collection    string `json:"collection"`
}

// IndexedDocument is a single entry retrieved from the vector index.
type IndexedDocument struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ListDocumentsResponse is the body of the document-listing endpoint.
type ListDocumentsResponse struct {
	Count     int               `json:"count"`
	Documents []IndexedDocument `json:"documents"`
}
