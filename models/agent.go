package models

// AgentRequest is the decoded multipart request handled by the agent
// pipeline. The media fields hold the raw uploaded bytes and are nil when
// the modality was not provided.
type AgentRequest struct {
	UserID string
	Query  string
	Image  []byte
	Audio  []byte
	Video  []byte
}

// AgentResponse is the body returned by the agent endpoint on success.
type AgentResponse struct {
	Response string `json:"response"`
}

// OutcomeKind discriminates the two terminal states of the reasoning loop.
type OutcomeKind int

const (
	// OutcomeGenerated means the agent synthesized a free-text answer.
	OutcomeGenerated OutcomeKind = iota
	// OutcomeMatch means the agent accepted a retrieved guide match.
	OutcomeMatch
)

// AgentOutcome is the tagged result of one reasoning pass. Exactly one of
// Text (OutcomeGenerated) or Match (OutcomeMatch) is meaningful.
type AgentOutcome struct {
	Kind  OutcomeKind
	Text  string
	Match MatchMetadata
}

// MatchMetadata identifies an accepted guide match. Filename is the join
// key back to the full guide record on disk.
type MatchMetadata struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
}
