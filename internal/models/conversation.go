package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one caller-supplied message of a chat transcript.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type EntityKind string

const (
	EntityProperNoun EntityKind = "proper_noun"
	EntityNumber     EntityKind = "number"
	EntityDate       EntityKind = "date"
)

// EntityMention is derived per request from user turns. Recency 1 is the
// newest turn of the (truncated) history.
type EntityMention struct {
	Text      string     `json:"text"`
	Kind      EntityKind `json:"kind"`
	TurnIndex int        `json:"turnIndex"`
	Recency   int        `json:"recency"`
}

// PreparedContext is the result of resolving a query against its history.
type PreparedContext struct {
	AugmentedQuery     string             `json:"augmentedQuery"`
	RelevantHistory    []ConversationTurn `json:"relevantHistory"`
	Entities           []EntityMention    `json:"entities"`
	NeedsClarification bool               `json:"needsClarification"`
	HasReferences      bool               `json:"hasReferences"`
}
