package edubase

import (
	"time"
)

// Event is the pure-data audit record emitted after a mutation commits.
// Rendering it into human text is the consumer's job; the core never
// formats log entries itself.
type Event struct {
	Type       string         `json:"type"`
	Subtype    string         `json:"subtype"`
	ActorID    int64          `json:"actorId"`
	ActorName  string         `json:"actorName,omitempty"`
	Kind       string         `json:"kind"`
	ObjectID   int64          `json:"objectId"`
	Identifier string         `json:"identifier"`
	Comment    string         `json:"comment,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Time       time.Time      `json:"time"`
}

// UserInfo is what the external identity provider returns for a user id.
type UserInfo struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
}

// RevisionSummary is the wire form of one history entry.
type RevisionSummary struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	ObjectID   int64     `json:"objectId"`
	Identifier string    `json:"identifier"`
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	Comment    string    `json:"comment,omitempty"`
	Minor      bool      `json:"minor"`
	Deleted    bool      `json:"deleted"`
	Time       time.Time `json:"time"`
}

// FieldChangeView is the wire form of one diff entry for previews.
type FieldChangeView struct {
	Field  string `json:"field"`
	Source any    `json:"source,omitempty"`
	Target any    `json:"target,omitempty"`
}
