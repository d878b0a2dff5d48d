package domain

import "time"

// Revision is one entry of an entity's append-only history. Data holds
// the full post-state snapshot, not a delta; Deleted marks the entry
// recording a soft delete. Revisions of one entity are totally ordered
// by (Time, ID).
type Revision struct {
	ID         int64
	Kind       Kind
	ObjectID   int64
	Identifier string
	UserID     int64
	UserName   string
	Comment    string
	Minor      bool
	Deleted    bool
	Time       time.Time
	Data       *Fields
}

// WriteMeta carries the provenance of one store mutation.
type WriteMeta struct {
	ActorID   int64
	ActorName string
	Comment   string
	Minor     bool
}

// Actor identifies the authenticated requester.
type Actor struct {
	ID   int64
	Name string
}
