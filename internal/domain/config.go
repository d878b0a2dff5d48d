package domain

import "time"

// Settings carries the site-wide behavior flags. It is built once at
// startup and handed to every component that needs it; there is no
// process-wide accessor.
type Settings struct {
	RequireDeleteComment bool
	EnlistBatchLimit     int
	ActionTokenTTL       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RequireDeleteComment: false,
		EnlistBatchLimit:     200,
		ActionTokenTTL:       10 * time.Minute,
	}
}

// ReconcileReport summarizes one consistency sweep.
type ReconcileReport struct {
	OrphanedRows      int64 `json:"orphanedRows"`
	CoursesFixed      int   `json:"coursesFixed"`
	InstitutionsFixed int   `json:"institutionsFixed"`
}

// Credential is one configured API user. Admin accounts may delete,
// undelete, and revert; everyone else is limited to create, edit, and
// enlist.
type Credential struct {
	Token  string
	UserID int64
	Name   string
	Admin  bool
}
