package models

import (
	"time"

	"gorm.io/datatypes"
)

// Institution is a live directory row. Deleting it removes the row;
// history lives in revisions. Count columns are roll-ups over the
// institution's live courses.
type Institution struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name            string    `json:"name" gorm:"type:text;uniqueIndex"`
	City            string    `json:"city" gorm:"type:text"`
	Country         string    `json:"country" gorm:"type:text"`
	CourseCount     int64     `json:"courseCount" gorm:"not null;default:0"`
	StudentCount    int64     `json:"studentCount" gorm:"not null;default:0"`
	InstructorCount int64     `json:"instructorCount" gorm:"not null;default:0"`
	OACount         int64     `json:"oaCount" gorm:"not null;default:0"`
	CACount         int64     `json:"caCount" gorm:"not null;default:0"`
	CDate           time.Time `json:"cdate" gorm:"autoCreateTime"`
	MDate           time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// Course is a live directory row. Role lists are stored inline as JSON
// id arrays and mirrored into enrollments; the count columns cache the
// list cardinalities.
type Course struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Title           string         `json:"title" gorm:"type:text;uniqueIndex"`
	Name            string         `json:"name" gorm:"type:text"`
	InstitutionID   int64          `json:"institutionId" gorm:"index;not null"`
	Term            string         `json:"term" gorm:"type:text"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Description     string         `json:"description" gorm:"type:text"`
	Token           string         `json:"token" gorm:"type:text"`
	Students        datatypes.JSON `json:"students"`
	Instructors     datatypes.JSON `json:"instructors"`
	OnlineAmbs      datatypes.JSON `json:"onlineAmbs"`
	CampusAmbs      datatypes.JSON `json:"campusAmbs"`
	StudentCount    int64          `json:"studentCount" gorm:"not null;default:0"`
	InstructorCount int64          `json:"instructorCount" gorm:"not null;default:0"`
	OACount         int64          `json:"oaCount" gorm:"not null;default:0"`
	CACount         int64          `json:"caCount" gorm:"not null;default:0"`
	CDate           time.Time      `json:"cdate" gorm:"autoCreateTime"`
	MDate           time.Time      `json:"mdate" gorm:"autoUpdateTime"`
}

// Revision is one entry of the append-only history log. Rows are never
// updated or deleted. Identifier is indexed separately from ObjectID so
// undelete can find history after the live id has been freed.
type Revision struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind       string         `json:"kind" gorm:"type:text;index:idx_rev_object;index:idx_rev_identifier;not null"`
	ObjectID   int64          `json:"objectId" gorm:"index:idx_rev_object;not null"`
	Identifier string         `json:"identifier" gorm:"type:text;index:idx_rev_identifier;not null"`
	UserID     int64          `json:"userId" gorm:"not null"`
	UserName   string         `json:"userName" gorm:"type:text"`
	Comment    string         `json:"comment" gorm:"type:text"`
	Minor      bool           `json:"minor" gorm:"not null;default:false"`
	Deleted    bool           `json:"deleted" gorm:"not null;default:false"`
	Time       time.Time      `json:"time" gorm:"index;not null"`
	Data       datatypes.JSON `json:"data"`
	Checksum   string         `json:"checksum" gorm:"type:text"`
}

// Enrollment is one (user, course, role) membership row, the join table
// behind "find my courses". The composite key forbids duplicates.
type Enrollment struct {
	UserID   int64     `json:"userId" gorm:"primaryKey;autoIncrement:false;index"`
	CourseID int64     `json:"courseId" gorm:"primaryKey;autoIncrement:false;index"`
	Role     string    `json:"role" gorm:"primaryKey;type:text"`
	CDate    time.Time `json:"cdate" gorm:"autoCreateTime"`
}
