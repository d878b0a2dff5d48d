package domain

import (
	"fmt"
	"sort"
	"time"
)

// Course field names. Count fields are shared with Institution.
const (
	FieldTitle         = "title"
	FieldCourseName    = "course_name"
	FieldInstitutionID = "institution_id"
	FieldTerm          = "term"
	FieldStart         = "start"
	FieldEnd           = "end"
	FieldDescription   = "description"
	FieldToken         = "token"
	FieldStudents      = "students"
	FieldInstructors   = "instructors"
	FieldOnlineAmbs    = "online_ambs"
	FieldCampusAmbs    = "campus_ambs"
)

// CourseSchema lists every course field in storage order.
var CourseSchema = Schema{
	{Name: FieldTitle, Kind: FieldString},
	{Name: FieldCourseName, Kind: FieldString},
	{Name: FieldInstitutionID, Kind: FieldInt},
	{Name: FieldTerm, Kind: FieldString},
	{Name: FieldStart, Kind: FieldTime},
	{Name: FieldEnd, Kind: FieldTime},
	{Name: FieldDescription, Kind: FieldString},
	{Name: FieldToken, Kind: FieldString},
	{Name: FieldStudents, Kind: FieldIDList},
	{Name: FieldInstructors, Kind: FieldIDList},
	{Name: FieldOnlineAmbs, Kind: FieldIDList},
	{Name: FieldCampusAmbs, Kind: FieldIDList},
	{Name: FieldStudentCount, Kind: FieldInt},
	{Name: FieldInstructorCount, Kind: FieldInt},
	{Name: FieldOACount, Kind: FieldInt},
	{Name: FieldCACount, Kind: FieldInt},
}

// Course is a snapshot of one course record. The title ("Name (Term)")
// is the external identifier joining the record to its revision log.
type Course struct {
	id     int64
	fields *Fields
}

func NewCourse() *Course {
	return &Course{fields: NewFields()}
}

func (c *Course) Kind() Kind         { return KindCourse }
func (c *Course) ID() int64          { return c.id }
func (c *Course) SetID(id int64)     { c.id = id }
func (c *Course) Identifier() string { return c.fields.String(FieldTitle) }

func (c *Course) Snapshot() *Fields { return c.fields.Clone() }

func (c *Course) Apply(f *Fields) { c.fields.Merge(f) }

func (c *Course) Complete() bool {
	for _, def := range CourseSchema {
		if !c.fields.Has(def.Name) {
			return false
		}
	}
	return true
}

func (c *Course) Validate() error {
	if !c.fields.Has(FieldCourseName) || c.fields.String(FieldCourseName) == "" {
		return ValidationError{Kind: KindCourse, Field: FieldCourseName, Reason: "course name is required"}
	}
	if c.fields.Has(FieldInstitutionID) && c.fields.Int(FieldInstitutionID) <= 0 {
		return ValidationError{Kind: KindCourse, Field: FieldInstitutionID, Reason: "institution is required"}
	}
	return nil
}

// DeriveTitle fills the title from name and term when the caller did
// not set one.
func (c *Course) DeriveTitle() {
	if c.fields.String(FieldTitle) != "" {
		return
	}
	name := c.fields.String(FieldCourseName)
	term := c.fields.String(FieldTerm)
	if term == "" {
		c.fields.Set(FieldTitle, name)
		return
	}
	c.fields.Set(FieldTitle, fmt.Sprintf("%s (%s)", name, term))
}

func (c *Course) Name() string         { return c.fields.String(FieldCourseName) }
func (c *Course) Term() string         { return c.fields.String(FieldTerm) }
func (c *Course) InstitutionID() int64 { return c.fields.Int(FieldInstitutionID) }

func (c *Course) SetTitle(v string)         { c.fields.Set(FieldTitle, v) }
func (c *Course) SetName(v string)          { c.fields.Set(FieldCourseName, v) }
func (c *Course) SetTerm(v string)          { c.fields.Set(FieldTerm, v) }
func (c *Course) SetInstitutionID(id int64) { c.fields.Set(FieldInstitutionID, id) }
func (c *Course) SetDescription(v string)   { c.fields.Set(FieldDescription, v) }
func (c *Course) SetStart(v time.Time)      { c.fields.Set(FieldStart, v) }
func (c *Course) SetEnd(v time.Time)        { c.fields.Set(FieldEnd, v) }
func (c *Course) SetToken(v string)         { c.fields.Set(FieldToken, v) }

// RoleList returns the user-id set for a role, sorted.
func (c *Course) RoleList(r Role) []int64 {
	ids := c.fields.IDs(r.ListField())
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetRoleList stores a role's user-id set deduplicated and sorted, and
// refreshes the cached count.
func (c *Course) SetRoleList(r Role, ids []int64) {
	normalized := NormalizeIDs(ids)
	c.fields.Set(r.ListField(), normalized)
	c.fields.Set(r.CountField(), int64(len(normalized)))
}

func (c *Course) RoleCount(r Role) int64 {
	return c.fields.Int(r.CountField())
}

// NormalizeIDs sorts and deduplicates a user-id list.
func NormalizeIDs(ids []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
