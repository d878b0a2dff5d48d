package domain

// Institution field names.
const (
	FieldName            = "name"
	FieldCity            = "city"
	FieldCountry         = "country"
	FieldCourseCount     = "course_count"
	FieldStudentCount    = "student_count"
	FieldInstructorCount = "instructor_count"
	FieldOACount         = "oa_count"
	FieldCACount         = "ca_count"
)

// InstitutionSchema lists every institution field in storage order. The
// four role counts and course_count are roll-ups over the institution's
// live courses.
var InstitutionSchema = Schema{
	{Name: FieldName, Kind: FieldString},
	{Name: FieldCity, Kind: FieldString},
	{Name: FieldCountry, Kind: FieldString},
	{Name: FieldCourseCount, Kind: FieldInt},
	{Name: FieldStudentCount, Kind: FieldInt},
	{Name: FieldInstructorCount, Kind: FieldInt},
	{Name: FieldOACount, Kind: FieldInt},
	{Name: FieldCACount, Kind: FieldInt},
}

// Institution is a snapshot of one institution record. The name doubles
// as the external identifier joining the record to its revision log.
type Institution struct {
	id     int64
	fields *Fields
}

func NewInstitution() *Institution {
	return &Institution{fields: NewFields()}
}

func (i *Institution) Kind() Kind         { return KindInstitution }
func (i *Institution) ID() int64          { return i.id }
func (i *Institution) SetID(id int64)     { i.id = id }
func (i *Institution) Identifier() string { return i.fields.String(FieldName) }

func (i *Institution) Snapshot() *Fields { return i.fields.Clone() }

func (i *Institution) Apply(f *Fields) { i.fields.Merge(f) }

func (i *Institution) Complete() bool {
	for _, def := range InstitutionSchema {
		if !i.fields.Has(def.Name) {
			return false
		}
	}
	return true
}

func (i *Institution) Validate() error {
	if !i.fields.Has(FieldName) || i.fields.String(FieldName) == "" {
		return ValidationError{Kind: KindInstitution, Field: FieldName, Reason: "name is required"}
	}
	return nil
}

func (i *Institution) Name() string    { return i.fields.String(FieldName) }
func (i *Institution) City() string    { return i.fields.String(FieldCity) }
func (i *Institution) Country() string { return i.fields.String(FieldCountry) }

func (i *Institution) SetName(v string)    { i.fields.Set(FieldName, v) }
func (i *Institution) SetCity(v string)    { i.fields.Set(FieldCity, v) }
func (i *Institution) SetCountry(v string) { i.fields.Set(FieldCountry, v) }

func (i *Institution) CourseCount() int64 { return i.fields.Int(FieldCourseCount) }

func (i *Institution) RoleCount(r Role) int64 {
	return i.fields.Int(r.CountField())
}
