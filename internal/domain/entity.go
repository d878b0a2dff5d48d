package domain

// Kind is the stable identifier an entity's revisions are keyed by. It
// is independent of any Go type name so history stays readable across
// refactors.
type Kind string

const (
	KindInstitution Kind = "institution"
	KindCourse      Kind = "course"
)

func (k Kind) Valid() bool {
	return k == KindInstitution || k == KindCourse
}

func (k Kind) Schema() Schema {
	switch k {
	case KindInstitution:
		return InstitutionSchema
	case KindCourse:
		return CourseSchema
	default:
		return nil
	}
}

// Entity is the shared shape of revisioned records. A snapshot carries
// only the loaded fields; Complete reports whether every schema field
// is present.
type Entity interface {
	Kind() Kind
	ID() int64
	SetID(id int64)
	Identifier() string
	Snapshot() *Fields
	Apply(f *Fields)
	Complete() bool
	Validate() error
}

// NewEntity returns an empty entity of the given kind.
func NewEntity(kind Kind) Entity {
	switch kind {
	case KindInstitution:
		return NewInstitution()
	case KindCourse:
		return NewCourse()
	default:
		return nil
	}
}

// EntityFromSnapshot rebuilds an entity from a revision's stored
// post-state.
func EntityFromSnapshot(kind Kind, id int64, f *Fields) Entity {
	e := NewEntity(kind)
	if e == nil {
		return nil
	}
	e.SetID(id)
	e.Apply(f)
	return e
}
