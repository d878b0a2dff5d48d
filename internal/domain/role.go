package domain

import "fmt"

// Role is the closed set of course enrollment roles. Each role knows
// the course field holding its inline user-id list and the field
// caching that list's cardinality, so dispatch is exhaustive at compile
// time instead of going through string-keyed maps.
type Role int

const (
	RoleStudent Role = iota
	RoleInstructor
	RoleOnlineAmbassador
	RoleCampusAmbassador
)

func AllRoles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleOnlineAmbassador, RoleCampusAmbassador}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "instructor":
		return RoleInstructor, nil
	case "online_ambassador":
		return RoleOnlineAmbassador, nil
	case "campus_ambassador":
		return RoleCampusAmbassador, nil
	default:
		return 0, fmt.Errorf("unknown role: %s", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleInstructor:
		return "instructor"
	case RoleOnlineAmbassador:
		return "online_ambassador"
	case RoleCampusAmbassador:
		return "campus_ambassador"
	default:
		return "unknown"
	}
}

// ListField is the course field holding the inline user-id list.
func (r Role) ListField() string {
	switch r {
	case RoleStudent:
		return FieldStudents
	case RoleInstructor:
		return FieldInstructors
	case RoleOnlineAmbassador:
		return FieldOnlineAmbs
	case RoleCampusAmbassador:
		return FieldCampusAmbs
	default:
		return ""
	}
}

// CountField is the cached cardinality field, present on both Course
// and, as a roll-up sum, on Institution.
func (r Role) CountField() string {
	switch r {
	case RoleStudent:
		return FieldStudentCount
	case RoleInstructor:
		return FieldInstructorCount
	case RoleOnlineAmbassador:
		return FieldOACount
	case RoleCampusAmbassador:
		return FieldCACount
	default:
		return ""
	}
}
