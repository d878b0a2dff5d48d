package domain

import "testing"

func TestParseRoleRoundTrip(t *testing.T) {
	for _, role := range AllRoles() {
		parsed, err := ParseRole(role.String())
		if err != nil {
			t.Fatalf("parse %q failed: %v", role.String(), err)
		}
		if parsed != role {
			t.Fatalf("round trip broke: %v became %v", role, parsed)
		}
	}

	if _, err := ParseRole("dean"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRoleFieldsAreDistinct(t *testing.T) {
	lists := map[string]bool{}
	counts := map[string]bool{}
	for _, role := range AllRoles() {
		if role.ListField() == "" || role.CountField() == "" {
			t.Fatalf("role %v missing field mapping", role)
		}
		if lists[role.ListField()] || counts[role.CountField()] {
			t.Fatalf("role %v shares a field with another role", role)
		}
		lists[role.ListField()] = true
		counts[role.CountField()] = true

		if !CourseSchema.Has(role.ListField()) || !CourseSchema.Has(role.CountField()) {
			t.Fatalf("role %v fields missing from course schema", role)
		}
	}
}

func TestNormalizeIDsSortsAndDedups(t *testing.T) {
	got := NormalizeIDs([]int64{5, 1, 5, 3, 1})
	want := []int64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("unexpected result %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected result %v", got)
		}
	}
}

func TestSetRoleListRefreshesCount(t *testing.T) {
	course := NewCourse()
	course.SetRoleList(RoleStudent, []int64{4, 2, 4, 1})

	if got := course.RoleCount(RoleStudent); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
	ids := course.RoleList(RoleStudent)
	if !ValueEqual(ids, []int64{1, 2, 4}) {
		t.Fatalf("unexpected list %v", ids)
	}
}

func TestDeriveTitle(t *testing.T) {
	course := NewCourse()
	course.SetName("Algebra")
	course.SetTerm("WS26")
	course.DeriveTitle()
	if course.Identifier() != "Algebra (WS26)" {
		t.Fatalf("unexpected title %q", course.Identifier())
	}

	bare := NewCourse()
	bare.SetName("Algebra")
	bare.DeriveTitle()
	if bare.Identifier() != "Algebra" {
		t.Fatalf("unexpected title %q", bare.Identifier())
	}
}
