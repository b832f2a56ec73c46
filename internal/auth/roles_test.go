package auth

import "testing"

func TestExpandTransitive(t *testing.T) {
	set := Expand(RoleAcademicDirector)
	for _, want := range []Role{RoleAcademicDirector, RolePrincipal, RoleTeacher, RoleStudent} {
		if _, ok := set[want]; !ok {
			t.Fatalf("expected %s in expansion, got %v", want, set)
		}
	}
	if _, ok := set[RoleCashier]; ok {
		t.Fatalf("academic_director must not expand to cashier")
	}
}

func TestAllowedHierarchy(t *testing.T) {
	cases := []struct {
		role Role
		perm string
		want bool
	}{
		{RoleSafetyOfficer, PermCardRegister, true},
		{RoleSafetyOfficer, PermQueueServe, false},
		{RoleCashier, PermQueueServe, true},
		{RoleFinanceOfficer, PermQueueServe, true}, // via cashier
		{RoleHROfficer, PermQueueServe, true},      // via finance_officer -> cashier
		{RoleStudent, PermQueueIssue, true},
		{RoleStudent, PermQueueServe, false},
		{RoleTeacher, PermQueueIssue, true}, // teacher acts as student
		{RoleSuperadmin, PermCardRegister, true},
		{RoleSuperadmin, PermVisitorSweep, true},
		{RoleParentVisitor, PermCardRegister, false},
		{Role("bogus"), PermQueueIssue, false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Allowed(%s, %s)=%v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestAllowedUnknownPermission(t *testing.T) {
	if Allowed(RoleSuperadmin, "no.such.operation") {
		t.Fatal("unknown operations must be denied even for superadmin")
	}
}
