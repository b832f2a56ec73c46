package auth

// Role is the single role claim carried by an authenticated caller. The
// user/role directory itself lives outside this service; we only consume
// the claim.
type Role string

const (
	RoleSuperadmin       Role = "superadmin"
	RoleAcademicDirector Role = "academic_director"
	RolePrincipal        Role = "principal"
	RoleTeacher          Role = "teacher"
	RoleHROfficer        Role = "hr_officer"
	RoleFinanceOfficer   Role = "finance_officer"
	RoleCashier          Role = "cashier"
	RoleOSASCoordinator  Role = "osas_coordinator"
	RoleGuidanceAdvocate Role = "guidance_advocate"
	RoleSchoolPresident  Role = "school_president"
	RoleResearchOfficer  Role = "research_officer"
	RoleLibrarian        Role = "librarian"
	RoleITPersonnel      Role = "it_personnel"
	RoleSafetyOfficer    Role = "safety_officer"
	RoleStudent          Role = "student"
	RoleParentVisitor    Role = "parent_visitor"
)

// roleAll is the wildcard a superadmin expands to.
const roleAll Role = "*"

// subsumes lists, per role, the roles it may additionally act as.
// Expansion is transitive: finance_officer acts as cashier, so anything a
// cashier may do a finance_officer may do too.
var subsumes = map[Role][]Role{
	RoleSuperadmin:       {roleAll},
	RoleAcademicDirector: {RolePrincipal, RoleTeacher, RoleStudent},
	RolePrincipal:        {RoleTeacher, RoleStudent},
	RoleTeacher:          {RoleStudent},
	RoleHROfficer:        {RoleTeacher, RoleFinanceOfficer},
	RoleFinanceOfficer:   {RoleCashier},
	RoleSafetyOfficer:    {RoleParentVisitor},
}

// KnownRole reports whether the role claim names a role this service
// understands. Unknown claims never gain permissions.
func KnownRole(r Role) bool {
	switch r {
	case RoleSuperadmin, RoleAcademicDirector, RolePrincipal, RoleTeacher,
		RoleHROfficer, RoleFinanceOfficer, RoleCashier, RoleOSASCoordinator,
		RoleGuidanceAdvocate, RoleSchoolPresident, RoleResearchOfficer,
		RoleLibrarian, RoleITPersonnel, RoleSafetyOfficer, RoleStudent,
		RoleParentVisitor:
		return true
	}
	return false
}

// Expand returns the set of roles the caller may act as: the role itself
// plus everything it subsumes, transitively.
func Expand(r Role) map[Role]struct{} {
	set := make(map[Role]struct{})
	var walk func(Role)
	walk = func(cur Role) {
		if _, seen := set[cur]; seen {
			return
		}
		set[cur] = struct{}{}
		for _, next := range subsumes[cur] {
			walk(next)
		}
	}
	walk(r)
	return set
}

// Allowed is the pure role→operation check: it reports whether a caller
// holding role may invoke the operation identified by perm. The policy
// table and hierarchy are static; callers inject the decision, the domain
// packages never consult roles themselves.
func Allowed(role Role, perm string) bool {
	direct, ok := policy[perm]
	if !ok {
		return false
	}
	acts := Expand(role)
	if _, wildcard := acts[roleAll]; wildcard {
		return true
	}
	for _, r := range direct {
		if _, ok := acts[r]; ok {
			return true
		}
	}
	return false
}
