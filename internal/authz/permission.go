package authz

// Permission is a capability granted by a role, before entity scoping.
type Permission uint16

const (
	PermApproveTopics Permission = 1 << iota
	PermCreateCouncil
	PermScheduleCouncil
	PermGradeSupervisor
	PermGradeReviewer
	PermManageRoles
	PermViewSemester
	PermViewMajor
	PermExportGrades
)

// rolePermissions is the single source of truth for what each role may do.
var rolePermissions = map[Role]Permission{
	RoleAcademicAffairsStaff: PermCreateCouncil | PermScheduleCouncil | PermManageRoles | PermViewSemester | PermExportGrades,
	RoleDepartmentLecturer:   PermApproveTopics | PermCreateCouncil | PermScheduleCouncil | PermViewMajor | PermExportGrades,
	RoleSupervisorLecturer:   PermGradeSupervisor,
	RoleReviewerLecturer:     PermGradeReviewer | PermViewMajor,
}

// Permissions is the union of capabilities over a role set.
type Permissions Permission

// Resolve unions the permissions of every role in the set.
func Resolve(roles RoleSet) Permissions {
	var p Permission
	for r := range roles {
		p |= rolePermissions[r]
	}
	return Permissions(p)
}

// Has reports whether every bit of want is granted.
func (p Permissions) Has(want Permission) bool {
	return Permission(p)&want == want
}

// Summary is the boolean view returned to clients.
type Summary struct {
	CanApproveTopics           bool   `json:"can_approve_topics"`
	CanCreateCouncilOrSchedule bool   `json:"can_create_council_or_schedule"`
	CanGradeAsSupervisor       bool   `json:"can_grade_as_supervisor"`
	CanGradeAsReviewer         bool   `json:"can_grade_as_reviewer"`
	CanManageRoles             bool   `json:"can_manage_roles"`
	CanExportGrades            bool   `json:"can_export_grades"`
	Roles                      []Role `json:"roles"`
}

// Summarize reports role-level capabilities without entity scoping.
func Summarize(roles RoleSet) Summary {
	p := Resolve(roles)
	return Summary{
		CanApproveTopics:           p.Has(PermApproveTopics),
		CanCreateCouncilOrSchedule: p.Has(PermCreateCouncil),
		CanGradeAsSupervisor:       p.Has(PermGradeSupervisor),
		CanGradeAsReviewer:         p.Has(PermGradeReviewer),
		CanManageRoles:             p.Has(PermManageRoles),
		CanExportGrades:            p.Has(PermExportGrades),
		Roles:                      roles.Slice(),
	}
}
