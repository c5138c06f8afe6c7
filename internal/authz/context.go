package authz

import "github.com/cms-lvtn-2025/thesis-api/internal/models"

// Principal is the signed-in user as resolved for one semester.
type Principal struct {
	AccountID string             `json:"account_id"`
	ProfileID string             `json:"profile_id"`
	Kind      models.AccountKind `json:"kind"`
	Email     string             `json:"email"`
	MajorCode string             `json:"major_code"`
	Roles     RoleSet            `json:"-"`
}

// IsTeacher reports whether the principal resolved to a teacher profile.
func (p Principal) IsTeacher() bool { return p.Kind == models.AccountTeacher }

// IsStudent reports whether the principal resolved to a student profile.
func (p Principal) IsStudent() bool { return p.Kind == models.AccountStudent }

// RequestContext is passed explicitly into every use case.
type RequestContext struct {
	Principal    Principal
	SemesterCode string
}

// Permissions resolves the principal's role-level permissions.
func (rc RequestContext) Permissions() Permissions {
	return Resolve(rc.Principal.Roles)
}
