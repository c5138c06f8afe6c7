// Package authz maps active role assignments to permitted actions. Every
// function here is pure over its arguments.
package authz

import (
	"fmt"
	"sort"
)

// Role is a closed set of role tags a teacher may hold per semester.
type Role string

const (
	RoleAcademicAffairsStaff Role = "Academic_affairs_staff"
	RoleSupervisorLecturer   Role = "Supervisor_lecturer"
	RoleDepartmentLecturer   Role = "Department_Lecturer"
	RoleReviewerLecturer     Role = "Reviewer_Lecturer"
)

var knownRoles = map[Role]struct{}{
	RoleAcademicAffairsStaff: {},
	RoleSupervisorLecturer:   {},
	RoleDepartmentLecturer:   {},
	RoleReviewerLecturer:     {},
}

// ParseRole rejects anything outside the closed role set.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// RoleSet is the set of roles active for one principal in one semester.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set, ignoring duplicates.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Slice returns the roles sorted, for stable output and cache keys.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
