package authz

import "github.com/cms-lvtn-2025/thesis-api/internal/models"

// CanApproveTopic requires Department_Lecturer scoped to the topic's major.
func CanApproveTopic(p Principal, topic models.Topic) bool {
	return p.IsTeacher() &&
		Resolve(p.Roles).Has(PermApproveTopics) &&
		p.MajorCode != "" && p.MajorCode == topic.MajorCode
}

// CanCreateCouncilOrSchedule requires staff or department lecturer.
func CanCreateCouncilOrSchedule(p Principal) bool {
	return p.IsTeacher() && Resolve(p.Roles).Has(PermCreateCouncil)
}

// CanGradeAsSupervisor requires the role and ownership of the topic.
func CanGradeAsSupervisor(p Principal, topic models.Topic) bool {
	return p.IsTeacher() &&
		Resolve(p.Roles).Has(PermGradeSupervisor) &&
		p.ProfileID != "" && topic.SupervisorID == p.ProfileID
}

// CanGradeAsReviewer requires the role and a matching major.
func CanGradeAsReviewer(p Principal, topic models.Topic) bool {
	return p.IsTeacher() &&
		Resolve(p.Roles).Has(PermGradeReviewer) &&
		p.MajorCode != "" && p.MajorCode == topic.MajorCode
}

// CanManageRoles is limited to academic affairs staff.
func CanManageRoles(p Principal) bool {
	return p.IsTeacher() && Resolve(p.Roles).Has(PermManageRoles)
}

// CommitteeSeat returns the vote column teacherID writes on the council
// described by defences. Only chair and secretary seats grade numerically.
func CommitteeSeat(defences []models.Defence, teacherID string) (models.VoteColumn, bool) {
	for _, d := range defences {
		if d.TeacherID != teacherID {
			continue
		}
		switch d.Position.Normalize() {
		case models.PositionPresident:
			return models.VoteCouncil, true
		case models.PositionSecretary:
			return models.VoteSecretary, true
		}
	}
	return "", false
}

// CanGradeAsCommittee reports whether the principal holds a grading seat.
func CanGradeAsCommittee(p Principal, defences []models.Defence) bool {
	if !p.IsTeacher() || p.ProfileID == "" {
		return false
	}
	_, ok := CommitteeSeat(defences, p.ProfileID)
	return ok
}

// CouncilUsable reports whether a council has both a chair and a secretary.
func CouncilUsable(defences []models.Defence) bool {
	var chair, secretary bool
	for _, d := range defences {
		switch d.Position.Normalize() {
		case models.PositionPresident:
			chair = true
		case models.PositionSecretary:
			secretary = true
		}
	}
	return chair && secretary
}

// Visibility describes the widest scope a principal may list.
type Visibility int

const (
	VisibilityOwn Visibility = iota
	VisibilityMajor
	VisibilitySemester
)

// ListScope picks the visibility for semester-scoped listings.
func ListScope(p Principal) Visibility {
	perms := Resolve(p.Roles)
	switch {
	case perms.Has(PermViewSemester):
		return VisibilitySemester
	case perms.Has(PermViewMajor):
		return VisibilityMajor
	default:
		return VisibilityOwn
	}
}

// CanCompleteTopic allows staff, department lecturers of the major and the supervisor.
func CanCompleteTopic(p Principal, topic models.Topic) bool {
	if !p.IsTeacher() {
		return false
	}
	perms := Resolve(p.Roles)
	if perms.Has(PermViewSemester) {
		return true
	}
	if perms.Has(PermApproveTopics) && p.MajorCode == topic.MajorCode {
		return true
	}
	return p.ProfileID != "" && topic.SupervisorID == p.ProfileID
}

// CanViewTopic applies the listing scope to a single topic. Students are
// checked against their team by the caller.
func CanViewTopic(p Principal, topic models.Topic) bool {
	if !p.IsTeacher() {
		return false
	}
	switch ListScope(p) {
	case VisibilitySemester:
		return true
	case VisibilityMajor:
		if p.MajorCode == topic.MajorCode {
			return true
		}
	}
	return p.ProfileID != "" && topic.SupervisorID == p.ProfileID
}

// CanManageCouncil narrows CanCreateCouncilOrSchedule to a major: staff
// manage every major, department lecturers only their own.
func CanManageCouncil(p Principal, majorCode string) bool {
	if !CanCreateCouncilOrSchedule(p) {
		return false
	}
	if Resolve(p.Roles).Has(PermViewSemester) {
		return true
	}
	return p.MajorCode != "" && p.MajorCode == majorCode
}
