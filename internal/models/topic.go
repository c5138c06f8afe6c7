package models

import "time"

// TopicStatus is the lifecycle state of a thesis topic.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicApproved   TopicStatus = "approved"
	TopicInProgress TopicStatus = "in_progress"
	TopicCompleted  TopicStatus = "completed"
	TopicRejected   TopicStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s TopicStatus) Valid() bool {
	switch s {
	case TopicPending, TopicApproved, TopicInProgress, TopicCompleted, TopicRejected:
		return true
	}
	return false
}

// Topic is one thesis proposal supervised by exactly one teacher.
type Topic struct {
	ID           string      `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	Description  string      `db:"description" json:"description"`
	MajorCode    string      `db:"major_code" json:"major_code"`
	SupervisorID string      `db:"supervisor_id" json:"supervisor_id"`
	SemesterCode string      `db:"semester_code" json:"semester_code"`
	Status       TopicStatus `db:"status" json:"status"`
	TeamID       *string     `db:"team_id" json:"team_id,omitempty"`
	TimeStart    *time.Time  `db:"time_start" json:"time_start,omitempty"`
	TimeEnd      *time.Time  `db:"time_end" json:"time_end,omitempty"`
	ApprovedBy   *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	ApprovalNote *string     `db:"approval_note" json:"approval_note,omitempty"`
	RejectedBy   *string     `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt   *time.Time  `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectReason *string     `db:"reject_reason" json:"reject_reason,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	Audit
}

// TopicFilter narrows topic listings. Empty fields do not filter.
type TopicFilter struct {
	SemesterCode string
	MajorCode    string
	SupervisorID string
	TeamID       string
	Status       TopicStatus
	PageRequest
}

// TopicTransition is a conditional status write: it only applies while the
// stored status still equals From.
type TopicTransition struct {
	TopicID      string
	From         TopicStatus
	To           TopicStatus
	Actor        string
	At           time.Time
	ApprovalNote *string
	RejectReason *string
}

// Team is the explicit group of students working on one topic.
type Team struct {
	ID               string   `db:"id" json:"id"`
	TopicID          string   `db:"topic_id" json:"topic_id"`
	SemesterCode     string   `db:"semester_code" json:"semester_code"`
	MemberStudentIDs []string `db:"-" json:"member_student_ids"`
	Audit
}

// TopicDetail is a topic with its team, enrollments and defense slot.
type TopicDetail struct {
	Topic
	Team        *Team        `json:"team,omitempty"`
	Enrollments []Enrollment `json:"enrollments"`
	Defense     *DefenseSlot `json:"defense,omitempty"`
}
