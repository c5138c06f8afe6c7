package models

import "time"

// MidtermStatus tracks the mid-term evaluation artifact.
type MidtermStatus string

const (
	MidtermNotSubmitted MidtermStatus = "not_submitted"
	MidtermSubmitted    MidtermStatus = "submitted"
	MidtermGraded       MidtermStatus = "graded"
)

// FinalStatus tracks the end-of-term evaluation.
type FinalStatus string

const (
	FinalPending    FinalStatus = "pending"
	FinalInProgress FinalStatus = "in_progress"
	FinalCompleted  FinalStatus = "completed"
	FinalPassed     FinalStatus = "passed"
	FinalFailed     FinalStatus = "failed"
)

// Enrollment links one student to a topic's grading records.
type Enrollment struct {
	ID           string  `db:"id" json:"id"`
	TopicID      string  `db:"topic_id" json:"topic_id"`
	StudentID    string  `db:"student_id" json:"student_id"`
	SemesterCode string  `db:"semester_code" json:"semester_code"`
	MidtermID    *string `db:"midterm_id" json:"midterm_id,omitempty"`
	FinalID      *string `db:"final_id" json:"final_id,omitempty"`
	Audit
}

// Midterm holds the latest mid-term grade and submission.
type Midterm struct {
	ID       string        `db:"id" json:"id"`
	Title    string        `db:"title" json:"title"`
	Grade    *float64      `db:"grade" json:"grade,omitempty"`
	Status   MidtermStatus `db:"status" json:"status"`
	Feedback *string       `db:"feedback" json:"feedback,omitempty"`
	FileID   *string       `db:"file_id" json:"file_id,omitempty"`
	Audit
}

// Final holds the three independently set components and the derived grade.
type Final struct {
	ID              string      `db:"id" json:"id"`
	Title           string      `db:"title" json:"title"`
	FileID          *string     `db:"file_id" json:"file_id,omitempty"`
	SupervisorGrade *float64    `db:"supervisor_grade" json:"supervisor_grade,omitempty"`
	ReviewerGrade   *float64    `db:"reviewer_grade" json:"reviewer_grade,omitempty"`
	DefenseGrade    *float64    `db:"defense_grade" json:"defense_grade,omitempty"`
	FinalGrade      *float64    `db:"final_grade" json:"final_grade,omitempty"`
	Status          FinalStatus `db:"status" json:"status"`
	Notes           *string     `db:"notes" json:"notes,omitempty"`
	CompletionDate  *time.Time  `db:"completion_date" json:"completion_date,omitempty"`
	Audit
}

// FinalComponent names one of the independently graded columns of a Final.
type FinalComponent string

const (
	ComponentSupervisor FinalComponent = "supervisor_grade"
	ComponentReviewer   FinalComponent = "reviewer_grade"
	ComponentDefense    FinalComponent = "defense_grade"
)

// GradeDefence holds the committee's two votes for one enrollment, 0-10 scale.
type GradeDefence struct {
	ID           string   `db:"id" json:"id"`
	EnrollmentID string   `db:"enrollment_id" json:"enrollment_id"`
	Council      *float64 `db:"council" json:"council,omitempty"`
	Secretary    *float64 `db:"secretary" json:"secretary,omitempty"`
	Audit
}

// VoteColumn names the committee vote a seat writes.
type VoteColumn string

const (
	VoteCouncil   VoteColumn = "council"
	VoteSecretary VoteColumn = "secretary"
)

// EnrollmentGrades is the read model of every grade attached to an enrollment.
type EnrollmentGrades struct {
	Enrollment   Enrollment    `json:"enrollment"`
	Midterm      *Midterm      `json:"midterm,omitempty"`
	Final        *Final        `json:"final,omitempty"`
	GradeDefence *GradeDefence `json:"grade_defence,omitempty"`
}

// GradeSheetRow is one line of the semester grade export.
type GradeSheetRow struct {
	StudentEmail    string   `db:"student_email"`
	StudentName     string   `db:"student_name"`
	TopicTitle      string   `db:"topic_title"`
	MajorCode       string   `db:"major_code"`
	MidtermGrade    *float64 `db:"midterm_grade"`
	SupervisorGrade *float64 `db:"supervisor_grade"`
	ReviewerGrade   *float64 `db:"reviewer_grade"`
	DefenseGrade    *float64 `db:"defense_grade"`
	FinalGrade      *float64 `db:"final_grade"`
	FinalStatus     *string  `db:"final_status"`
}
