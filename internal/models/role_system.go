package models

// RoleSystem binds a teacher to a role tag for one semester.
type RoleSystem struct {
	ID           string `db:"id" json:"id"`
	Title        string `db:"title" json:"title"`
	TeacherID    string `db:"teacher_id" json:"teacher_id"`
	Role         string `db:"role" json:"role"`
	SemesterCode string `db:"semester_code" json:"semester_code"`
	Activate     bool   `db:"activate" json:"activate"`
	Audit
}
