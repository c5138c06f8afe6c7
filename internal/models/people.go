package models

// Teacher is a per-semester lecturer profile.
type Teacher struct {
	ID           string `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	Username     string `db:"username" json:"username"`
	Gender       string `db:"gender" json:"gender"`
	MajorCode    string `db:"major_code" json:"major_code"`
	SemesterCode string `db:"semester_code" json:"semester_code"`
	Audit
}

// Student is a per-semester student profile.
type Student struct {
	ID           string `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	Username     string `db:"username" json:"username"`
	Phone        string `db:"phone" json:"phone"`
	Gender       string `db:"gender" json:"gender"`
	MajorCode    string `db:"major_code" json:"major_code"`
	ClassCode    string `db:"class_code" json:"class_code"`
	SemesterCode string `db:"semester_code" json:"semester_code"`
	Audit
}

// PeopleFilter narrows teacher and student listings.
type PeopleFilter struct {
	SemesterCode string
	MajorCode    string
	Search       string
	PageRequest
}
