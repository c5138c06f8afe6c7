package models

import "time"

// DefencePosition is a committee seat.
type DefencePosition string

const (
	PositionPresident DefencePosition = "president"
	PositionChairman  DefencePosition = "chairman"
	PositionSecretary DefencePosition = "secretary"
	PositionReviewer  DefencePosition = "reviewer"
	PositionMember    DefencePosition = "member"
)

// Normalize folds chairman into president.
func (p DefencePosition) Normalize() DefencePosition {
	if p == PositionChairman {
		return PositionPresident
	}
	return p
}

// Valid reports whether p is a known seat.
func (p DefencePosition) Valid() bool {
	switch p {
	case PositionPresident, PositionChairman, PositionSecretary, PositionReviewer, PositionMember:
		return true
	}
	return false
}

// Council is a defense committee for one major in one semester.
type Council struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	MajorCode    string     `db:"major_code" json:"major_code"`
	SemesterCode string     `db:"semester_code" json:"semester_code"`
	TimeStart    *time.Time `db:"time_start" json:"time_start,omitempty"`
	TimeEnd      *time.Time `db:"time_end" json:"time_end,omitempty"`
	Audit
}

// Defence assigns one teacher to one seat of a council.
type Defence struct {
	ID        string          `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	CouncilID string          `db:"council_id" json:"council_id"`
	TeacherID string          `db:"teacher_id" json:"teacher_id"`
	Position  DefencePosition `db:"position" json:"position"`
	Audit
}

// CouncilSchedule is the slot at which a council examines one topic.
// Intervals are half-open: [TimeStart, TimeEnd).
type CouncilSchedule struct {
	ID        string    `db:"id" json:"id"`
	CouncilID string    `db:"council_id" json:"council_id"`
	TopicID   string    `db:"topic_id" json:"topic_id"`
	TimeStart time.Time `db:"time_start" json:"time_start"`
	TimeEnd   time.Time `db:"time_end" json:"time_end"`
	Location  *string   `db:"location" json:"location,omitempty"`
	Audit
}

// DefenseSlot is the scheduled defense of one topic as its team sees it.
type DefenseSlot struct {
	CouncilSchedule
	CouncilTitle string    `json:"council_title"`
	TopicTitle   string    `json:"topic_title"`
	Members      []Defence `json:"members"`
}

// CouncilDetail bundles a council with its seats and schedule.
type CouncilDetail struct {
	Council
	Defences  []Defence         `json:"defences"`
	Schedules []CouncilSchedule `json:"schedules"`
	Usable    bool              `json:"usable"`
}

// CouncilFilter narrows council listings.
type CouncilFilter struct {
	SemesterCode string
	MajorCode    string
	TeacherID    string
}

// ScheduleConflict describes the existing slot a proposal collided with.
type ScheduleConflict struct {
	ScheduleID string    `json:"schedule_id"`
	TopicID    string    `json:"topic_id"`
	TimeStart  time.Time `json:"time_start"`
	TimeEnd    time.Time `json:"time_end"`
}
