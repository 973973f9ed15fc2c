package models

import "time"

// StaffRole distinguishes permanent teachers from substitutes.
type StaffRole string

const (
	StaffRoleTeacher    StaffRole = "teacher"
	StaffRoleSubstitute StaffRole = "substitute"
)

// Staff is a member of the school's workforce.
type Staff struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      StaffRole `db:"role" json:"role"`
	IsFlex    bool      `db:"is_flex" json:"is_flex"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Classroom is a physical room children are grouped into.
type Classroom struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
}

// TimeSlot is a named block of the day, e.g. early morning or afternoon.
type TimeSlot struct {
	ID        string `db:"id" json:"id"`
	SchoolID  string `db:"school_id" json:"school_id"`
	Name      string `db:"name" json:"name"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Position  int    `db:"position" json:"position"`
}
