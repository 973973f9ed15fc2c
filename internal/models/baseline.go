package models

import "time"

// BaselineScheduleEntry is a recurring placement on the weekly staffing grid.
// For a (teacher, day, slot) at most one non-floater entry may exist; floater
// entries are exempt because floaters conceptually belong to several
// classrooms at once.
type BaselineScheduleEntry struct {
	ID           string    `db:"id" json:"id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	TimeSlotID   string    `db:"time_slot_id" json:"time_slot_id"`
	ClassroomID  string    `db:"classroom_id" json:"classroom_id"`
	ClassGroupID string    `db:"class_group_id" json:"class_group_id"`
	IsFloater    bool      `db:"is_floater" json:"is_floater"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BaselineResolution selects how a double-booking is resolved.
type BaselineResolution string

const (
	// BaselineResolutionRemoveOther deletes conflicting entries and places the
	// teacher in the target classroom as non-floater.
	BaselineResolutionRemoveOther BaselineResolution = "remove_other"
	// BaselineResolutionMarkFloater flips conflicting entries to floater and
	// places the new entry as floater too.
	BaselineResolutionMarkFloater BaselineResolution = "mark_floater"
	// BaselineResolutionCancel declines the placement; nothing is mutated.
	BaselineResolutionCancel BaselineResolution = "cancel"
)

// BaselineOutcome is the terminal state of a conflict resolution.
type BaselineOutcome string

const (
	BaselineOutcomeCreated   BaselineOutcome = "created"
	BaselineOutcomeUnchanged BaselineOutcome = "unchanged"
)
