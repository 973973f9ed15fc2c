package models

import "time"

// AbsenceStatus tracks coverage progress for an absence.
type AbsenceStatus string

const (
	AbsenceStatusOpen      AbsenceStatus = "open"
	AbsenceStatusFilled    AbsenceStatus = "filled"
	AbsenceStatusCancelled AbsenceStatus = "cancelled"
)

// Absence is one staff member's unavailability window requiring substitute
// coverage. It is materialized lazily from a time-off request the first time
// coverage is asked for and stays linked 1:1 to that request.
type Absence struct {
	ID            string        `db:"id" json:"id"`
	SchoolID      string        `db:"school_id" json:"school_id"`
	StaffID       string        `db:"staff_id" json:"staff_id"`
	TimeOffID     string        `db:"time_off_id" json:"time_off_id"`
	StartDate     time.Time     `db:"start_date" json:"start_date"`
	EndDate       time.Time     `db:"end_date" json:"end_date"`
	Status        AbsenceStatus `db:"status" json:"status"`
	TotalShifts   int           `db:"total_shifts" json:"total_shifts"`
	CoveredShifts int           `db:"covered_shifts" json:"covered_shifts"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// AbsenceShift is one ShiftKey belonging to an absence, denormalised with the
// classroom and class group resolved from the absent teacher's baseline
// schedule. Immutable after materialization.
type AbsenceShift struct {
	ID           string    `db:"id" json:"id"`
	AbsenceID    string    `db:"absence_id" json:"absence_id"`
	Date         time.Time `db:"date" json:"date"`
	TimeSlotID   string    `db:"time_slot_id" json:"time_slot_id"`
	ClassroomID  string    `db:"classroom_id" json:"classroom_id"`
	ClassGroupID string    `db:"class_group_id" json:"class_group_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Key returns the shift's coverage identity.
func (s AbsenceShift) Key() ShiftKey {
	return NewShiftKey(s.Date, s.TimeSlotID, s.ClassroomID)
}

// TimeOffRequest is the originating record an absence is derived from. The
// request itself is owned by an external collaborator; only the fields the
// coverage engine reads are modelled here.
type TimeOffRequest struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Status    string    `db:"status" json:"status"`
}
