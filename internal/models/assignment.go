package models

import "time"

// AssignmentStatus is the lifecycle state of a substitute assignment.
// Assignments are soft-deleted: cancellation flips the status, rows are never
// physically removed.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

// AssignmentKind distinguishes how an assignment came to exist.
type AssignmentKind string

const (
	AssignmentKindRecommended AssignmentKind = "recommended"
	AssignmentKindFlex        AssignmentKind = "flex"
)

// Assignment records that a staff member covers one shift of an absence.
// At most one active assignment may exist per (teacher_id, date, time_slot_id);
// the storage layer enforces this with a partial unique index.
type Assignment struct {
	ID          string           `db:"id" json:"id"`
	SchoolID    string           `db:"school_id" json:"school_id"`
	AbsenceID   string           `db:"absence_id" json:"absence_id"`
	EventID     *string          `db:"event_id" json:"event_id,omitempty"`
	StaffID     string           `db:"staff_id" json:"staff_id"`
	TeacherID   string           `db:"teacher_id" json:"teacher_id"`
	Date        time.Time        `db:"date" json:"date"`
	TimeSlotID  string           `db:"time_slot_id" json:"time_slot_id"`
	ClassroomID string           `db:"classroom_id" json:"classroom_id"`
	Status      AssignmentStatus `db:"status" json:"status"`
	IsPartial   bool             `db:"is_partial" json:"is_partial"`
	Kind        AssignmentKind   `db:"kind" json:"kind"`
	Notes       string           `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Key returns the assignment's shift identity.
func (a Assignment) Key() ShiftKey {
	return NewShiftKey(a.Date, a.TimeSlotID, a.ClassroomID)
}

// FlexEventStatus is the lifecycle state of a flex-assignment event.
type FlexEventStatus string

const (
	FlexEventStatusActive    FlexEventStatus = "active"
	FlexEventStatusCancelled FlexEventStatus = "cancelled"
)

// FlexAssignmentEvent groups assignments created together, e.g. a floater
// placed across classrooms for a date range. Cancelling the last active child
// assignment cascades to the event.
type FlexAssignmentEvent struct {
	ID        string          `db:"id" json:"id"`
	SchoolID  string          `db:"school_id" json:"school_id"`
	StaffID   string          `db:"staff_id" json:"staff_id"`
	Status    FlexEventStatus `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// UnassignScope selects which assignments a cancellation targets.
type UnassignScope string

const (
	UnassignScopeSingle  UnassignScope = "single"
	UnassignScopeWeekday UnassignScope = "weekday"
	UnassignScopeAll     UnassignScope = "all_for_absence"
)

// AssignmentConflict describes an existing active assignment that blocked an
// insert, with enough context for a human to pick a different candidate.
type AssignmentConflict struct {
	StaffID     string    `json:"staff_id"`
	TeacherID   string    `json:"teacher_id"`
	Date        time.Time `json:"date"`
	TimeSlotID  string    `json:"time_slot_id"`
	ClassroomID string    `json:"classroom_id,omitempty"`
	HeldBy      string    `json:"held_by,omitempty"`
}

// AssignmentConflictError is returned when one or more shift inserts collide
// with existing active assignments.
type AssignmentConflictError struct {
	Message   string               `json:"message"`
	Conflicts []AssignmentConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
