package dto

import "github.com/careloop/staffing-api/internal/models"

// AssignShiftsRequest places one candidate onto a set of absence shifts.
type AssignShiftsRequest struct {
	CandidateID string                `json:"candidateId" validate:"required"`
	ShiftIDs    []string              `json:"shiftIds" validate:"required,min=1,max=256"`
	Kind        models.AssignmentKind `json:"kind" validate:"omitempty,oneof=recommended flex"`
	Notes       string                `json:"notes" validate:"omitempty,max=2000"`
}

// AssignShiftsResponse lists the created assignment ids.
type AssignShiftsResponse struct {
	AssignmentIDs []string `json:"assignmentIds"`
	EventID       string   `json:"eventId,omitempty"`
}

// UnassignTarget narrows weekday- and single-scope cancellations.
type UnassignTarget struct {
	AssignmentID string `json:"assignmentId"`
	DayOfWeek    int    `json:"dayOfWeek" validate:"omitempty,min=1,max=7"`
	TimeSlotID   string `json:"timeSlotId"`
	ClassroomID  string `json:"classroomId"`
}

// UnassignShiftsRequest cancels assignments by scope.
type UnassignShiftsRequest struct {
	CandidateID string               `json:"candidateId" validate:"required"`
	Scope       models.UnassignScope `json:"scope" validate:"required,oneof=single weekday all_for_absence"`
	Target      *UnassignTarget      `json:"target"`
}

// UnassignShiftsResponse reports what the cancellation removed.
type UnassignShiftsResponse struct {
	RemovedCount                 int  `json:"removedCount"`
	RemainingActiveOnTargetShift int  `json:"remainingActiveOnTargetShift"`
	EventCancelled               bool `json:"eventCancelled"`
}
