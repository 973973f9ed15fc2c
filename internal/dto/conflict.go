package dto

import "github.com/careloop/staffing-api/internal/models"

// ConflictCheck asks whether one candidate can take one shift.
type ConflictCheck struct {
	CandidateID string `json:"candidateId" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlotID  string `json:"timeSlotId" validate:"required"`
	ClassroomID string `json:"classroomId"`
}

// ComputeConflictsRequest batches conflict checks.
type ComputeConflictsRequest struct {
	Checks []ConflictCheck `json:"checks" validate:"required,min=1,max=512,dive"`
}

// ConflictResult is the evaluated status for one check, in input order.
type ConflictResult struct {
	CandidateID string             `json:"candidateId"`
	Date        string             `json:"date"`
	TimeSlotID  string             `json:"timeSlotId"`
	Status      models.ShiftStatus `json:"status"`
	Message     string             `json:"message,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// ComputeConflictsResponse returns one result per requested check.
type ComputeConflictsResponse struct {
	Results []ConflictResult `json:"results"`
}
