package dto

import "github.com/careloop/staffing-api/internal/models"

// ResolveBaselineConflictRequest places a teacher on the recurring grid and
// names how any double-booking should be resolved.
type ResolveBaselineConflictRequest struct {
	TeacherID         string                    `json:"teacherId" validate:"required"`
	DayOfWeek         int                       `json:"dayOfWeek" validate:"required,min=1,max=7"`
	TimeSlotID        string                    `json:"timeSlotId" validate:"required"`
	TargetClassroomID string                    `json:"targetClassroomId" validate:"required"`
	ClassGroupID      string                    `json:"classGroupId"`
	Resolution        models.BaselineResolution `json:"resolution" validate:"required,oneof=remove_other mark_floater cancel"`
}

// ResolveBaselineConflictResponse reports the rows touched by the resolution.
type ResolveBaselineConflictResponse struct {
	Outcome    models.BaselineOutcome `json:"outcome"`
	CreatedID  string                 `json:"createdId,omitempty"`
	DeletedIDs []string               `json:"deletedIds,omitempty"`
	UpdatedIDs []string               `json:"updatedIds,omitempty"`
}
