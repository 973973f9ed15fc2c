package dto

// CoverageShift is one materialized shift of a coverage request.
type CoverageShift struct {
	ShiftID      string `json:"shiftId"`
	Date         string `json:"date"`
	TimeSlotID   string `json:"timeSlotId"`
	ClassroomID  string `json:"classroomId"`
	ClassGroupID string `json:"classGroupId,omitempty"`
	Covered      bool   `json:"covered"`
	CoveredBy    string `json:"coveredBy,omitempty"`
}

// CoverageRequestResponse describes an absence's shift map. Repeated calls for
// the same absence return the same coverageRequestId.
type CoverageRequestResponse struct {
	CoverageRequestID string          `json:"coverageRequestId"`
	StaffID           string          `json:"staffId"`
	Status            string          `json:"status"`
	TotalShifts       int             `json:"totalShifts"`
	CoveredShifts     int             `json:"coveredShifts"`
	Shifts            []CoverageShift `json:"shifts"`
}
