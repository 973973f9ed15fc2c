package dto

import "github.com/careloop/staffing-api/internal/models"

// RecommendOptions filter the candidate roster and shift set before ranking.
type RecommendOptions struct {
	IncludeFlexibleStaff bool `form:"includeFlexibleStaff" json:"includeFlexibleStaff"`
	IncludePastShifts    bool `form:"includePastShifts" json:"includePastShifts"`
	Page                 int  `form:"page" json:"page"`
}

// ShiftVerdictPayload is one per-shift status inside a sub recommendation.
type ShiftVerdictPayload struct {
	Date        string             `json:"date"`
	TimeSlotID  string             `json:"timeSlotId"`
	ClassroomID string             `json:"classroomId,omitempty"`
	Status      models.ShiftStatus `json:"status"`
	Message     string             `json:"message,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// SubRecommendation is the per-candidate view: which shifts they cover and
// where they collide.
type SubRecommendation struct {
	CandidateID   string                `json:"candidateId"`
	CandidateName string                `json:"candidateName"`
	IsFlex        bool                  `json:"isFlex"`
	ShiftsCovered int                   `json:"shiftsCovered"`
	ConflictCount int                   `json:"conflictCount"`
	Verdicts      []ShiftVerdictPayload `json:"verdicts"`
}

// CombinationMember is one candidate's contribution inside a combination.
type CombinationMember struct {
	CandidateID   string   `json:"candidateId"`
	CandidateName string   `json:"candidateName"`
	ShiftIDs      []string `json:"shiftIds"`
}

// Combination is a ranked covering set of candidates.
type Combination struct {
	Members            []CombinationMember `json:"members"`
	TotalShiftsCovered int                 `json:"totalShiftsCovered"`
	TotalShiftsNeeded  int                 `json:"totalShiftsNeeded"`
	TotalConflicts     int                 `json:"totalConflicts"`
	CoveragePercent    float64             `json:"coveragePercent"`
}

// RecommendResponse returns candidate detail plus ranked combinations.
type RecommendResponse struct {
	CoverageRequestID       string              `json:"coverageRequestId"`
	Subs                    []SubRecommendation `json:"subs"`
	RecommendedCombinations []Combination       `json:"recommendedCombinations"`
}
