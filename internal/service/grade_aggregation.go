package service

import (
	"fmt"
	"math"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

const (
	supervisorWeight = 0.40
	reviewerWeight   = 0.30
	defenseWeight    = 0.30

	maxComponentGrade = 100
	maxCommitteeVote  = 10

	// DefaultCommitteeScale converts a 0-10 committee vote onto the 0-100 scale.
	DefaultCommitteeScale = 10.0
)

// roundGrade rounds half to even at two decimals.
func roundGrade(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// ValidateComponentGrade accepts values in [0, 100].
func ValidateComponentGrade(v float64) error {
	if math.IsNaN(v) || v < 0 || v > maxComponentGrade {
		return appErrors.Clone(appErrors.ErrGradeOutOfRange, fmt.Sprintf("grade %.2f must be between 0 and %d", v, maxComponentGrade))
	}
	return nil
}

// ValidateCommitteeVote accepts values in [0, 10].
func ValidateCommitteeVote(v float64) error {
	if math.IsNaN(v) || v < 0 || v > maxCommitteeVote {
		return appErrors.Clone(appErrors.ErrGradeOutOfRange, fmt.Sprintf("committee vote %.2f must be between 0 and %d", v, maxCommitteeVote))
	}
	return nil
}

// DefenseGradeFromVotes averages both votes and scales them. Nil until both exist.
func DefenseGradeFromVotes(chair, secretary *float64, scale float64) *float64 {
	if chair == nil || secretary == nil {
		return nil
	}
	if scale <= 0 {
		scale = DefaultCommitteeScale
	}
	v := roundGrade((*chair + *secretary) / 2 * scale)
	return &v
}

// ComputeFinalGrade applies the 40/30/30 weighting. Nil if any component is missing.
func ComputeFinalGrade(supervisor, reviewer, defense *float64) *float64 {
	if supervisor == nil || reviewer == nil || defense == nil {
		return nil
	}
	v := roundGrade(*supervisor*supervisorWeight + *reviewer*reviewerWeight + *defense*defenseWeight)
	return &v
}

// FinalStatusFor is completed once every component is present.
func FinalStatusFor(supervisor, reviewer, defense *float64) models.FinalStatus {
	if supervisor != nil && reviewer != nil && defense != nil {
		return models.FinalCompleted
	}
	return models.FinalInProgress
}

// Recompute refreshes the derived columns of a final from its components.
func Recompute(final *models.Final) {
	final.FinalGrade = ComputeFinalGrade(final.SupervisorGrade, final.ReviewerGrade, final.DefenseGrade)
	final.Status = FinalStatusFor(final.SupervisorGrade, final.ReviewerGrade, final.DefenseGrade)
}
