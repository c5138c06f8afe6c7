package service

import (
	"fmt"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

// topicTransitions lists every legal status move. rejected and completed are terminal.
var topicTransitions = map[models.TopicStatus][]models.TopicStatus{
	models.TopicPending:    {models.TopicApproved, models.TopicRejected},
	models.TopicApproved:   {models.TopicInProgress, models.TopicCompleted},
	models.TopicInProgress: {models.TopicCompleted},
}

// ValidateTransition returns an INVALID_TRANSITION error unless from -> to is legal.
func ValidateTransition(from, to models.TopicStatus) error {
	if !from.Valid() || !to.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("unknown topic status %q -> %q", from, to))
	}
	for _, next := range topicTransitions[from] {
		if next == to {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move topic from %s to %s", from, to))
}

// CanSubmitMidterm gates mid-term submission and grading.
func CanSubmitMidterm(status models.TopicStatus) bool {
	return status == models.TopicApproved
}

// CanSubmitFinal gates the supervisor's final grading.
func CanSubmitFinal(status models.TopicStatus) bool {
	return status == models.TopicInProgress
}

// CanGradeLate gates reviewer and committee grading.
func CanGradeLate(status models.TopicStatus) bool {
	return status == models.TopicInProgress || status == models.TopicCompleted
}

// IsSchedulable reports whether a council may examine a topic in this status.
func IsSchedulable(status models.TopicStatus) bool {
	return status == models.TopicCompleted
}
