package service

import (
	"fmt"
	"time"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

// ValidateInterval requires start strictly before end.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return appErrors.Clone(appErrors.ErrInvalidInterval, "")
	}
	return nil
}

// overlaps reports whether the half-open intervals [aStart,aEnd) and [bStart,bEnd) intersect.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// CheckScheduleConflict scans existing slots of one council, skipping ignoreID.
func CheckScheduleConflict(existing []models.CouncilSchedule, start, end time.Time, ignoreID string) error {
	if err := ValidateInterval(start, end); err != nil {
		return err
	}
	for _, item := range existing {
		if ignoreID != "" && item.ID == ignoreID {
			continue
		}
		if overlaps(start, end, item.TimeStart, item.TimeEnd) {
			return wrapTimeConflict(item)
		}
	}
	return nil
}

func wrapTimeConflict(item models.CouncilSchedule) error {
	err := appErrors.Clone(appErrors.ErrTimeConflict, fmt.Sprintf("slot overlaps %s to %s",
		item.TimeStart.UTC().Format(time.RFC3339), item.TimeEnd.UTC().Format(time.RFC3339)))
	err.Details = models.ScheduleConflict{
		ScheduleID: item.ID,
		TopicID:    item.TopicID,
		TimeStart:  item.TimeStart,
		TimeEnd:    item.TimeEnd,
	}
	return err
}
