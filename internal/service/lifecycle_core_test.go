package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestComputeFinalGradeWeighting(t *testing.T) {
	got := ComputeFinalGrade(ptr(80.0), ptr(70.0), ptr(90.0))
	require.NotNil(t, got)
	assert.Equal(t, 80.0, *got)

	got = ComputeFinalGrade(ptr(85.0), ptr(72.0), ptr(91.0))
	require.NotNil(t, got)
	assert.Equal(t, 82.9, *got)
}

func TestComputeFinalGradeLeavesUnsetWhenComponentMissing(t *testing.T) {
	assert.Nil(t, ComputeFinalGrade(nil, ptr(70.0), ptr(90.0)))
	assert.Nil(t, ComputeFinalGrade(ptr(80.0), nil, ptr(90.0)))
	assert.Nil(t, ComputeFinalGrade(ptr(80.0), ptr(70.0), nil))

	final := models.Final{SupervisorGrade: ptr(80.0), ReviewerGrade: ptr(70.0)}
	Recompute(&final)
	assert.Nil(t, final.FinalGrade)
	assert.Equal(t, models.FinalInProgress, final.Status)

	final.DefenseGrade = ptr(90.0)
	Recompute(&final)
	require.NotNil(t, final.FinalGrade)
	assert.Equal(t, models.FinalCompleted, final.Status)
}

func TestDefenseGradeFromVotes(t *testing.T) {
	assert.Nil(t, DefenseGradeFromVotes(ptr(8.5), nil, 10))
	got := DefenseGradeFromVotes(ptr(8.5), ptr(9.0), 10)
	require.NotNil(t, got)
	assert.Equal(t, 87.5, *got)

	got = DefenseGradeFromVotes(ptr(7.0), ptr(8.0), 0)
	require.NotNil(t, got)
	assert.Equal(t, 75.0, *got)
}

func TestGradeRangeValidation(t *testing.T) {
	assert.NoError(t, ValidateComponentGrade(0))
	assert.NoError(t, ValidateComponentGrade(100))
	assert.ErrorIs(t, ValidateComponentGrade(100.01), appErrors.ErrGradeOutOfRange)
	assert.ErrorIs(t, ValidateComponentGrade(-1), appErrors.ErrGradeOutOfRange)

	assert.NoError(t, ValidateCommitteeVote(10))
	assert.ErrorIs(t, ValidateCommitteeVote(11), appErrors.ErrGradeOutOfRange)
	assert.Equal(t, "validation-error", appErrors.Kind(ValidateCommitteeVote(11)))
}

func TestValidateTransition(t *testing.T) {
	legal := [][2]models.TopicStatus{
		{models.TopicPending, models.TopicApproved},
		{models.TopicPending, models.TopicRejected},
		{models.TopicApproved, models.TopicInProgress},
		{models.TopicApproved, models.TopicCompleted},
		{models.TopicInProgress, models.TopicCompleted},
	}
	for _, tc := range legal {
		assert.NoError(t, ValidateTransition(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}

	illegal := [][2]models.TopicStatus{
		{models.TopicCompleted, models.TopicPending},
		{models.TopicPending, models.TopicInProgress},
		{models.TopicPending, models.TopicCompleted},
		{models.TopicRejected, models.TopicApproved},
		{models.TopicInProgress, models.TopicApproved},
		{models.TopicApproved, models.TopicRejected},
	}
	for _, tc := range illegal {
		err := ValidateTransition(tc[0], tc[1])
		require.Error(t, err, "%s -> %s", tc[0], tc[1])
		assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
		assert.Equal(t, "validation-error", appErrors.Kind(err))
	}

	err := ValidateTransition("archived", models.TopicApproved)
	require.Error(t, err)
	assert.Equal(t, `unknown topic status "archived" -> "approved"`, appErrors.FromError(err).Message)
	assert.Equal(t, "cannot move topic from completed to pending",
		appErrors.FromError(ValidateTransition(models.TopicCompleted, models.TopicPending)).Message)
}

func TestPhaseGates(t *testing.T) {
	assert.True(t, CanSubmitMidterm(models.TopicApproved))
	assert.False(t, CanSubmitMidterm(models.TopicInProgress))
	assert.True(t, CanSubmitFinal(models.TopicInProgress))
	assert.False(t, CanSubmitFinal(models.TopicApproved))
	assert.True(t, IsSchedulable(models.TopicCompleted))
	assert.False(t, IsSchedulable(models.TopicApproved))
}

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-06-01 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func existingSlot() []models.CouncilSchedule {
	return []models.CouncilSchedule{{ID: "slot-1", CouncilID: "c-1", TopicID: "topic-1", TimeStart: at("09:00"), TimeEnd: at("11:00")}}
}

func TestCheckScheduleConflictAdjacentSlotSucceeds(t *testing.T) {
	assert.NoError(t, CheckScheduleConflict(existingSlot(), at("11:00"), at("12:00"), ""))
	assert.NoError(t, CheckScheduleConflict(existingSlot(), at("08:00"), at("09:00"), ""))
}

func TestCheckScheduleConflictOverlapFails(t *testing.T) {
	err := CheckScheduleConflict(existingSlot(), at("10:30"), at("11:30"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)
	assert.Equal(t, "conflict-error", appErrors.Kind(err))
	assert.Equal(t, "slot overlaps 2026-06-01T09:00:00Z to 2026-06-01T11:00:00Z", appErrors.FromError(err).Message)

	conflict, ok := appErrors.FromError(err).Details.(models.ScheduleConflict)
	require.True(t, ok)
	assert.Equal(t, "slot-1", conflict.ScheduleID)

	assert.Error(t, CheckScheduleConflict(existingSlot(), at("08:00"), at("12:00"), ""))
}

func TestCheckScheduleConflictExcludesSelfOnEdit(t *testing.T) {
	slots := existingSlot()
	assert.NoError(t, CheckScheduleConflict(slots, at("09:30"), at("11:30"), "slot-1"))

	slots = append(slots, models.CouncilSchedule{ID: "slot-2", TimeStart: at("11:15"), TimeEnd: at("12:00")})
	err := CheckScheduleConflict(slots, at("09:30"), at("11:30"), "slot-1")
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)
}

func TestCheckScheduleConflictRejectsInvalidInterval(t *testing.T) {
	assert.ErrorIs(t, CheckScheduleConflict(nil, at("11:00"), at("11:00"), ""), appErrors.ErrInvalidInterval)
	assert.ErrorIs(t, CheckScheduleConflict(nil, at("12:00"), at("11:00"), ""), appErrors.ErrInvalidInterval)
}
