package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type scheduleFixture struct {
	svc       *CouncilScheduleService
	councils  *fakeCouncilRepo
	schedules *fakeScheduleRepo
	topics    *fakeTopicRepo
	metrics   *MetricsService
}

func newScheduleFixture(t *testing.T, db *sqlx.DB) scheduleFixture {
	t.Helper()
	completed := func(id, major string) models.Topic {
		return models.Topic{ID: id, Title: id, MajorCode: major, SemesterCode: testSemester, Status: models.TopicCompleted}
	}
	running := completed("topic-running", "SE")
	running.Status = models.TopicInProgress

	f := scheduleFixture{
		councils: newFakeCouncilRepo(models.Council{ID: "council-1", Title: "SE A", MajorCode: "SE", SemesterCode: testSemester}),
		schedules: &fakeScheduleRepo{schedules: []models.CouncilSchedule{
			{ID: "sched-1", CouncilID: "council-1", TopicID: "topic-booked", TimeStart: at("09:00"), TimeEnd: at("10:00")},
		}},
		topics: newFakeTopicRepo(
			completed("topic-booked", "SE"),
			completed("topic-2", "SE"),
			completed("topic-3", "SE"),
			completed("topic-ai", "AI"),
			running,
		),
		metrics: NewMetricsService(),
	}
	f.svc = NewCouncilScheduleService(f.councils, f.schedules, f.topics, db, f.metrics, nil, zap.NewNop())
	return f
}

var staffCtx = teacherCtx("t-staff", "", authz.RoleAcademicAffairsStaff)

func TestScheduleCreateRejectsOverlap(t *testing.T) {
	db, mock := newTxDB(t)
	f := newScheduleFixture(t, db)
	expectRollback(mock)

	_, err := f.svc.Create(context.Background(), staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("09:30"), TimeEnd: at("10:30")})
	require.ErrorIs(t, err, appErrors.ErrTimeConflict)
	conflict, ok := appErrors.FromError(err).Details.(models.ScheduleConflict)
	require.True(t, ok)
	assert.Equal(t, "sched-1", conflict.ScheduleID)
	assert.Equal(t, []string{"council-1"}, f.councils.locked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.scheduleConflicts.WithLabelValues(rejectOverlap)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCreateAllowsTouchingSlots(t *testing.T) {
	db, mock := newTxDB(t)
	f := newScheduleFixture(t, db)
	expectCommit(mock)

	created, err := f.svc.Create(context.Background(), staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("10:00"), TimeEnd: at("11:00"), Location: " Room B1 "})
	require.NoError(t, err)
	require.NotNil(t, created.Location)
	assert.Equal(t, "Room B1", *created.Location)
	assert.Len(t, f.schedules.schedules, 2)

	expectCommit(mock)
	_, err = f.svc.Create(context.Background(), staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-3", TimeStart: at("08:00"), TimeEnd: at("09:00")})
	require.NoError(t, err)
}

func TestScheduleCreateValidations(t *testing.T) {
	db, mock := newTxDB(t)
	f := newScheduleFixture(t, db)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("11:00"), TimeEnd: at("11:00")})
	assert.ErrorIs(t, err, appErrors.ErrInvalidInterval)

	expectRollback(mock)
	_, err = f.svc.Create(ctx, staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-ai", TimeStart: at("11:00"), TimeEnd: at("12:00")})
	assert.ErrorIs(t, err, appErrors.ErrMajorMismatch)

	expectRollback(mock)
	_, err = f.svc.Create(ctx, staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-running", TimeStart: at("11:00"), TimeEnd: at("12:00")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	expectRollback(mock)
	_, err = f.svc.Create(ctx, staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-booked", TimeStart: at("11:00"), TimeEnd: at("12:00")})
	assert.ErrorIs(t, err, appErrors.ErrTopicAlreadyScheduled)

	expectRollback(mock)
	_, err = f.svc.Create(ctx, teacherCtx("t-dept", "AI", authz.RoleDepartmentLecturer), "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("11:00"), TimeEnd: at("12:00")})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCreateMapsExclusionViolation(t *testing.T) {
	db, mock := newTxDB(t)
	f := newScheduleFixture(t, db)
	f.schedules.createErr = &pq.Error{Code: "23P01", Constraint: "ex_council_schedules_overlap"}
	expectRollback(mock)

	_, err := f.svc.Create(context.Background(), staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("13:00"), TimeEnd: at("14:00")})
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)

	f.schedules.createErr = &pq.Error{Code: "23505", Constraint: "uq_council_schedules_topic"}
	expectRollback(mock)
	_, err = f.svc.Create(context.Background(), staffCtx, "council-1", CreateScheduleRequest{TopicID: "topic-2", TimeStart: at("13:00"), TimeEnd: at("14:00")})
	assert.ErrorIs(t, err, appErrors.ErrTopicAlreadyScheduled)
}

func TestScheduleUpdateIgnoresItsOwnSlot(t *testing.T) {
	db, mock := newTxDB(t)
	f := newScheduleFixture(t, db)
	f.schedules.schedules = append(f.schedules.schedules,
		models.CouncilSchedule{ID: "sched-2", CouncilID: "council-1", TopicID: "topic-2", TimeStart: at("11:00"), TimeEnd: at("12:00")})

	expectCommit(mock)
	moved, err := f.svc.Update(context.Background(), staffCtx, "sched-1", UpdateScheduleRequest{TimeStart: at("09:30"), TimeEnd: at("10:30")})
	require.NoError(t, err)
	assert.Equal(t, at("09:30"), moved.TimeStart)

	expectRollback(mock)
	_, err = f.svc.Update(context.Background(), staffCtx, "sched-1", UpdateScheduleRequest{TimeStart: at("10:30"), TimeEnd: at("11:30")})
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDeleteAndList(t *testing.T) {
	db, _ := newTxDB(t)
	f := newScheduleFixture(t, db)
	ctx := context.Background()

	items, err := f.svc.ListByCouncil(ctx, teacherCtx("t-mem", "SE"), "council-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	err = f.svc.Delete(ctx, teacherCtx("t-mem", "SE"), "sched-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, staffCtx, "sched-1"))
	items, err = f.svc.ListByCouncil(ctx, staffCtx, "council-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	err = f.svc.Delete(ctx, staffCtx, "sched-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
